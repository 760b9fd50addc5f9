package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestActionMetrics(t *testing.T) {
	ActionsApplied.WithLabelValues("report_filed").Inc()
	ActionsFailed.WithLabelValues("successful_help", "timeout").Inc()
	ApplyLatency.Observe(0.004)

	names := gatheredNames(t)
	expected := []string{
		"pawpoints_actions_applied_total",
		"pawpoints_actions_failed_total",
		"pawpoints_apply_latency_seconds",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestOutcomeMetrics(t *testing.T) {
	OutcomesEmitted.WithLabelValues("badge_unlocked").Add(2)
	NotificationsQueued.Add(2)
	NotificationRetries.WithLabelValues("scheduled").Inc()

	names := gatheredNames(t)
	if !names["pawpoints_outcomes_emitted_total"] {
		t.Error("pawpoints_outcomes_emitted_total not found")
	}
	if !names["pawpoints_notifications_queued_total"] {
		t.Error("pawpoints_notifications_queued_total not found")
	}
	if !names["pawpoints_notification_retries_total"] {
		t.Error("pawpoints_notification_retries_total not found")
	}
}

func TestStoreAndChallengeMetrics(t *testing.T) {
	StoreLatency.WithLabelValues("load").Observe(0.002)
	StoreFailures.WithLabelValues("save", "error").Inc()
	ChallengeResets.WithLabelValues("daily").Inc()
	SweepDuration.Observe(0.3)

	names := gatheredNames(t)
	expected := []string{
		"pawpoints_store_latency_seconds",
		"pawpoints_store_failures_total",
		"pawpoints_challenge_resets_total",
		"pawpoints_sweep_duration_seconds",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestHealthMetrics(t *testing.T) {
	HealthCheckStatus.WithLabelValues("store").Set(1)
	HealthRecoveries.WithLabelValues("store").Inc()
	RateLimited.Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"pawpoints_health_check_status",
		"pawpoints_health_recoveries_total",
		"pawpoints_rate_limited_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	// Touch the remaining collectors so every family is exported.
	ActionsApplied.WithLabelValues("successful_help").Inc()
	ActionsFailed.WithLabelValues("report_filed", "error").Inc()
	OutcomesEmitted.WithLabelValues("tier_up").Inc()
	StoreLatency.WithLabelValues("save").Observe(0.001)
	StoreFailures.WithLabelValues("load", "timeout").Inc()
	ChallengeResets.WithLabelValues("weekly").Inc()
	HealthCheckStatus.WithLabelValues("store").Set(1)
	HealthRecoveries.WithLabelValues("store").Inc()

	count := 0
	for name := range gatheredNames(t) {
		if strings.HasPrefix(name, "pawpoints_") {
			count++
		}
	}
	if count < 12 {
		t.Errorf("expected at least 12 pawpoints_ metrics, got %d", count)
	}
}

// Package metrics provides Prometheus metrics for pawpoints:
// counters, gauges and histograms for actions, outcomes, the progress
// store, challenge resets, the HTTP surface and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Actions ────────────────────────────────────────────────────────────────

// ActionsApplied tracks actions that were applied and persisted, by kind.
var ActionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pawpoints",
	Name:      "actions_applied_total",
	Help:      "Total actions applied and persisted.",
}, []string{"action"})

// ActionsFailed tracks actions rejected or lost to a store failure.
var ActionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pawpoints",
	Name:      "actions_failed_total",
	Help:      "Total actions that did not take effect.",
}, []string{"action", "reason"})

// ApplyLatency tracks the full read-modify-write time of one action.
var ApplyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "pawpoints",
	Name:      "apply_latency_seconds",
	Help:      "Time to load, apply and save one action.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
})

// ─── Outcomes ───────────────────────────────────────────────────────────────

// OutcomesEmitted tracks outcomes returned to callers, by type.
var OutcomesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pawpoints",
	Name:      "outcomes_emitted_total",
	Help:      "Total outcomes produced by persisted actions.",
}, []string{"type"})

// NotificationsQueued tracks outcomes written to the notification outbox.
var NotificationsQueued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "pawpoints",
	Name:      "notifications_queued_total",
	Help:      "Total outcomes queued for notification delivery.",
})

// ─── Store ──────────────────────────────────────────────────────────────────

// StoreLatency tracks progress store call duration by operation.
var StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "pawpoints",
	Name:      "store_latency_seconds",
	Help:      "Progress store call duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"op"})

// StoreFailures tracks progress store errors by operation and reason.
var StoreFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pawpoints",
	Name:      "store_failures_total",
	Help:      "Total progress store failures.",
}, []string{"op", "reason"})

// NotificationRetries tracks failed outbox writes by retry result
// (scheduled, delivered, exhausted).
var NotificationRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pawpoints",
	Name:      "notification_retries_total",
	Help:      "Outbox writes retried after a failure, by result.",
}, []string{"result"})

// ─── Challenges ─────────────────────────────────────────────────────────────

// ChallengeResets tracks challenge windows replaced on expiry, by slot.
var ChallengeResets = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pawpoints",
	Name:      "challenge_resets_total",
	Help:      "Total challenge instances replaced on expiry.",
}, []string{"slot"})

// SweepDuration tracks how long a full expiry sweep takes.
var SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "pawpoints",
	Name:      "sweep_duration_seconds",
	Help:      "Duration of a challenge expiry sweep.",
	Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60},
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// RateLimited tracks requests rejected by the per-user rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "pawpoints",
	Name:      "rate_limited_total",
	Help:      "Total write requests rejected by the rate limiter.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "pawpoints",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pawpoints",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})

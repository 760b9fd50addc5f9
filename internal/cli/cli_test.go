package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// run executes the root command with args against a fresh home.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func testHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("PAWPOINTS_HOME", home)
	t.Setenv("PAWPOINTS_STORE_DIR", home)
	t.Setenv("PAWPOINTS_STORE_DRIVER", "sqlite")
	t.Setenv("PAWPOINTS_LOG_LEVEL", "error")
	return home
}

func TestReportThenLevel(t *testing.T) {
	testHome(t)

	out, err := run(t, "report", "ana")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "First Sighting") {
		t.Errorf("report output = %q", out)
	}

	out, err = run(t, "level", "ana")
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	if !strings.Contains(out, "Level 1 (10 points)") {
		t.Errorf("level output = %q", out)
	}
}

func TestHelpPetAndLeaderboard(t *testing.T) {
	testHome(t)

	if _, err := run(t, "help-pet", "ben", "--emergency"); err != nil {
		t.Fatalf("help-pet: %v", err)
	}
	helpEmergency = false
	if _, err := run(t, "report", "ana"); err != nil {
		t.Fatalf("report: %v", err)
	}

	out, err := run(t, "leaderboard", "--limit", "5")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("leaderboard lines = %d: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "1") || !strings.Contains(lines[1], "ben") {
		t.Errorf("first row = %q, want ben", lines[1])
	}
}

func TestProgressShowsChallengeCompletion(t *testing.T) {
	testHome(t)
	run(t, "report", "ana")

	out, err := run(t, "progress", "ana")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !strings.Contains(out, "1/1 (100%) ✓") {
		t.Errorf("daily_report row missing from %q", out)
	}
	if !strings.Contains(out, "0/1 (0%)") {
		t.Errorf("daily_help row missing from %q", out)
	}
}

func TestLeaderboard_NeighborhoodNeedsUsers(t *testing.T) {
	testHome(t)
	defer func() { boardScope = "global" }()

	if _, err := run(t, "leaderboard", "--scope", "neighborhood"); err == nil {
		t.Error("neighborhood without --users should fail")
	}
}

func TestChallengeComplete(t *testing.T) {
	testHome(t)

	out, err := run(t, "challenge", "complete", "cy", "daily_checkin")
	if err != nil {
		t.Fatalf("challenge complete: %v", err)
	}
	if !strings.Contains(out, "daily_checkin complete") {
		t.Errorf("output = %q", out)
	}

	out, _ = run(t, "challenge", "complete", "cy", "daily_checkin")
	if !strings.Contains(out, "not active or already complete") {
		t.Errorf("second completion output = %q", out)
	}
}

func TestNotificationsAck(t *testing.T) {
	testHome(t)
	defer func() { notifAck = false }()

	run(t, "report", "ana")
	out, err := run(t, "notifications", "ana", "--ack")
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if !strings.Contains(out, "Badge unlocked") {
		t.Errorf("notifications output = %q", out)
	}
	notifAck = false

	out, _ = run(t, "notifications", "ana")
	if !strings.Contains(out, "No pending notifications") {
		t.Errorf("after ack = %q", out)
	}
}

func TestSweep(t *testing.T) {
	testHome(t)
	run(t, "report", "ana")

	out, err := run(t, "sweep")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "Swept: 0 records updated") {
		t.Errorf("sweep output = %q", out)
	}
}

func TestConfigInit(t *testing.T) {
	home := testHome(t)
	defer func() { configForce = false }()

	if _, err := run(t, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "config.toml")); err != nil {
		t.Fatalf("config.toml not written: %v", err)
	}
	if _, err := run(t, "config", "init"); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, err := run(t, "config", "init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}

	out, err := run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[store]") {
		t.Errorf("config show = %q", out)
	}
}

func TestProgressBar(t *testing.T) {
	if got := progressBar(50, 100, 10); got != "[=====     ]" {
		t.Errorf("progressBar = %q", got)
	}
	if got := progressBar(0, 0, 4); got != "[    ]" {
		t.Errorf("progressBar(empty) = %q", got)
	}
}

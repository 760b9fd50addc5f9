package daemon

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("PAWPOINTS_HOME", "/tmp/pawpoints-test-home")
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8420 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8420)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Store.Dir != "/tmp/pawpoints-test-home" {
		t.Errorf("Store.Dir = %q", cfg.Store.Dir)
	}
	if cfg.Store.Timeout != "2s" {
		t.Errorf("Store.Timeout = %q, want 2s", cfg.Store.Timeout)
	}
	if cfg.Scheduler.SweepSchedule != "@hourly" {
		t.Errorf("SweepSchedule = %q", cfg.Scheduler.SweepSchedule)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv("PAWPOINTS_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 8420 {
		t.Errorf("API.Port = %d, want default", cfg.API.Port)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PAWPOINTS_HOME", home)
	file := `
[api]
port = 9000
rate_limit_rps = 2.5

[store]
driver = "memory"
timeout = "500ms"

[engine]
timezone = "Europe/Berlin"
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(file), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAWPOINTS_API_PORT", "9100")
	t.Setenv("PAWPOINTS_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want env override 9100", cfg.API.Port)
	}
	if cfg.API.RateLimitRPS != 2.5 {
		t.Errorf("RateLimitRPS = %v, want 2.5", cfg.API.RateLimitRPS)
	}
	if cfg.Store.Driver != DriverMemory || cfg.Store.Timeout != "500ms" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Engine.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q", cfg.Engine.Timezone)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q", cfg.API.Host)
	}
}

func TestLoadConfig_BadTOML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PAWPOINTS_HOME", home)
	os.WriteFile(filepath.Join(home, "config.toml"), []byte("[api\nport = "), 0600)

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should fail on malformed TOML")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = "mongo"
	cfg.Store.Timeout = "soon"
	cfg.Engine.Timezone = "Mars/Olympus"
	cfg.Scheduler.SweepSchedule = "every day"
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, want := range []string{"store.driver", "store.timeout", "engine.timezone", "scheduler.sweep_schedule", "logging.level", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidate_DriverRequirements(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = DriverPostgres
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "postgres_dsn") {
		t.Errorf("postgres without dsn: %v", err)
	}
	cfg.Store.PostgresDSN = "postgres://localhost/pawpoints"
	if err := cfg.Validate(); err != nil {
		t.Errorf("postgres with dsn: %v", err)
	}

	cfg.Store.Driver = DriverRedis
	cfg.Store.RedisAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Error("redis without addr should fail")
	}
}

func TestValidate_EmptyScheduleDisablesSweep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler.SweepSchedule = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("PAWPOINTS_HOME", filepath.Join(t.TempDir(), "nested"))

	cfg := DefaultConfig()
	cfg.API.Port = 9999
	cfg.Store.Driver = DriverMemory
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.API.Port != 9999 || got.Store.Driver != DriverMemory {
		t.Errorf("round trip = %+v", got)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"", "0s", false},
		{"2s", "2s", false},
		{"1m30s", "1m30s", false},
		{"-1s", "", true},
		{"soon", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration(%q) error = %v", tt.input, err)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// ─── Logging & Tracing ──────────────────────────────────────────────────────

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	l.Info("hidden")
	l.WithField("component", "test").Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("json output missing field: %s", out)
	}
}

func TestSetupTracing_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TelemetryConfig{}, ServiceName, "test")
	if err != nil {
		t.Fatalf("SetupTracing() error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupTracing_WithEndpoint(t *testing.T) {
	// Non-routable address; nothing is exported.
	cfg := TelemetryConfig{OTLPEndpoint: "http://192.0.2.1:4318"}
	shutdown, err := SetupTracing(context.Background(), cfg, ServiceName, "test")
	if err != nil {
		t.Fatalf("SetupTracing() error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

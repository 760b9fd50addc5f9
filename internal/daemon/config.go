// Package daemon manages the pawpoints daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api" envPrefix:"API_"`
	Store     StoreConfig     `toml:"store" envPrefix:"STORE_"`
	Engine    EngineConfig    `toml:"engine" envPrefix:"ENGINE_"`
	Scheduler SchedulerConfig `toml:"scheduler" envPrefix:"SCHEDULER_"`
	Logging   LoggingConfig   `toml:"logging" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `toml:"telemetry" envPrefix:"TELEMETRY_"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string  `toml:"host" env:"HOST"`
	Port           int     `toml:"port" env:"PORT"`
	RateLimitRPS   float64 `toml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `toml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// StoreConfig selects and configures the progress store.
type StoreConfig struct {
	Driver        string `toml:"driver" env:"DRIVER"`
	Dir           string `toml:"dir" env:"DIR"`
	PostgresDSN   string `toml:"postgres_dsn" env:"POSTGRES_DSN"`
	RedisAddr     string `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db" env:"REDIS_DB"`
	Timeout       string `toml:"timeout" env:"TIMEOUT"`
}

// EngineConfig controls the progression engine.
type EngineConfig struct {
	// Timezone names the IANA zone used to decide calendar days.
	Timezone string `toml:"timezone" env:"TIMEZONE"`
}

// SchedulerConfig controls the background challenge sweep.
type SchedulerConfig struct {
	SweepSchedule  string `toml:"sweep_schedule" env:"SWEEP_SCHEDULE"`
	HealthInterval string `toml:"health_interval" env:"HEALTH_INTERVAL"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// TelemetryConfig controls metrics and tracing.
type TelemetryConfig struct {
	Prometheus   bool   `toml:"prometheus" env:"PROMETHEUS"`
	OTLPEndpoint string `toml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		Store: StoreConfig{
			Driver:    DriverSQLite,
			Dir:       pawpointsHome(),
			RedisAddr: "127.0.0.1:6379",
			Timeout:   "2s",
		},
		Engine: EngineConfig{
			Timezone: "UTC",
		},
		Scheduler: SchedulerConfig{
			SweepSchedule:  "@hourly",
			HealthInterval: "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from ~/.pawpoints/config.toml, falling back to
// defaults, then applies PAWPOINTS_* environment overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "PAWPOINTS_"}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.API.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit_rps must not be negative"))
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of sqlite, postgres, redis, memory", c.Store.Driver))
	}
	if _, err := parseDuration(c.Store.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("store.timeout: %w", err))
	}

	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("engine.timezone: %w", err))
	}

	if c.Scheduler.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.Scheduler.SweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.sweep_schedule: %w", err))
		}
	}
	if _, err := parseDuration(c.Scheduler.HealthInterval); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.health_interval: %w", err))
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// SaveConfig writes the config to ~/.pawpoints/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the location of config.toml.
func ConfigPath() string {
	return filepath.Join(pawpointsHome(), "config.toml")
}

// pawpointsHome returns the pawpoints data directory.
func pawpointsHome() string {
	if env := os.Getenv("PAWPOINTS_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pawpoints")
}

// Home is exported for use by other packages.
func Home() string {
	return pawpointsHome()
}

// parseDuration parses a duration string. Empty means zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", s)
	}
	return d, nil
}

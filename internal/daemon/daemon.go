package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/lostpaws/pawpoints/internal/api"
	"github.com/lostpaws/pawpoints/internal/app/notify"
	"github.com/lostpaws/pawpoints/internal/app/progression"
	"github.com/lostpaws/pawpoints/internal/domain"
	"github.com/lostpaws/pawpoints/internal/health"
	_ "github.com/lostpaws/pawpoints/internal/infra/metrics" // Register Prometheus metrics
)

// ServiceName identifies this process in traces.
const ServiceName = "pawpoints"

// outboxRetryInterval is how often failed notification writes are retried.
const outboxRetryInterval = 5 * time.Second

// MetaLastSweep records when the last sweep finished (RFC 3339).
const MetaLastSweep = "last_sweep"

// Daemon is the pawpoints runtime. It wires together all services.
type Daemon struct {
	Config Config
	Log    *logrus.Logger
	Stores *Stores
	Engine *progression.Engine
	Outbox *notify.Outbox
	Server *api.Server
	Health *health.Checker

	version string
	cron    *cron.Cron
	cancel  context.CancelFunc
}

// New loads the config and creates a Daemon with all services wired.
func New(ctx context.Context, version string) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg, version)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config, version string) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := NewLogger(cfg.Logging, nil)
	log := logger.WithField("component", "daemon")

	stores, err := OpenStores(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Validate already checked these
	loc, _ := time.LoadLocation(cfg.Engine.Timezone)
	timeout, _ := parseDuration(cfg.Store.Timeout)
	healthEvery, _ := parseDuration(cfg.Scheduler.HealthInterval)

	catalog := progression.DefaultCatalog()
	entry := logrus.NewEntry(logger)
	outbox := notify.NewOutbox(stores.Notifications, catalog, entry)
	engine := progression.NewEngine(stores.Progress, progression.Options{
		Catalog:      catalog,
		Location:     loc,
		StoreTimeout: timeout,
		Sink:         outbox,
		Logger:       entry,
	})

	checker := health.NewChecker(stores.Pinger, cfg.Store.Dir, healthEvery, entry)
	if p, ok := stores.Notifications.(domain.Pinger); ok && p != stores.Pinger {
		checker.Add(health.Check{Name: "outbox", CheckFn: p.Ping})
	}

	srv := api.NewServer(engine, outbox, entry)
	srv.SetHealth(checker)
	srv.SetVersion(version)
	if cfg.API.RateLimitRPS > 0 {
		srv.SetRateLimiter(api.NewRateLimiter(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst))
	}
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	log.WithFields(logrus.Fields{
		"driver":   cfg.Store.Driver,
		"timezone": loc.String(),
		"timeout":  timeout.String(),
	}).Info("services wired")

	return &Daemon{
		Config:  cfg,
		Log:     logger,
		Stores:  stores,
		Engine:  engine,
		Outbox:  outbox,
		Server:  srv,
		Health:  checker,
		version: version,
	}, nil
}

// RunSweep resets expired challenges for every user and records the
// finish time when the store keeps metadata.
func (d *Daemon) RunSweep(ctx context.Context) (int, error) {
	updated, err := d.Engine.Sweep(ctx)
	if d.Stores.Meta != nil {
		stamp := time.Now().UTC().Format(time.RFC3339)
		if merr := d.Stores.Meta.SetMeta(ctx, MetaLastSweep, stamp); merr != nil {
			d.Log.WithError(merr).Warn("record last sweep")
		}
	}
	return updated, err
}

// startSweeper schedules RunSweep. An empty schedule disables it.
func (d *Daemon) startSweeper(ctx context.Context) error {
	schedule := d.Config.Scheduler.SweepSchedule
	if schedule == "" {
		return nil
	}
	log := d.Log.WithField("component", "sweeper")
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		if _, err := d.RunSweep(ctx); err != nil {
			log.WithError(err).Warn("sweep finished with errors")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	c.Start()
	d.cron = c
	log.WithField("schedule", schedule).Info("sweep scheduled")
	return nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()
	log := d.Log.WithField("component", "daemon")

	shutdownTracing, err := SetupTracing(ctx, d.Config.Telemetry, ServiceName, d.version)
	if err != nil {
		log.WithError(err).Warn("tracing disabled")
	}

	go d.Health.Run(ctx)
	go d.Outbox.RunRetries(ctx, outboxRetryInterval)
	if err := d.startSweeper(ctx); err != nil {
		return err
	}

	addr := net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if d.cron != nil {
			<-d.cron.Stop().Done()
		}
		_ = httpServer.Shutdown(shutdownCtx)
		if shutdownTracing != nil {
			_ = shutdownTracing(shutdownCtx)
		}
	}()

	log.WithField("addr", addr).Info("pawpoints serving")
	if d.Config.Telemetry.Prometheus {
		log.WithField("url", "http://"+addr+"/metrics").Info("metrics enabled")
	}

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-done
		return err
	}
	<-done
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Stores != nil {
		if err := d.Stores.Close(); err != nil {
			d.Log.WithError(err).Warn("close store")
		}
	}
}

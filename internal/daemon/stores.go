package daemon

import (
	"context"
	"fmt"
	"os"

	"github.com/lostpaws/pawpoints/internal/domain"
	"github.com/lostpaws/pawpoints/internal/infra/memstore"
	"github.com/lostpaws/pawpoints/internal/infra/postgres"
	"github.com/lostpaws/pawpoints/internal/infra/redisstore"
	"github.com/lostpaws/pawpoints/internal/infra/sqlite"
)

// MetaStore keeps small key-value facts such as the last sweep time.
type MetaStore interface {
	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)
}

// Stores groups the backends opened for one driver.
type Stores struct {
	Progress      domain.ProgressStore
	Notifications domain.NotificationStore
	Pinger        domain.Pinger
	// Meta is nil for drivers without a metadata table.
	Meta    MetaStore
	closers []func() error
}

// Close releases every backend, returning the first error.
func (s *Stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// OpenStores opens the progress store named by cfg.Driver. Drivers
// without their own outbox table use a SQLite outbox in cfg.Dir.
func OpenStores(ctx context.Context, cfg StoreConfig) (*Stores, error) {
	switch cfg.Driver {
	case DriverMemory:
		m := memstore.New()
		return &Stores{Progress: m, Notifications: m, Pinger: m}, nil

	case DriverSQLite, "":
		db, err := sqlite.Open(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &Stores{Progress: db, Notifications: db, Pinger: db, Meta: db, closers: []func() error{db.Close}}, nil

	case DriverPostgres:
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return &Stores{Progress: pg, Notifications: pg, Pinger: pg, closers: []func() error{pg.Close}}, nil

	case DriverRedis:
		rs, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
			rs.Close()
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		outbox, err := sqlite.Open(cfg.Dir)
		if err != nil {
			rs.Close()
			return nil, fmt.Errorf("open sqlite outbox: %w", err)
		}
		return &Stores{
			Progress:      rs,
			Notifications: outbox,
			Pinger:        rs,
			Meta:          outbox,
			closers:       []func() error{rs.Close, outbox.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Package postgres stores progress records and the notification outbox in
// PostgreSQL. Records are kept as JSONB with scalar copies for ranking.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lostpaws/pawpoints/internal/domain"
)

// Store implements domain.ProgressStore and domain.NotificationStore.
type Store struct {
	db *sql.DB
}

// New wraps an open connection pool. The caller owns the pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn, checks the connection and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS progress (
		user_id      TEXT PRIMARY KEY,
		state        JSONB NOT NULL,
		total_points BIGINT NOT NULL DEFAULT 0,
		xp           BIGINT NOT NULL DEFAULT 0,
		level        INTEGER NOT NULL DEFAULT 1,
		tier         TEXT NOT NULL DEFAULT '',
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_progress_xp ON progress (xp DESC, user_id)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		seq        BIGSERIAL PRIMARY KEY,
		id         TEXT NOT NULL UNIQUE,
		user_id    TEXT NOT NULL,
		type       TEXT NOT NULL,
		title      TEXT NOT NULL,
		body       TEXT NOT NULL,
		outcome    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		shown      BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_pending ON notifications (user_id, shown, seq)`,
}

// Migrate applies the idempotent schema.
func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Progress ───────────────────────────────────────────────────────────────

// Load returns the user's record, or false when none is stored.
func (s *Store) Load(ctx context.Context, userID string) (domain.UserProgress, bool, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM progress WHERE user_id = $1`, userID).Scan(&state)
	if err == sql.ErrNoRows {
		return domain.UserProgress{}, false, nil
	}
	if err != nil {
		return domain.UserProgress{}, false, fmt.Errorf("load progress: %w", err)
	}
	p, err := decodeProgress(userID, state)
	if err != nil {
		return domain.UserProgress{}, false, err
	}
	return p, true, nil
}

// LoadMany fetches the stored records among userIDs in one query.
func (s *Store) LoadMany(ctx context.Context, userIDs []string) (map[string]domain.UserProgress, error) {
	out := make(map[string]domain.UserProgress, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, state FROM progress WHERE user_id = ANY($1)`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("load progress batch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id    string
			state []byte
		)
		if err := rows.Scan(&id, &state); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p, err := decodeProgress(id, state)
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, rows.Err()
}

// Save upserts the user's record.
func (s *Store) Save(ctx context.Context, p domain.UserProgress) error {
	state, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress %s: %w", p.UserID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress (user_id, state, total_points, xp, level, tier, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			state        = EXCLUDED.state,
			total_points = EXCLUDED.total_points,
			xp           = EXCLUDED.xp,
			level        = EXCLUDED.level,
			tier         = EXCLUDED.tier,
			updated_at   = EXCLUDED.updated_at`,
		p.UserID, state, p.TotalPoints, p.XP, p.Level(), string(p.CurrentTierID), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// ListUserIDs returns every stored user in ascending order.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM progress ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func decodeProgress(userID string, state []byte) (domain.UserProgress, error) {
	var p domain.UserProgress
	if err := json.Unmarshal(state, &p); err != nil {
		return domain.UserProgress{}, fmt.Errorf("decode progress %s: %w", userID, err)
	}
	if p.UnlockedBadges == nil {
		p.UnlockedBadges = make(map[string]domain.UnlockedBadge)
	}
	return p, nil
}

// ─── Notifications ──────────────────────────────────────────────────────────

// Enqueue inserts notifications in one transaction, skipping IDs that
// already exist. It returns the number of new rows.
func (s *Store) Enqueue(ctx context.Context, ns []domain.Notification) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	added := 0
	for _, n := range ns {
		outcome, err := json.Marshal(n.Outcome)
		if err != nil {
			return 0, fmt.Errorf("encode outcome %s: %w", n.ID, err)
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (id, user_id, type, title, body, outcome, created_at, shown)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			n.ID, n.UserID, string(n.Outcome.Type), n.Title, n.Body, outcome, n.CreatedAt.UTC(), n.Shown,
		)
		if err != nil {
			return 0, fmt.Errorf("insert notification %s: %w", n.ID, err)
		}
		rows, _ := result.RowsAffected()
		added += int(rows)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

// Pending returns unshown notifications for a user, oldest first.
func (s *Store) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, body, outcome, created_at, shown
		FROM notifications
		WHERE user_id = $1 AND shown = FALSE
		ORDER BY seq ASC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notifs []domain.Notification
	for rows.Next() {
		var (
			n       domain.Notification
			outcome []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &outcome, &n.CreatedAt, &n.Shown); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if err := json.Unmarshal(outcome, &n.Outcome); err != nil {
			return nil, fmt.Errorf("decode outcome %s: %w", n.ID, err)
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// MarkShown flags a notification as delivered.
func (s *Store) MarkShown(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET shown = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark shown: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

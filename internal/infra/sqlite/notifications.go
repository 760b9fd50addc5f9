package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lostpaws/pawpoints/internal/domain"
)

// ─── Notifications ──────────────────────────────────────────────────────────

// Enqueue inserts notifications in one transaction. Rows whose ID already
// exists are ignored; the return value counts new rows.
func (d *DB) Enqueue(ctx context.Context, ns []domain.Notification) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	added := 0
	for _, n := range ns {
		outcome, err := json.Marshal(n.Outcome)
		if err != nil {
			return 0, fmt.Errorf("encode outcome %s: %w", n.ID, err)
		}
		result, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO notifications (id, user_id, type, title, body, outcome, created_at, shown)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.UserID, string(n.Outcome.Type), n.Title, n.Body, string(outcome),
			n.CreatedAt.Unix(), n.Shown,
		)
		if err != nil {
			return 0, err
		}
		rows, _ := result.RowsAffected()
		added += int(rows)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// Pending returns unshown notifications for a user, oldest first.
func (d *DB) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, title, body, outcome, created_at, shown
		 FROM notifications WHERE user_id = ? AND shown = 0 ORDER BY seq ASC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, *n)
	}
	return notifs, rows.Err()
}

// MarkShown marks a notification as shown.
func (d *DB) MarkShown(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `UPDATE notifications SET shown = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func scanNotification(s scanner) (*domain.Notification, error) {
	var n domain.Notification
	var outcome string
	var createdAt int64
	if err := s.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &outcome, &createdAt, &n.Shown); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(outcome), &n.Outcome); err != nil {
		return nil, fmt.Errorf("decode outcome %s: %w", n.ID, err)
	}
	n.CreatedAt = unixOrZero(createdAt)
	return &n, nil
}

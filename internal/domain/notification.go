package domain

import (
	"context"
	"time"
)

// ─── Notification Outbox ────────────────────────────────────────────────────

// Notification is one outcome queued for display to a user.
// ID is the outcome ID, so queuing the same outcome twice keeps one row.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Outcome   Outcome   `json:"outcome"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Shown     bool      `json:"shown"`
}

// NotificationStore persists the outbox.
// Implemented by infra/sqlite, infra/postgres and infra/memstore.
type NotificationStore interface {
	// Enqueue inserts notifications whose ID is not already stored and
	// returns how many were new.
	Enqueue(ctx context.Context, ns []Notification) (int, error)

	// Pending returns unshown notifications for a user, oldest first.
	Pending(ctx context.Context, userID string, limit int) ([]Notification, error)

	// MarkShown flags a notification as displayed. Unknown IDs return
	// ErrNotificationNotFound.
	MarkShown(ctx context.Context, id string) error
}

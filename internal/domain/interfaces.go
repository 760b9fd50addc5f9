package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// ProgressStore persists one UserProgress per user.
// Implemented by infra/sqlite, infra/postgres, infra/redisstore and infra/memstore.
type ProgressStore interface {
	// Load returns the stored record and true, or a zero value and false
	// when the user has never been saved.
	Load(ctx context.Context, userID string) (UserProgress, bool, error)

	// Save replaces the user's record.
	Save(ctx context.Context, progress UserProgress) error

	// ListUserIDs returns every user with a stored record, sorted ascending.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BatchLoader is implemented by stores that can fetch many records in one
// round trip. Missing users are absent from the result.
type BatchLoader interface {
	LoadMany(ctx context.Context, userIDs []string) (map[string]UserProgress, error)
}

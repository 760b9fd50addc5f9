package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Validation errors, raised at the caller boundary
	ErrInvalidUserID      = errors.New("user id must not be empty")
	ErrInvalidAction      = errors.New("unknown or malformed action")
	ErrInvalidChallengeID = errors.New("challenge id must not be empty")
	ErrUnknownScope       = errors.New("unknown leaderboard scope")
	ErrNoCandidates       = errors.New("neighborhood leaderboard needs candidate users")

	// Persistence errors. An action whose save failed did not happen.
	ErrPersistence  = errors.New("progress store failure")
	ErrStoreTimeout = errors.New("progress store timed out")

	// Notification outbox errors
	ErrNotificationNotFound = errors.New("notification not found")
)

// Package memstore keeps progress records and the notification outbox in
// process memory. It backs the "memory" store driver and tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/lostpaws/pawpoints/internal/domain"
)

// Store is a map-backed ProgressStore and NotificationStore.
// Records are cloned on the way in and out.
type Store struct {
	mu       sync.RWMutex
	progress map[string]domain.UserProgress
	notifs   map[string]domain.Notification
	notifSeq map[string]int
	nextSeq  int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		progress: make(map[string]domain.UserProgress),
		notifs:   make(map[string]domain.Notification),
		notifSeq: make(map[string]int),
	}
}

// ─── Progress ───────────────────────────────────────────────────────────────

// Load returns a copy of the user's record.
func (s *Store) Load(ctx context.Context, userID string) (domain.UserProgress, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.UserProgress{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[userID]
	if !ok {
		return domain.UserProgress{}, false, nil
	}
	return p.Clone(), true, nil
}

// Save replaces the user's record.
func (s *Store) Save(ctx context.Context, p domain.UserProgress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[p.UserID] = p.Clone()
	return nil
}

// ListUserIDs returns stored user IDs in ascending order.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.progress))
	for id := range s.progress {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadMany returns copies of the stored records among userIDs.
func (s *Store) LoadMany(ctx context.Context, userIDs []string) (map[string]domain.UserProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.UserProgress, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.progress[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ─── Notifications ──────────────────────────────────────────────────────────

// Enqueue stores notifications whose ID is new.
func (s *Store) Enqueue(ctx context.Context, ns []domain.Notification) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, n := range ns {
		if _, dup := s.notifs[n.ID]; dup {
			continue
		}
		s.notifs[n.ID] = n
		s.notifSeq[n.ID] = s.nextSeq
		s.nextSeq++
		added++
	}
	return added, nil
}

// Pending returns unshown notifications for userID in insertion order.
func (s *Store) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Notification
	for _, n := range s.notifs {
		if n.UserID == userID && !n.Shown {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.notifSeq[out[i].ID] < s.notifSeq[out[j].ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkShown flags a notification as displayed.
func (s *Store) MarkShown(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifs[id]
	if !ok {
		return domain.ErrNotificationNotFound
	}
	n.Shown = true
	s.notifs[id] = n
	return nil
}

package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostpaws/pawpoints/internal/domain"
	"github.com/lostpaws/pawpoints/internal/infra/memstore"
)

// flakyStore fails the next `failures` Enqueue calls.
type flakyStore struct {
	*memstore.Store
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) Enqueue(ctx context.Context, ns []domain.Notification) (int, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return 0, errors.New("database is locked")
	}
	f.mu.Unlock()
	return f.Store.Enqueue(ctx, ns)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newRetryOutbox(store domain.NotificationStore, cfg RetryConfig) (*Outbox, *fakeClock) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	clock := &fakeClock{now: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)}
	ob := NewOutbox(store, nil, logrus.NewEntry(l))
	ob.clock = clock.Now
	ob.SetRetryConfig(cfg)
	return ob, clock
}

var levelUp = []domain.Outcome{{ID: "o-1", Type: domain.OutcomeLevelUp, OldLevel: 1, NewLevel: 2}}

func TestRetry_DeliversAfterBackoff(t *testing.T) {
	store := &flakyStore{Store: memstore.New(), failures: 1}
	ob, clock := newRetryOutbox(store, DefaultRetryConfig())
	ctx := context.Background()

	err := ob.Publish(ctx, "u1", levelUp)
	require.Error(t, err)
	assert.Equal(t, 1, ob.RetryStats().PendingRetries)

	// Not due yet
	assert.Equal(t, 0, ob.RetryPending(ctx))

	clock.Advance(time.Second)
	assert.Equal(t, 1, ob.RetryPending(ctx))
	assert.Equal(t, 0, ob.RetryStats().PendingRetries)

	pending, err := ob.Pending(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Level 2!", pending[0].Title)
}

func TestRetry_ExhaustsAfterMaxRetries(t *testing.T) {
	store := &flakyStore{Store: memstore.New(), failures: 100}
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: time.Minute}
	ob, clock := newRetryOutbox(store, cfg)
	ctx := context.Background()

	require.Error(t, ob.Publish(ctx, "u1", levelUp))

	clock.Advance(time.Second)
	assert.Equal(t, 0, ob.RetryPending(ctx)) // attempt 2 scheduled, 2s backoff
	assert.Equal(t, 1, ob.RetryStats().PendingRetries)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 0, ob.RetryPending(ctx))

	stats := ob.RetryStats()
	assert.Equal(t, 0, stats.PendingRetries)
	assert.Equal(t, int64(2), stats.TotalRetries)
	assert.Equal(t, int64(1), stats.TotalExhausted)
}

func TestRetryQueue_BackoffIsCapped(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	q := newRetryQueue(RetryConfig{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}, func() time.Time { return now })

	q.schedule(retryEntry{UserID: "late", Attempt: 6})
	q.schedule(retryEntry{UserID: "early"})

	require.Len(t, q.items, 2)
	assert.Equal(t, "early", q.items[0].UserID)
	for _, e := range q.items {
		if e.UserID == "late" {
			assert.Equal(t, now.Add(5*time.Second), e.NextRetry)
		}
	}

	now = now.Add(time.Second)
	ready := q.drainReady()
	require.Len(t, ready, 1)
	assert.Equal(t, "early", ready[0].UserID)
}

func TestRetryQueue_MaxPending(t *testing.T) {
	q := newRetryQueue(RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: time.Second, MaxPending: 1}, time.Now)
	assert.True(t, q.schedule(retryEntry{UserID: "a"}))
	assert.False(t, q.schedule(retryEntry{UserID: "b"}))
	assert.Equal(t, int64(1), q.stats().TotalExhausted)
}

func TestRunRetries_StopsOnCancel(t *testing.T) {
	ob, _ := newRetryOutbox(memstore.New(), DefaultRetryConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ob.RunRetries(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunRetries did not stop")
	}
}

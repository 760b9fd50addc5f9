package notify

import (
	"container/heap"
	"sync"
	"time"

	"github.com/lostpaws/pawpoints/internal/domain"
)

// ─── Retry Queue ────────────────────────────────────────────────────────────
// Batches whose Enqueue failed are re-queued with exponential backoff and
// written again by RetryPending. Notification IDs make a late duplicate
// write harmless.

// RetryConfig configures the retry queue behavior.
type RetryConfig struct {
	MaxRetries int           // Attempts before a batch is dropped
	BaseDelay  time.Duration // Initial backoff delay (doubles each retry)
	MaxDelay   time.Duration // Cap on backoff delay
	MaxPending int           // Batches held at once; extra failures are dropped
}

// DefaultRetryConfig returns production retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		BaseDelay:  1 * time.Second,
		MaxDelay:   60 * time.Second,
		MaxPending: 10000,
	}
}

// retryEntry is one failed Enqueue batch.
type retryEntry struct {
	UserID    string
	Batch     []domain.Notification
	Attempt   int
	NextRetry time.Time
	Error     string
}

// retryHeap orders entries by NextRetry.
type retryHeap []retryEntry

func (h retryHeap) Len() int           { return len(h) }
func (h retryHeap) Less(i, j int) bool { return h[i].NextRetry.Before(h[j].NextRetry) }
func (h retryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *retryHeap) Push(x any)        { *h = append(*h, x.(retryEntry)) }
func (h *retryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

type retryQueue struct {
	mu     sync.Mutex
	config RetryConfig
	items  retryHeap
	clock  func() time.Time

	totalRetries   int64
	totalExhausted int64
}

func newRetryQueue(cfg RetryConfig, clock func() time.Time) *retryQueue {
	return &retryQueue{config: cfg, clock: clock}
}

// schedule re-queues a failed batch. It returns false when the batch has
// used up its attempts or the queue is full.
func (q *retryQueue) schedule(e retryEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e.Attempt++
	if e.Attempt > q.config.MaxRetries || (q.config.MaxPending > 0 && len(q.items) >= q.config.MaxPending) {
		q.totalExhausted++
		return false
	}

	// Exponential backoff: baseDelay * 2^(attempt-1)
	delay := q.config.BaseDelay
	for i := 1; i < e.Attempt; i++ {
		delay *= 2
		if delay > q.config.MaxDelay {
			delay = q.config.MaxDelay
			break
		}
	}
	e.NextRetry = q.clock().Add(delay)

	heap.Push(&q.items, e)
	q.totalRetries++
	return true
}

// drainReady pops every entry whose NextRetry has passed, soonest first.
func (q *retryQueue) drainReady() []retryEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	var ready []retryEntry
	for len(q.items) > 0 && !now.Before(q.items[0].NextRetry) {
		ready = append(ready, heap.Pop(&q.items).(retryEntry))
	}
	return ready
}

// RetryStats holds retry queue statistics.
type RetryStats struct {
	PendingRetries int   `json:"pending_retries"`
	TotalRetries   int64 `json:"total_retries"`
	TotalExhausted int64 `json:"total_exhausted"` // Dropped after MaxRetries
}

func (q *retryQueue) stats() RetryStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return RetryStats{
		PendingRetries: len(q.items),
		TotalRetries:   q.totalRetries,
		TotalExhausted: q.totalExhausted,
	}
}

// Package notify turns engine outcomes into user-facing notifications.
//
// The outbox is fed after an action has been saved. Each notification is
// keyed by its outcome ID, so publishing the same outcome again is a no-op:
//   - Publish queues one notification per outcome
//   - Pending lists what the user has not seen yet
//   - MarkShown acknowledges a notification
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lostpaws/pawpoints/internal/app/progression"
	"github.com/lostpaws/pawpoints/internal/domain"
	"github.com/lostpaws/pawpoints/internal/infra/metrics"
)

// DefaultPendingLimit caps Pending when the caller passes no limit.
const DefaultPendingLimit = 20

// Outbox queues outcomes as notifications.
type Outbox struct {
	store   domain.NotificationStore
	catalog *progression.Catalog
	clock   func() time.Time
	retries *retryQueue
	log     *logrus.Entry
}

// NewOutbox creates an outbox that renders titles from catalog.
func NewOutbox(store domain.NotificationStore, catalog *progression.Catalog, logger *logrus.Entry) *Outbox {
	if catalog == nil {
		catalog = progression.DefaultCatalog()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	o := &Outbox{
		store:   store,
		catalog: catalog,
		clock:   time.Now,
		log:     logger.WithField("component", "notify"),
	}
	o.retries = newRetryQueue(DefaultRetryConfig(), func() time.Time { return o.clock() })
	return o
}

// SetRetryConfig replaces the retry policy. Call before the first Publish.
func (o *Outbox) SetRetryConfig(cfg RetryConfig) {
	o.retries = newRetryQueue(cfg, func() time.Time { return o.clock() })
}

// Publish queues outcomes for userID. It implements progression.OutcomeSink.
func (o *Outbox) Publish(ctx context.Context, userID string, outcomes []domain.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	now := o.clock()
	ns := make([]domain.Notification, 0, len(outcomes))
	for _, out := range outcomes {
		title, body := Render(o.catalog, out)
		ns = append(ns, domain.Notification{
			ID:        out.ID,
			UserID:    userID,
			Outcome:   out,
			Title:     title,
			Body:      body,
			CreatedAt: now,
		})
	}

	if err := o.enqueue(ctx, userID, ns); err != nil {
		o.reschedule(retryEntry{UserID: userID, Batch: ns}, err)
		return fmt.Errorf("enqueue notifications: %w", err)
	}
	return nil
}

func (o *Outbox) enqueue(ctx context.Context, userID string, ns []domain.Notification) error {
	added, err := o.store.Enqueue(ctx, ns)
	if err != nil {
		return err
	}
	metrics.NotificationsQueued.Add(float64(added))
	if dup := len(ns) - added; dup > 0 {
		o.log.WithFields(logrus.Fields{"user_id": userID, "duplicates": dup}).Debug("dropped redelivered outcomes")
	}
	return nil
}

func (o *Outbox) reschedule(e retryEntry, cause error) {
	e.Error = cause.Error()
	log := o.log.WithError(cause).WithFields(logrus.Fields{
		"user_id": e.UserID,
		"batch":   len(e.Batch),
		"attempt": e.Attempt + 1,
	})
	if o.retries.schedule(e) {
		metrics.NotificationRetries.WithLabelValues("scheduled").Inc()
		log.Warn("outbox write failed, retry scheduled")
		return
	}
	metrics.NotificationRetries.WithLabelValues("exhausted").Inc()
	log.Error("outbox write failed, notifications dropped")
}

// RetryPending writes every failed batch whose backoff has elapsed and
// returns how many batches succeeded. Failures are re-queued.
func (o *Outbox) RetryPending(ctx context.Context) int {
	delivered := 0
	for _, e := range o.retries.drainReady() {
		if err := o.enqueue(ctx, e.UserID, e.Batch); err != nil {
			o.reschedule(e, err)
			continue
		}
		metrics.NotificationRetries.WithLabelValues("delivered").Inc()
		delivered++
	}
	return delivered
}

// RunRetries calls RetryPending every interval until ctx is done.
func (o *Outbox) RunRetries(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.RetryPending(ctx)
		}
	}
}

// RetryStats returns current retry queue statistics.
func (o *Outbox) RetryStats() RetryStats {
	return o.retries.stats()
}

// Pending returns unshown notifications for a user, oldest first.
func (o *Outbox) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	ns, err := o.store.Pending(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	if ns == nil {
		ns = []domain.Notification{}
	}
	return ns, nil
}

// MarkShown acknowledges a notification.
func (o *Outbox) MarkShown(ctx context.Context, id string) error {
	return o.store.MarkShown(ctx, id)
}

// Render builds the title and body shown for an outcome.
func Render(c *progression.Catalog, out domain.Outcome) (title, body string) {
	switch out.Type {
	case domain.OutcomeTierUp:
		name := string(out.NewTier)
		if t, ok := c.Tier(out.NewTier); ok {
			name = t.Name
		}
		return "New tier: " + name, fmt.Sprintf("You reached the %s tier. Thank you for helping pets get home!", name)
	case domain.OutcomeBadgeUnlocked:
		name := badgeName(c, out.BadgeID)
		if out.RepeatCount > 1 {
			return "Badge earned again: " + name, fmt.Sprintf("You have earned %s %d times.", name, out.RepeatCount)
		}
		return "Badge unlocked: " + name, fmt.Sprintf("You unlocked the %s badge.", name)
	case domain.OutcomeChallengeCompleted:
		desc := out.ChallengeID
		if ch, ok := c.Challenge(out.ChallengeID); ok && ch.Description != "" {
			desc = ch.Description
		}
		return "Challenge complete", fmt.Sprintf("%s: +%d XP", desc, out.XPReward)
	case domain.OutcomeLevelUp:
		return fmt.Sprintf("Level %d!", out.NewLevel), fmt.Sprintf("You went from level %d to level %d.", out.OldLevel, out.NewLevel)
	default:
		return string(out.Type), ""
	}
}

func badgeName(c *progression.Catalog, id string) string {
	for _, b := range c.Badges() {
		if b.ID == id {
			return b.Name
		}
	}
	return id
}

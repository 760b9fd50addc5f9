package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lostpaws/pawpoints/internal/domain"
	"github.com/lostpaws/pawpoints/internal/infra/metrics"
)

// DefaultStoreTimeout bounds a single load or save.
const DefaultStoreTimeout = 2 * time.Second

// OutcomeSink receives outcomes after the record that produced them has
// been saved. Delivery is at-least-once; outcome IDs allow deduplication.
type OutcomeSink interface {
	Publish(ctx context.Context, userID string, outcomes []domain.Outcome) error
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Catalog      *Catalog
	Location     *time.Location
	StoreTimeout time.Duration
	Clock        func() time.Time
	Sink         OutcomeSink
	Logger       *logrus.Entry
}

// Engine is the progression service. Actions for one user are applied one
// at a time; actions for different users run in parallel.
type Engine struct {
	store   domain.ProgressStore
	rules   *Rules
	sink    OutcomeSink
	timeout time.Duration
	clock   func() time.Time
	locks   *keyedMutex
	log     *logrus.Entry
	tracer  trace.Tracer
}

// NewEngine creates an engine backed by store.
func NewEngine(store domain.ProgressStore, opts Options) *Engine {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		store:   store,
		rules:   NewRules(opts.Catalog, opts.Location),
		sink:    opts.Sink,
		timeout: opts.StoreTimeout,
		clock:   opts.Clock,
		locks:   newKeyedMutex(),
		log:     opts.Logger.WithField("component", "progression"),
		tracer:  otel.Tracer("github.com/lostpaws/pawpoints/internal/app/progression"),
	}
}

// Rules exposes the pure rules the engine applies.
func (e *Engine) Rules() *Rules { return e.rules }

// ─── Write Operations ───────────────────────────────────────────────────────

// RecordReportFiled credits a lost/found report.
func (e *Engine) RecordReportFiled(ctx context.Context, userID string) ([]domain.Outcome, error) {
	return e.Apply(ctx, userID, domain.ReportFiled(e.clock()))
}

// RecordSuccessfulHelp credits a reunion; emergency raises the payout.
func (e *Engine) RecordSuccessfulHelp(ctx context.Context, userID string, emergency bool) ([]domain.Outcome, error) {
	return e.Apply(ctx, userID, domain.SuccessfulHelp(emergency, e.clock()))
}

// CompleteDailyChallenge completes an active daily challenge by hand.
// It returns nil, saving and publishing nothing, when the challenge is
// unknown, expired or already done.
func (e *Engine) CompleteDailyChallenge(ctx context.Context, userID, challengeID string) (*domain.Outcome, error) {
	outcomes, err := e.Apply(ctx, userID, domain.ChallengeManualComplete(challengeID, e.clock()))
	if err != nil {
		return nil, err
	}
	for i := range outcomes {
		if outcomes[i].Type == domain.OutcomeChallengeCompleted && outcomes[i].ChallengeID == challengeID {
			return &outcomes[i], nil
		}
	}
	return nil, nil
}

// Apply validates a, then loads, applies and saves under the user's lock.
// Outcomes are returned and published only after the save succeeded.
//
// Cancelling ctx does not abort an action in progress: store calls run on
// a detached context bounded by the store timeout.
func (e *Engine) Apply(ctx context.Context, userID string, a domain.Action) ([]domain.Outcome, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "progression.Apply", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("action.kind", string(a.Kind)),
	))
	defer span.End()

	start := time.Now()
	unlock := e.locks.Lock(userID)
	defer unlock()

	ioCtx := context.WithoutCancel(ctx)
	prev, err := e.load(ioCtx, userID)
	if err != nil {
		e.fail(span, a, err)
		return nil, err
	}

	next, outcomes := e.rules.Apply(prev, a)
	if a.Kind == domain.ActionChallengeComplete && len(outcomes) == 0 {
		e.log.WithFields(logrus.Fields{
			"user_id":      userID,
			"challenge_id": a.ChallengeID,
		}).Debug("challenge completion ignored")
		span.SetAttributes(attribute.Int("outcomes", 0))
		return []domain.Outcome{}, nil
	}
	if err := e.save(ioCtx, next); err != nil {
		e.fail(span, a, err)
		return nil, err
	}

	metrics.ApplyLatency.Observe(time.Since(start).Seconds())
	metrics.ActionsApplied.WithLabelValues(string(a.Kind)).Inc()
	countResets(prev, next)
	for _, o := range outcomes {
		metrics.OutcomesEmitted.WithLabelValues(string(o.Type)).Inc()
	}
	span.SetAttributes(attribute.Int("outcomes", len(outcomes)))

	log := e.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"action":   a.Kind,
		"points":   next.TotalPoints,
		"xp":       next.XP,
		"outcomes": len(outcomes),
	})
	log.Debug("action applied")

	if e.sink != nil && len(outcomes) > 0 {
		if err := e.sink.Publish(ioCtx, userID, outcomes); err != nil {
			log.WithError(err).Warn("publish outcomes")
		}
	}
	if outcomes == nil {
		outcomes = []domain.Outcome{}
	}
	return outcomes, nil
}

func (e *Engine) fail(span trace.Span, a domain.Action, err error) {
	reason := "error"
	if errors.Is(err, domain.ErrStoreTimeout) {
		reason = "timeout"
	}
	metrics.ActionsFailed.WithLabelValues(string(a.Kind), reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.log.WithError(err).WithField("action", a.Kind).Warn("action not applied")
}

// ─── Read Operations ────────────────────────────────────────────────────────

// Progress returns the user's record as of now. Expired challenges are
// shown already reset; the view is not saved.
func (e *Engine) Progress(ctx context.Context, userID string) (domain.UserProgress, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return domain.UserProgress{}, err
	}
	p, err := e.load(ctx, userID)
	if err != nil {
		return domain.UserProgress{}, err
	}
	p, _ = e.rules.Scheduler().Refresh(p, e.clock())
	return p, nil
}

// GetLevelInfo returns the user's progress toward the next level.
func (e *Engine) GetLevelInfo(ctx context.Context, userID string) (domain.LevelInfo, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return domain.LevelInfo{}, err
	}
	p, err := e.load(ctx, userID)
	if err != nil {
		return domain.LevelInfo{}, err
	}
	return LevelInfoFor(p), nil
}

// GetLeaderboard ranks candidates by XP. The global scope ranks every
// stored user when no candidates are given; the neighborhood scope
// requires candidates. Unknown users rank with zero XP.
func (e *Engine) GetLeaderboard(ctx context.Context, scope domain.LeaderboardScope, candidates []string, limit int) ([]domain.RankedEntry, error) {
	if !scope.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScope, scope)
	}

	ctx, span := e.tracer.Start(ctx, "progression.GetLeaderboard", trace.WithAttributes(
		attribute.String("scope", string(scope)),
	))
	defer span.End()

	ids := candidates
	if len(ids) == 0 {
		if scope == domain.ScopeNeighborhood {
			return nil, domain.ErrNoCandidates
		}
		var err error
		ids, err = e.listUserIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := domain.ValidateUserID(id); err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	progresses, err := e.loadMany(ctx, unique)
	if err != nil {
		return nil, err
	}
	return Leaderboard(progresses, limit), nil
}

// ─── Sweep ──────────────────────────────────────────────────────────────────

// Sweep resets expired challenges for every stored user, including users
// who have not acted since the window closed. It returns how many records
// were rewritten. A failure for one user does not stop the others.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	ids, err := e.listUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	var (
		updated int
		errs    []error
	)
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		changed, err := e.sweepOne(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if changed {
			updated++
		}
	}

	e.log.WithFields(logrus.Fields{
		"users":   len(ids),
		"updated": updated,
		"errors":  len(errs),
	}).Info("challenge sweep finished")
	return updated, errors.Join(errs...)
}

func (e *Engine) sweepOne(ctx context.Context, userID string) (bool, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	ioCtx := context.WithoutCancel(ctx)
	prev, err := e.load(ioCtx, userID)
	if err != nil {
		return false, err
	}
	next, changed := e.rules.Scheduler().Refresh(prev, e.clock())
	if !changed {
		return false, nil
	}
	if err := e.save(ioCtx, next); err != nil {
		return false, err
	}
	countResets(prev, next)
	return true, nil
}

// ─── Store Access ───────────────────────────────────────────────────────────

func (e *Engine) load(ctx context.Context, userID string) (domain.UserProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	p, ok, err := e.store.Load(ctx, userID)
	metrics.StoreLatency.WithLabelValues("load").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.UserProgress{}, storeError("load", userID, err)
	}
	if !ok {
		return domain.NewUserProgress(userID), nil
	}
	p.UserID = userID
	return e.rules.Normalize(p), nil
}

func (e *Engine) save(ctx context.Context, p domain.UserProgress) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	err := e.store.Save(ctx, p)
	metrics.StoreLatency.WithLabelValues("save").Observe(time.Since(start).Seconds())
	if err != nil {
		return storeError("save", p.UserID, err)
	}
	return nil
}

// loadMany loads ids in order, in one round trip when the store supports it.
func (e *Engine) loadMany(ctx context.Context, ids []string) ([]domain.UserProgress, error) {
	bl, ok := e.store.(domain.BatchLoader)
	if !ok {
		out := make([]domain.UserProgress, 0, len(ids))
		for _, id := range ids {
			p, err := e.load(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	found, err := bl.LoadMany(ctx, ids)
	metrics.StoreLatency.WithLabelValues("load_many").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, storeError("load_many", "", err)
	}
	out := make([]domain.UserProgress, 0, len(ids))
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			out = append(out, domain.NewUserProgress(id))
			continue
		}
		p.UserID = id
		out = append(out, e.rules.Normalize(p))
	}
	return out, nil
}

func (e *Engine) listUserIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ids, err := e.store.ListUserIDs(ctx)
	if err != nil {
		return nil, storeError("list", "", err)
	}
	return ids, nil
}

// storeError wraps a store failure so callers can match ErrPersistence,
// and ErrStoreTimeout when the deadline was hit.
func storeError(op, userID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		metrics.StoreFailures.WithLabelValues(op, "timeout").Inc()
		return fmt.Errorf("%w: %w: %s %s: %w", domain.ErrPersistence, domain.ErrStoreTimeout, op, userID, err)
	}
	metrics.StoreFailures.WithLabelValues(op, "error").Inc()
	return fmt.Errorf("%w: %s %s: %w", domain.ErrPersistence, op, userID, err)
}

// countResets records challenge windows that were replaced between two
// snapshots of the same user.
func countResets(prev, next domain.UserProgress) {
	if len(next.DailyChallenges) > 0 &&
		(len(prev.DailyChallenges) == 0 || !prev.DailyChallenges[0].ExpiresAt.Equal(next.DailyChallenges[0].ExpiresAt)) {
		metrics.ChallengeResets.WithLabelValues(string(domain.SlotDaily)).Inc()
	}
	if !next.WeeklyChallenge.IsZero() && !prev.WeeklyChallenge.ExpiresAt.Equal(next.WeeklyChallenge.ExpiresAt) {
		metrics.ChallengeResets.WithLabelValues(string(domain.SlotWeekly)).Inc()
	}
}

package progression

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lostpaws/pawpoints/internal/domain"
)

// outcomeNamespace scopes outcome IDs. An outcome's ID depends only on the
// user and the change it describes, so a retried action that reproduces an
// outcome reproduces its ID as well.
var outcomeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://lostpaws.app/pawpoints/outcome"))

func outcomeID(userID string, kind domain.OutcomeType, key string) string {
	return uuid.NewSHA1(outcomeNamespace, []byte(userID+"\x00"+string(kind)+"\x00"+key)).String()
}

// Rules applies actions to progress records. It holds no mutable state and
// is safe for concurrent use.
type Rules struct {
	catalog   *Catalog
	scheduler *Scheduler
	loc       *time.Location
}

// NewRules creates rules over catalog. Calendar days for streaks are taken
// in loc (UTC when nil).
func NewRules(catalog *Catalog, loc *time.Location) *Rules {
	if loc == nil {
		loc = time.UTC
	}
	return &Rules{catalog: catalog, scheduler: NewScheduler(catalog), loc: loc}
}

// Catalog returns the catalog the rules evaluate against.
func (r *Rules) Catalog() *Catalog { return r.catalog }

// Scheduler returns the challenge scheduler bound to the same catalog.
func (r *Rules) Scheduler() *Scheduler { return r.scheduler }

// Apply returns the record that results from a, plus the outcomes it
// produced. prev is not modified. The action must already be validated.
//
// A manual challenge completion that finds no active, uncompleted daily
// instance changes nothing and produces no outcomes.
//
// Steps run in a fixed order: challenge expiry, streak, counters, payout,
// tier, tier and achievement badges, challenge progress and special
// badges, level.
func (r *Rules) Apply(prev domain.UserProgress, a domain.Action) (domain.UserProgress, []domain.Outcome) {
	p := prev.Clone()
	var out []domain.Outcome

	oldLevel := p.Level()
	heldTier, _ := r.catalog.Tier(p.CurrentTierID)

	r.scheduler.resetDaily(&p, a.At)
	r.scheduler.resetWeekly(&p, a.At)

	// A manual completion that completes nothing leaves the record as it was.
	if a.Kind == domain.ActionChallengeComplete {
		if _, ok := activeDaily(&p, a.ChallengeID, a.At); !ok {
			return prev.Clone(), nil
		}
	}

	advanceStreak(&p, domain.DateOf(a.At, r.loc))

	switch a.Kind {
	case domain.ActionReportFiled:
		p.LifetimeReportsFiled++
		p.WeeklyReportsFiled++
	case domain.ActionSuccessfulHelp:
		p.LifetimeSuccessfulHelps++
		if a.Emergency {
			p.LifetimeEmergencyHelps++
		}
	}

	points, xp := Payout(a, heldTier)
	p.TotalPoints += points
	p.XP += xp

	if o, ok := r.promote(&p); ok {
		out = append(out, o)
	}

	out = append(out, r.evaluateBadges(&p, a.At, domain.BadgeTier, domain.BadgeAchievement)...)

	if a.Kind == domain.ActionChallengeComplete {
		if o := r.scheduler.completeManual(&p, a.ChallengeID, a.At); o != nil {
			out = append(out, *o)
		}
	} else {
		out = append(out, r.scheduler.record(&p, a)...)
	}
	out = append(out, r.evaluateBadges(&p, a.At, domain.BadgeSpecial)...)

	if newLevel := p.Level(); newLevel > oldLevel {
		out = append(out, domain.Outcome{
			ID:       outcomeID(p.UserID, domain.OutcomeLevelUp, strconv.Itoa(newLevel)),
			Type:     domain.OutcomeLevelUp,
			OldLevel: oldLevel,
			NewLevel: newLevel,
		})
	}

	p.UpdatedAt = a.At
	return p, out
}

// Normalize makes a loaded record consistent with the catalog: a nil badge
// map is allocated and a tier that lags behind the help count is raised.
// It never lowers a tier and emits no outcomes.
func (r *Rules) Normalize(p domain.UserProgress) domain.UserProgress {
	next := p.Clone()
	if t := r.catalog.TierFor(next.LifetimeSuccessfulHelps); t.DisplayRank > r.catalog.Rank(next.CurrentTierID) {
		next.CurrentTierID = t.ID
	}
	return next
}

// EvaluateBadges re-runs badge evaluation on a record without an action.
// On a record produced by Apply it returns no outcomes.
func (r *Rules) EvaluateBadges(p domain.UserProgress, now time.Time) (domain.UserProgress, []domain.Outcome) {
	next := p.Clone()
	out := r.evaluateBadges(&next, now, domain.BadgeTier, domain.BadgeAchievement, domain.BadgeSpecial)
	return next, out
}

// promote raises the tier to match lifetime helps. Tiers never go down.
func (r *Rules) promote(p *domain.UserProgress) (domain.Outcome, bool) {
	t := r.catalog.TierFor(p.LifetimeSuccessfulHelps)
	if t.DisplayRank <= r.catalog.Rank(p.CurrentTierID) {
		return domain.Outcome{}, false
	}
	old := p.CurrentTierID
	p.CurrentTierID = t.ID
	return domain.Outcome{
		ID:      outcomeID(p.UserID, domain.OutcomeTierUp, string(t.ID)),
		Type:    domain.OutcomeTierUp,
		OldTier: old,
		NewTier: t.ID,
	}, true
}

func (r *Rules) evaluateBadges(p *domain.UserProgress, now time.Time, categories ...domain.BadgeCategory) []domain.Outcome {
	var out []domain.Outcome
	for _, def := range r.catalog.badges {
		if !hasCategory(categories, def.Category) {
			continue
		}
		target := r.badgeTarget(p, def)
		cur, unlocked := p.UnlockedBadges[def.ID]
		if target <= cur.RepeatCount {
			continue
		}
		if !unlocked {
			cur.UnlockedAt = now
		}
		cur.RepeatCount = target
		p.UnlockedBadges[def.ID] = cur
		out = append(out, domain.Outcome{
			ID:          outcomeID(p.UserID, domain.OutcomeBadgeUnlocked, def.ID+"#"+strconv.Itoa(target)),
			Type:        domain.OutcomeBadgeUnlocked,
			BadgeID:     def.ID,
			RepeatCount: target,
		})
	}
	return out
}

// badgeTarget is the repeat count the record currently qualifies for:
// 0 or 1 for one-shot badges, min(value/requirement, maxRepeats) for
// repeatable ones.
func (r *Rules) badgeTarget(p *domain.UserProgress, def domain.BadgeDefinition) int {
	var value int64
	if def.Category == domain.BadgeTier {
		value = int64(r.catalog.Rank(p.CurrentTierID))
	} else {
		value = metricValue(p, def.Metric)
	}
	if value < def.Requirement {
		return 0
	}
	if !def.Repeatable {
		return 1
	}
	n := value / def.Requirement
	if n > int64(def.MaxRepeats) {
		n = int64(def.MaxRepeats)
	}
	return int(n)
}

func metricValue(p *domain.UserProgress, m domain.Metric) int64 {
	switch m {
	case domain.MetricReportsFiled:
		return p.LifetimeReportsFiled
	case domain.MetricSuccessfulHelps:
		return p.LifetimeSuccessfulHelps
	case domain.MetricEmergencyHelps:
		return p.LifetimeEmergencyHelps
	case domain.MetricStreak:
		return int64(p.StreakLength)
	case domain.MetricLongestStreak:
		return int64(p.LongestStreak)
	case domain.MetricChallengesCompleted:
		return p.LifetimeChallengesCompleted
	default:
		return 0
	}
}

func hasCategory(cs []domain.BadgeCategory, c domain.BadgeCategory) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

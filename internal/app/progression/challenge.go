package progression

import (
	"strconv"
	"time"

	"github.com/lostpaws/pawpoints/internal/domain"
)

// Scheduler owns the daily and weekly challenge instances on a record.
// Every method returns a new snapshot; the input is never modified.
//
// Expiry is a hard reset: an expired instance is replaced by a fresh one
// with zero progress whether or not it was completed.
type Scheduler struct {
	catalog *Catalog
}

// NewScheduler creates a scheduler over catalog.
func NewScheduler(catalog *Catalog) *Scheduler {
	return &Scheduler{catalog: catalog}
}

// Refresh replaces expired (or missing) daily and weekly instances.
// It reports whether anything was replaced.
func (s *Scheduler) Refresh(p domain.UserProgress, now time.Time) (domain.UserProgress, bool) {
	next := p.Clone()
	daily := s.resetDaily(&next, now)
	weekly := s.resetWeekly(&next, now)
	return next, daily || weekly
}

// ResetDaily replaces the daily instances once they have expired.
func (s *Scheduler) ResetDaily(p domain.UserProgress, now time.Time) (domain.UserProgress, bool) {
	next := p.Clone()
	ok := s.resetDaily(&next, now)
	return next, ok
}

// ResetWeekly replaces the weekly instance once it has expired and zeroes
// the weekly report counter.
func (s *Scheduler) ResetWeekly(p domain.UserProgress, now time.Time) (domain.UserProgress, bool) {
	next := p.Clone()
	ok := s.resetWeekly(&next, now)
	return next, ok
}

// Record advances every active instance whose trigger matches the action
// and returns the completions. Rewards are XP only.
func (s *Scheduler) Record(p domain.UserProgress, a domain.Action) (domain.UserProgress, []domain.Outcome) {
	next := p.Clone()
	out := s.record(&next, a)
	return next, out
}

// CompleteManual completes an active daily instance by ID. Unknown,
// expired or already completed challenges are a no-op and return nil.
func (s *Scheduler) CompleteManual(p domain.UserProgress, challengeID string, now time.Time) (domain.UserProgress, *domain.Outcome) {
	next := p.Clone()
	o := s.completeManual(&next, challengeID, now)
	return next, o
}

// ─── In-place helpers (used by Rules on an already cloned record) ───────────

func (s *Scheduler) resetDaily(p *domain.UserProgress, now time.Time) bool {
	if len(p.DailyChallenges) > 0 && !p.DailyChallenges[0].Expired(now) {
		return false
	}
	defs := s.catalog.Challenges(domain.SlotDaily)
	if len(defs) == 0 && len(p.DailyChallenges) == 0 {
		return false
	}
	expires := now.Add(domain.SlotDaily.Window())
	fresh := make([]domain.ChallengeInstance, 0, len(defs))
	for _, def := range defs {
		fresh = append(fresh, newInstance(def, expires))
	}
	p.DailyChallenges = fresh
	return true
}

func (s *Scheduler) resetWeekly(p *domain.UserProgress, now time.Time) bool {
	if !p.WeeklyChallenge.IsZero() && !p.WeeklyChallenge.Expired(now) {
		return false
	}
	def, ok := s.weeklyFor(now)
	if !ok {
		return false
	}
	p.WeeklyChallenge = newInstance(def, now.Add(domain.SlotWeekly.Window()))
	p.WeeklyReportsFiled = 0
	return true
}

// weeklyFor rotates through the weekly templates by ISO week number.
func (s *Scheduler) weeklyFor(now time.Time) (domain.ChallengeDefinition, bool) {
	defs := s.catalog.Challenges(domain.SlotWeekly)
	if len(defs) == 0 {
		return domain.ChallengeDefinition{}, false
	}
	year, week := now.UTC().ISOWeek()
	return defs[(year*53+week)%len(defs)], true
}

func (s *Scheduler) record(p *domain.UserProgress, a domain.Action) []domain.Outcome {
	var out []domain.Outcome
	for i := range p.DailyChallenges {
		if o, ok := s.advance(p, &p.DailyChallenges[i], a); ok {
			out = append(out, o)
		}
	}
	if !p.WeeklyChallenge.IsZero() {
		if o, ok := s.advance(p, &p.WeeklyChallenge, a); ok {
			out = append(out, o)
		}
	}
	return out
}

func (s *Scheduler) advance(p *domain.UserProgress, inst *domain.ChallengeInstance, a domain.Action) (domain.Outcome, bool) {
	if inst.Completed || inst.Expired(a.At) {
		return domain.Outcome{}, false
	}
	def, ok := s.catalog.Challenge(inst.DefinitionID)
	if !ok || def.Trigger == "" || def.Trigger != a.Kind {
		return domain.Outcome{}, false
	}
	inst.Progress++
	if inst.Progress < inst.Requirement {
		return domain.Outcome{}, false
	}
	return complete(p, inst, def), true
}

// activeDaily returns the daily instance with challengeID when it can still
// be completed at now.
func activeDaily(p *domain.UserProgress, challengeID string, now time.Time) (*domain.ChallengeInstance, bool) {
	for i := range p.DailyChallenges {
		inst := &p.DailyChallenges[i]
		if inst.DefinitionID != challengeID {
			continue
		}
		if inst.Completed || inst.Expired(now) {
			return nil, false
		}
		return inst, true
	}
	return nil, false
}

func (s *Scheduler) completeManual(p *domain.UserProgress, challengeID string, now time.Time) *domain.Outcome {
	inst, ok := activeDaily(p, challengeID, now)
	if !ok {
		return nil
	}
	def, ok := s.catalog.Challenge(inst.DefinitionID)
	if !ok {
		return nil
	}
	o := complete(p, inst, def)
	return &o
}

func newInstance(def domain.ChallengeDefinition, expires time.Time) domain.ChallengeInstance {
	return domain.ChallengeInstance{
		DefinitionID: def.ID,
		Requirement:  def.Requirement,
		ExpiresAt:    expires,
	}
}

func complete(p *domain.UserProgress, inst *domain.ChallengeInstance, def domain.ChallengeDefinition) domain.Outcome {
	inst.Progress = inst.Requirement
	inst.Completed = true
	p.XP += def.RewardXP
	p.LifetimeChallengesCompleted++
	return domain.Outcome{
		ID:          outcomeID(p.UserID, domain.OutcomeChallengeCompleted, def.ID+"@"+strconv.FormatInt(inst.ExpiresAt.Unix(), 10)),
		Type:        domain.OutcomeChallengeCompleted,
		ChallengeID: def.ID,
		XPReward:    def.RewardXP,
	}
}

// Package progression implements the rewards engine: the static catalog,
// the pure rules that turn an action into a new UserProgress plus outcomes,
// the daily/weekly challenge scheduler, the read models, and the Engine
// service that serialises actions per user around the progress store.
package progression

import (
	"fmt"

	"github.com/lostpaws/pawpoints/internal/domain"
)

// Catalog is the immutable reference data: tiers, badges and challenge
// templates. It is built once and shared without locking.
type Catalog struct {
	tiers      []domain.Tier
	badges     []domain.BadgeDefinition
	challenges []domain.ChallengeDefinition

	tierByID      map[domain.TierID]domain.Tier
	challengeByID map[string]domain.ChallengeDefinition
}

// NewCatalog validates and indexes the given definitions.
// Tiers must be listed in ascending order.
func NewCatalog(tiers []domain.Tier, badges []domain.BadgeDefinition, challenges []domain.ChallengeDefinition) (*Catalog, error) {
	c := &Catalog{
		tiers:         append([]domain.Tier(nil), tiers...),
		badges:        append([]domain.BadgeDefinition(nil), badges...),
		challenges:    append([]domain.ChallengeDefinition(nil), challenges...),
		tierByID:      make(map[domain.TierID]domain.Tier, len(tiers)),
		challengeByID: make(map[string]domain.ChallengeDefinition, len(challenges)),
	}

	for i, t := range c.tiers {
		if t.ID == domain.TierNone {
			return nil, fmt.Errorf("tier %d: empty id", i)
		}
		if _, dup := c.tierByID[t.ID]; dup {
			return nil, fmt.Errorf("tier %q: duplicate id", t.ID)
		}
		if t.DisplayRank != i+1 {
			return nil, fmt.Errorf("tier %q: display rank %d, want %d", t.ID, t.DisplayRank, i+1)
		}
		if i > 0 && t.MinLifetimeHelped <= c.tiers[i-1].MinLifetimeHelped {
			return nil, fmt.Errorf("tier %q: min lifetime helped must be strictly increasing", t.ID)
		}
		if t.MinLifetimeHelped < 0 {
			return nil, fmt.Errorf("tier %q: negative min lifetime helped", t.ID)
		}
		c.tierByID[t.ID] = t
	}

	seen := make(map[string]bool, len(c.badges))
	for _, b := range c.badges {
		if seen[b.ID] {
			return nil, fmt.Errorf("badge %q: duplicate id", b.ID)
		}
		seen[b.ID] = true
		if b.Requirement <= 0 {
			return nil, fmt.Errorf("badge %q: requirement must be positive", b.ID)
		}
		switch b.Category {
		case domain.BadgeTier:
			if b.Requirement > int64(len(c.tiers)) {
				return nil, fmt.Errorf("badge %q: no tier with rank %d", b.ID, b.Requirement)
			}
		case domain.BadgeAchievement, domain.BadgeSpecial:
			if b.Metric == "" {
				return nil, fmt.Errorf("badge %q: missing metric", b.ID)
			}
		default:
			return nil, fmt.Errorf("badge %q: unknown category %q", b.ID, b.Category)
		}
		if b.Repeatable && b.MaxRepeats <= 0 {
			return nil, fmt.Errorf("badge %q: repeatable badge needs max repeats", b.ID)
		}
	}

	for _, ch := range c.challenges {
		if _, dup := c.challengeByID[ch.ID]; dup {
			return nil, fmt.Errorf("challenge %q: duplicate id", ch.ID)
		}
		if ch.Slot != domain.SlotDaily && ch.Slot != domain.SlotWeekly {
			return nil, fmt.Errorf("challenge %q: unknown slot %q", ch.ID, ch.Slot)
		}
		if ch.Requirement <= 0 {
			return nil, fmt.Errorf("challenge %q: requirement must be positive", ch.ID)
		}
		c.challengeByID[ch.ID] = ch
	}

	return c, nil
}

// MustCatalog is NewCatalog that panics on invalid static data.
func MustCatalog(tiers []domain.Tier, badges []domain.BadgeDefinition, challenges []domain.ChallengeDefinition) *Catalog {
	c, err := NewCatalog(tiers, badges, challenges)
	if err != nil {
		panic(err)
	}
	return c
}

// Tiers returns the tiers in ascending order.
func (c *Catalog) Tiers() []domain.Tier {
	return append([]domain.Tier(nil), c.tiers...)
}

// Badges returns all badge definitions in evaluation order.
func (c *Catalog) Badges() []domain.BadgeDefinition {
	return append([]domain.BadgeDefinition(nil), c.badges...)
}

// Challenges returns the templates for one slot in catalog order.
func (c *Catalog) Challenges(slot domain.ChallengeSlot) []domain.ChallengeDefinition {
	var out []domain.ChallengeDefinition
	for _, ch := range c.challenges {
		if ch.Slot == slot {
			out = append(out, ch)
		}
	}
	return out
}

// Challenge looks up a template by ID.
func (c *Catalog) Challenge(id string) (domain.ChallengeDefinition, bool) {
	ch, ok := c.challengeByID[id]
	return ch, ok
}

// Tier looks up a tier by ID. TierNone yields the zero Tier and false.
func (c *Catalog) Tier(id domain.TierID) (domain.Tier, bool) {
	t, ok := c.tierByID[id]
	return t, ok
}

// Rank returns the display rank of a tier, 0 for TierNone or unknown IDs.
func (c *Catalog) Rank(id domain.TierID) int {
	return c.tierByID[id].DisplayRank
}

// TierFor returns the highest tier whose threshold is <= helped,
// or the zero Tier when none qualifies.
func (c *Catalog) TierFor(helped int64) domain.Tier {
	var best domain.Tier
	for _, t := range c.tiers {
		if t.MinLifetimeHelped > helped {
			break
		}
		best = t
	}
	return best
}

// ─── Default Catalog ────────────────────────────────────────────────────────

// Tier IDs in the default catalog.
const (
	TierHelper   domain.TierID = "helper"
	TierGuardian domain.TierID = "guardian"
	TierHero     domain.TierID = "hero"
	TierChampion domain.TierID = "champion"
	TierLegend   domain.TierID = "legend"
)

// Challenge IDs in the default catalog.
const (
	ChallengeDailyReport    = "daily_report"
	ChallengeDailyHelp      = "daily_help"
	ChallengeDailyCheckIn   = "daily_checkin"
	ChallengeWeeklyWatch    = "weekly_neighborhood_watch"
	ChallengeWeeklyReunions = "weekly_reunion_drive"
)

var defaultCatalog = MustCatalog(defaultTiers(), defaultBadges(), defaultChallenges())

// DefaultCatalog returns the shared production catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

func defaultTiers() []domain.Tier {
	return []domain.Tier{
		{ID: TierHelper, Name: "Helper", DisplayRank: 1, MinLifetimeHelped: 1},
		{ID: TierGuardian, Name: "Guardian", DisplayRank: 2, MinLifetimeHelped: 5},
		{ID: TierHero, Name: "Hero", DisplayRank: 3, MinLifetimeHelped: 15, GrantsXPBonus: true},
		{ID: TierChampion, Name: "Champion", DisplayRank: 4, MinLifetimeHelped: 50, GrantsXPBonus: true},
		{ID: TierLegend, Name: "Legend", DisplayRank: 5, MinLifetimeHelped: 100, GrantsXPBonus: true},
	}
}

func defaultBadges() []domain.BadgeDefinition {
	return []domain.BadgeDefinition{
		// ── Tier badges ────────────────────────────────────────────────
		{ID: "tier_helper", Name: "Helper", Category: domain.BadgeTier, Requirement: 1},
		{ID: "tier_guardian", Name: "Guardian", Category: domain.BadgeTier, Requirement: 2},
		{ID: "tier_hero", Name: "Hero", Category: domain.BadgeTier, Requirement: 3},
		{ID: "tier_champion", Name: "Champion", Category: domain.BadgeTier, Requirement: 4},
		{ID: "tier_legend", Name: "Legend", Category: domain.BadgeTier, Requirement: 5},

		// ── Achievements ───────────────────────────────────────────────
		{ID: "first_report", Name: "First Sighting", Category: domain.BadgeAchievement,
			Metric: domain.MetricReportsFiled, Requirement: 1},
		{ID: "watchful_eye", Name: "Watchful Eye", Category: domain.BadgeAchievement,
			Metric: domain.MetricReportsFiled, Requirement: 10},
		{ID: "neighborhood_sentinel", Name: "Neighborhood Sentinel", Category: domain.BadgeAchievement,
			Metric: domain.MetricReportsFiled, Requirement: 50},
		{ID: "first_reunion", Name: "First Reunion", Category: domain.BadgeAchievement,
			Metric: domain.MetricSuccessfulHelps, Requirement: 1},
		{ID: "emergency_responder", Name: "Emergency Responder", Category: domain.BadgeAchievement,
			Metric: domain.MetricEmergencyHelps, Requirement: 1},
		{ID: "streak_3", Name: "On a Roll", Category: domain.BadgeAchievement,
			Metric: domain.MetricStreak, Requirement: 3},
		{ID: "streak_7", Name: "Week Warrior", Category: domain.BadgeAchievement,
			Metric: domain.MetricStreak, Requirement: 7},
		{ID: "streak_30", Name: "Monthly Guardian", Category: domain.BadgeAchievement,
			Metric: domain.MetricStreak, Requirement: 30},
		{ID: "fortnight_force", Name: "Fortnight Force", Category: domain.BadgeAchievement,
			Metric: domain.MetricLongestStreak, Requirement: 14},
		{ID: "reunion_regular", Name: "Reunion Regular", Category: domain.BadgeAchievement,
			Metric: domain.MetricSuccessfulHelps, Requirement: 10, Repeatable: true, MaxRepeats: 10},

		// ── Special ────────────────────────────────────────────────────
		{ID: "challenge_starter", Name: "Challenge Accepted", Category: domain.BadgeSpecial,
			Metric: domain.MetricChallengesCompleted, Requirement: 1},
		{ID: "challenge_master", Name: "Challenge Master", Category: domain.BadgeSpecial,
			Metric: domain.MetricChallengesCompleted, Requirement: 25, Repeatable: true, MaxRepeats: 20},
	}
}

func defaultChallenges() []domain.ChallengeDefinition {
	return []domain.ChallengeDefinition{
		{ID: ChallengeDailyReport, Description: "File a lost or found report", Slot: domain.SlotDaily,
			Trigger: domain.ActionReportFiled, Requirement: 1, RewardXP: 25},
		{ID: ChallengeDailyHelp, Description: "Help reunite a pet", Slot: domain.SlotDaily,
			Trigger: domain.ActionSuccessfulHelp, Requirement: 1, RewardXP: 75},
		{ID: ChallengeDailyCheckIn, Description: "Check the map for nearby pets", Slot: domain.SlotDaily,
			Requirement: 1, RewardXP: 10},
		{ID: ChallengeWeeklyWatch, Description: "File 5 reports in your neighborhood this week", Slot: domain.SlotWeekly,
			Trigger: domain.ActionReportFiled, Requirement: 5, RewardXP: 300},
		{ID: ChallengeWeeklyReunions, Description: "Help reunite 2 pets this week", Slot: domain.SlotWeekly,
			Trigger: domain.ActionSuccessfulHelp, Requirement: 2, RewardXP: 400},
	}
}

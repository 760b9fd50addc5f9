// Package domain holds the progression engine's types.
// A user's progress is a single record derived from the actions they take:
// reports filed, pets reunited, and daily/weekly challenge completions.
package domain

import (
	"encoding/json"
	"time"
)

// PointsPerLevel is the number of points that make up one level.
const PointsPerLevel = 100

// ─── Tier Types ─────────────────────────────────────────────────────────────

// TierID identifies a tier in the catalog. The empty ID means "no tier yet".
type TierID string

// TierNone is held by users that have not helped anyone yet.
const TierNone TierID = ""

// Tier is a membership level unlocked by lifetime successful helps.
type Tier struct {
	ID                TierID `json:"id"`
	Name              string `json:"name"`
	DisplayRank       int    `json:"display_rank"`
	MinLifetimeHelped int64  `json:"min_lifetime_helped"`
	GrantsXPBonus     bool   `json:"grants_xp_bonus"`
}

// ─── Badge Types ────────────────────────────────────────────────────────────

// BadgeCategory groups badges by how they are unlocked.
type BadgeCategory string

const (
	BadgeTier        BadgeCategory = "tier_badge"
	BadgeAchievement BadgeCategory = "achievement"
	BadgeSpecial     BadgeCategory = "special"
)

// Metric names the progress counter an achievement or special badge watches.
type Metric string

const (
	MetricReportsFiled        Metric = "reports_filed"
	MetricSuccessfulHelps     Metric = "successful_helps"
	MetricEmergencyHelps      Metric = "emergency_helps"
	MetricStreak              Metric = "streak"
	MetricLongestStreak       Metric = "longest_streak"
	MetricChallengesCompleted Metric = "challenges_completed"
)

// BadgeDefinition describes one unlockable badge.
// For tier badges Requirement is the tier's DisplayRank; for every other
// category it is the threshold on Metric.
type BadgeDefinition struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Category    BadgeCategory `json:"category"`
	Metric      Metric        `json:"metric,omitempty"`
	Requirement int64         `json:"requirement"`
	Repeatable  bool          `json:"repeatable"`
	MaxRepeats  int           `json:"max_repeats,omitempty"` // ignored unless Repeatable
}

// UnlockedBadge records when a badge was first earned and how many times.
type UnlockedBadge struct {
	UnlockedAt  time.Time `json:"unlocked_at"`
	RepeatCount int       `json:"repeat_count"`
}

// ─── Challenge Types ────────────────────────────────────────────────────────

// ChallengeSlot is the window a challenge lives in.
type ChallengeSlot string

const (
	SlotDaily  ChallengeSlot = "daily"
	SlotWeekly ChallengeSlot = "weekly"
)

// Window returns how long an instance in this slot lives.
func (s ChallengeSlot) Window() time.Duration {
	if s == SlotWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// ChallengeDefinition is the catalog template a challenge instance is cut from.
// Trigger is the action kind that advances progress; manual-only challenges
// leave it empty.
type ChallengeDefinition struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Slot        ChallengeSlot `json:"slot"`
	Trigger     ActionKind    `json:"trigger,omitempty"`
	Requirement int           `json:"requirement"`
	RewardXP    int64         `json:"reward_xp"`
}

// ChallengeInstance is a time-boxed copy of a definition with progress.
type ChallengeInstance struct {
	DefinitionID string    `json:"definition_id"`
	Progress     int       `json:"progress"`
	Requirement  int       `json:"requirement"`
	Completed    bool      `json:"completed"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsZero reports whether no instance has been created yet.
func (c ChallengeInstance) IsZero() bool {
	return c.DefinitionID == ""
}

// Expired returns true once now is strictly past the deadline.
func (c ChallengeInstance) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ProgressPct returns completion percentage (0-100).
func (c ChallengeInstance) ProgressPct() float64 {
	if c.Requirement <= 0 {
		return 100.0
	}
	pct := float64(c.Progress) / float64(c.Requirement) * 100.0
	if pct > 100.0 {
		pct = 100.0
	}
	return pct
}

// ─── User Progress ──────────────────────────────────────────────────────────

// UserProgress is the persisted per-user record. Level is never stored
// independently: it is always derived from TotalPoints.
type UserProgress struct {
	UserID string `json:"user_id"`

	LifetimeReportsFiled        int64 `json:"lifetime_reports_filed"`
	LifetimeSuccessfulHelps     int64 `json:"lifetime_successful_helps"`
	LifetimeEmergencyHelps      int64 `json:"lifetime_emergency_helps"`
	LifetimeChallengesCompleted int64 `json:"lifetime_challenges_completed"`

	TotalPoints   int64  `json:"total_points"`
	XP            int64  `json:"xp"`
	CurrentTierID TierID `json:"current_tier_id"`

	StreakLength   int  `json:"streak_length"`
	LongestStreak  int  `json:"longest_streak"`
	LastActionDate Date `json:"last_action_date"`

	WeeklyReportsFiled int `json:"weekly_reports_filed"`

	UnlockedBadges  map[string]UnlockedBadge `json:"unlocked_badges"`
	DailyChallenges []ChallengeInstance      `json:"daily_challenges"`
	WeeklyChallenge ChallengeInstance        `json:"weekly_challenge"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserProgress returns the zero record a user starts with.
func NewUserProgress(userID string) UserProgress {
	return UserProgress{
		UserID:         userID,
		UnlockedBadges: make(map[string]UnlockedBadge),
	}
}

// Level derives the level from TotalPoints.
func (p UserProgress) Level() int {
	return LevelFor(p.TotalPoints)
}

// LevelFor returns floor(points/100) + 1.
func LevelFor(points int64) int {
	if points < 0 {
		points = 0
	}
	return int(points/PointsPerLevel) + 1
}

// HasBadge reports whether the badge has been unlocked at least once.
func (p UserProgress) HasBadge(id string) bool {
	_, ok := p.UnlockedBadges[id]
	return ok
}

// Clone returns a deep copy so callers can derive a new snapshot
// without touching the original.
func (p UserProgress) Clone() UserProgress {
	cp := p
	cp.UnlockedBadges = make(map[string]UnlockedBadge, len(p.UnlockedBadges))
	for k, v := range p.UnlockedBadges {
		cp.UnlockedBadges[k] = v
	}
	if p.DailyChallenges != nil {
		cp.DailyChallenges = make([]ChallengeInstance, len(p.DailyChallenges))
		copy(cp.DailyChallenges, p.DailyChallenges)
	}
	return cp
}

// MarshalJSON writes the derived level next to the stored fields so that
// stores can index it. The value is ignored when decoding.
func (p UserProgress) MarshalJSON() ([]byte, error) {
	type alias UserProgress
	return json.Marshal(struct {
		alias
		Level int `json:"level"`
	}{alias(p), p.Level()})
}

// ─── Read Models ────────────────────────────────────────────────────────────

// LevelInfo is the progress toward the next level.
type LevelInfo struct {
	CurrentLevel    int   `json:"current_level"`
	TotalPoints     int64 `json:"total_points"`
	PointsIntoLevel int64 `json:"points_into_level"`
	PointsToNext    int64 `json:"points_to_next"`
}

// LeaderboardScope selects which population a leaderboard ranks.
type LeaderboardScope string

const (
	ScopeGlobal       LeaderboardScope = "global"
	ScopeNeighborhood LeaderboardScope = "neighborhood"
)

// IsValid returns true if the scope is a known value.
func (s LeaderboardScope) IsValid() bool {
	switch s {
	case ScopeGlobal, ScopeNeighborhood:
		return true
	default:
		return false
	}
}

// RankedEntry is one row of a leaderboard.
type RankedEntry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	XP           int64  `json:"xp"`
	TotalPoints  int64  `json:"total_points"`
	Level        int    `json:"level"`
	TierID       TierID `json:"tier_id"`
	StreakLength int    `json:"streak_length"`
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// ─── Actions ────────────────────────────────────────────────────────────────

// ActionKind tags the Action union.
type ActionKind string

const (
	ActionReportFiled       ActionKind = "report_filed"
	ActionSuccessfulHelp    ActionKind = "successful_help"
	ActionChallengeComplete ActionKind = "challenge_manual_complete"
)

// Action is one user action fed to the rules. Emergency only applies to
// ActionSuccessfulHelp and ChallengeID only to ActionChallengeComplete.
type Action struct {
	Kind        ActionKind `json:"kind"`
	Emergency   bool       `json:"emergency,omitempty"`
	ChallengeID string     `json:"challenge_id,omitempty"`
	At          time.Time  `json:"at"`
}

// ReportFiled builds a report action.
func ReportFiled(at time.Time) Action {
	return Action{Kind: ActionReportFiled, At: at}
}

// SuccessfulHelp builds a reunion action. The emergency flag is asserted by
// the caller and only changes the payout.
func SuccessfulHelp(emergency bool, at time.Time) Action {
	return Action{Kind: ActionSuccessfulHelp, Emergency: emergency, At: at}
}

// ChallengeManualComplete builds a manual completion of a daily challenge.
func ChallengeManualComplete(challengeID string, at time.Time) Action {
	return Action{Kind: ActionChallengeComplete, ChallengeID: challengeID, At: at}
}

// Validate rejects malformed actions before they reach the rules.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionReportFiled, ActionSuccessfulHelp:
	case ActionChallengeComplete:
		if strings.TrimSpace(a.ChallengeID) == "" {
			return ErrInvalidChallengeID
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, a.Kind)
	}
	if a.At.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidAction)
	}
	return nil
}

// ValidateUserID rejects empty or whitespace-only user identifiers.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	return nil
}

// ─── Outcomes ───────────────────────────────────────────────────────────────

// OutcomeType tags the Outcome union.
type OutcomeType string

const (
	OutcomeTierUp             OutcomeType = "tier_up"
	OutcomeBadgeUnlocked      OutcomeType = "badge_unlocked"
	OutcomeChallengeCompleted OutcomeType = "challenge_completed"
	OutcomeLevelUp            OutcomeType = "level_up"
)

// Outcome describes one state change produced by applying an action.
// ID is derived from the change itself, so a redelivered outcome carries
// the same ID and can be dropped by the receiver.
type Outcome struct {
	ID   string      `json:"id"`
	Type OutcomeType `json:"type"`

	// TierUp
	OldTier TierID `json:"old_tier,omitempty"`
	NewTier TierID `json:"new_tier,omitempty"`

	// BadgeUnlocked
	BadgeID     string `json:"badge_id,omitempty"`
	RepeatCount int    `json:"repeat_count,omitempty"`

	// ChallengeCompleted
	ChallengeID string `json:"challenge_id,omitempty"`
	XPReward    int64  `json:"xp_reward,omitempty"`

	// LevelUp
	OldLevel int `json:"old_level,omitempty"`
	NewLevel int `json:"new_level,omitempty"`
}

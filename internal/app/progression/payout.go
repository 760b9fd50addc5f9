package progression

import "github.com/lostpaws/pawpoints/internal/domain"

// Base payouts and the extra XP granted to bonus tiers.
const (
	ReportPoints  = 10
	ReportXP      = 50
	ReportBonusXP = 25

	HelpPoints  = 50
	HelpXP      = 100
	HelpBonusXP = 50

	EmergencyPoints  = 100
	EmergencyXP      = 500
	EmergencyBonusXP = 100
)

// Payout returns the points and XP an action earns for a user holding tier.
// The tier is the one held before the action. Manual challenge completion
// earns nothing here; its reward comes from the challenge itself.
func Payout(a domain.Action, tier domain.Tier) (points, xp int64) {
	var bonus int64
	switch {
	case a.Kind == domain.ActionReportFiled:
		points, xp, bonus = ReportPoints, ReportXP, ReportBonusXP
	case a.Kind == domain.ActionSuccessfulHelp && a.Emergency:
		points, xp, bonus = EmergencyPoints, EmergencyXP, EmergencyBonusXP
	case a.Kind == domain.ActionSuccessfulHelp:
		points, xp, bonus = HelpPoints, HelpXP, HelpBonusXP
	default:
		return 0, 0
	}
	if tier.GrantsXPBonus {
		xp += bonus
	}
	return points, xp
}

// ─── Level Read Model ───────────────────────────────────────────────────────

// LevelInfoFor computes level progress from a snapshot.
func LevelInfoFor(p domain.UserProgress) domain.LevelInfo {
	points := p.TotalPoints
	if points < 0 {
		points = 0
	}
	into := points % domain.PointsPerLevel
	return domain.LevelInfo{
		CurrentLevel:    domain.LevelFor(points),
		TotalPoints:     points,
		PointsIntoLevel: into,
		PointsToNext:    domain.PointsPerLevel - into,
	}
}

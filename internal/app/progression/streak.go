package progression

import "github.com/lostpaws/pawpoints/internal/domain"

// DayRelation is the result of comparing an action's day to the last action day.
type DayRelation int

const (
	FirstAction DayRelation = iota // no previous action
	SameDay
	NextDay
	Gap // two or more days later, or earlier than the last action
)

// CompareDays classifies day relative to last.
func CompareDays(last, day domain.Date) DayRelation {
	if last.IsZero() {
		return FirstAction
	}
	switch day.DaysSince(last) {
	case 0:
		return SameDay
	case 1:
		return NextDay
	default:
		return Gap
	}
}

// advanceStreak updates the streak fields for an action taken on day.
// Actions on the same day leave the record untouched.
func advanceStreak(p *domain.UserProgress, day domain.Date) {
	switch CompareDays(p.LastActionDate, day) {
	case SameDay:
		return
	case NextDay:
		p.StreakLength++
	case FirstAction, Gap:
		p.StreakLength = 1
	}
	p.LastActionDate = day
	if p.StreakLength > p.LongestStreak {
		p.LongestStreak = p.StreakLength
	}
}

package progression

import (
	"sort"

	"github.com/lostpaws/pawpoints/internal/domain"
)

// Leaderboard ranks snapshots by XP descending, ties broken by user ID
// ascending. A limit <= 0 returns every entry. The input is not reordered.
func Leaderboard(progresses []domain.UserProgress, limit int) []domain.RankedEntry {
	entries := make([]domain.RankedEntry, 0, len(progresses))
	for _, p := range progresses {
		entries = append(entries, domain.RankedEntry{
			UserID:       p.UserID,
			XP:           p.XP,
			TotalPoints:  p.TotalPoints,
			Level:        p.Level(),
			TierID:       p.CurrentTierID,
			StreakLength: p.StreakLength,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].XP != entries[j].XP {
			return entries[i].XP > entries[j].XP
		}
		return entries[i].UserID < entries[j].UserID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lostpaws/pawpoints/internal/domain"
)

func init() {
	leaderboardCmd.Flags().StringVar(&boardScope, "scope", string(domain.ScopeGlobal), "global or neighborhood")
	leaderboardCmd.Flags().StringSliceVar(&boardUsers, "users", nil, "Candidate users (required for neighborhood)")
	leaderboardCmd.Flags().IntVar(&boardLimit, "limit", 10, "Maximum entries (0 = all)")
	rootCmd.AddCommand(levelCmd, progressCmd, leaderboardCmd)
}

var (
	boardScope string
	boardUsers []string
	boardLimit int
)

var levelCmd = &cobra.Command{
	Use:   "level <user>",
	Short: "Show level and progress to the next level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		info, err := d.Engine.GetLevelInfo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Level %d (%d points)\n", info.CurrentLevel, info.TotalPoints)
		fmt.Fprintf(out, "  %s %d/%d to level %d\n",
			progressBar(info.PointsIntoLevel, info.PointsIntoLevel+info.PointsToNext, 20),
			info.PointsIntoLevel, info.PointsIntoLevel+info.PointsToNext, info.CurrentLevel+1)
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress <user>",
	Short: "Show tier, streak, badges and challenges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		p, err := d.Engine.Progress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		catalog := d.Engine.Rules().Catalog()
		tier := "none"
		if t, ok := catalog.Tier(p.CurrentTierID); ok {
			tier = t.Name
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User:     %s\n", p.UserID)
		fmt.Fprintf(out, "Tier:     %s\n", tier)
		fmt.Fprintf(out, "Points:   %d (level %d)\n", p.TotalPoints, p.Level())
		fmt.Fprintf(out, "XP:       %d\n", p.XP)
		fmt.Fprintf(out, "Streak:   %d days (best %d)\n", p.StreakLength, p.LongestStreak)
		fmt.Fprintf(out, "Reports:  %d   Reunions: %d\n", p.LifetimeReportsFiled, p.LifetimeSuccessfulHelps)
		fmt.Fprintf(out, "Badges:   %d\n", len(p.UnlockedBadges))

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHALLENGE\tPROGRESS\tEXPIRES")
		for _, c := range append(append([]domain.ChallengeInstance{}, p.DailyChallenges...), p.WeeklyChallenge) {
			if c.IsZero() {
				continue
			}
			state := fmt.Sprintf("%d/%d (%.0f%%)", c.Progress, c.Requirement, c.ProgressPct())
			if c.Completed {
				state += " ✓"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.DefinitionID, state, c.ExpiresAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Rank users by XP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		entries, err := d.Engine.GetLeaderboard(cmd.Context(), domain.LeaderboardScope(boardScope), boardUsers, boardLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No users yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tUSER\tXP\tLEVEL\tTIER")
		for _, e := range entries {
			tier := string(e.TierID)
			if tier == "" {
				tier = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", e.Rank, e.UserID, e.XP, e.Level, tier)
		}
		return w.Flush()
	},
}

// progressBar renders a fixed-width bar like [=====     ].
func progressBar(done, total int64, width int) string {
	if total <= 0 {
		return "[" + strings.Repeat(" ", width) + "]"
	}
	filled := int(done * int64(width) / total)
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

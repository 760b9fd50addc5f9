package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	helpCmd.Flags().BoolVar(&helpEmergency, "emergency", false, "The reunion was an emergency case")
	challengeCmd.AddCommand(challengeCompleteCmd)
	rootCmd.AddCommand(reportCmd, helpCmd, challengeCmd)
}

var helpEmergency bool

var reportCmd = &cobra.Command{
	Use:   "report <user>",
	Short: "Record a filed lost or found report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		outcomes, err := d.Engine.RecordReportFiled(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printOutcomes(cmd.OutOrStdout(), d, outcomes)
		return nil
	},
}

var helpCmd = &cobra.Command{
	Use:   "help-pet <user>",
	Short: "Record a successful reunion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		outcomes, err := d.Engine.RecordSuccessfulHelp(cmd.Context(), args[0], helpEmergency)
		if err != nil {
			return err
		}
		printOutcomes(cmd.OutOrStdout(), d, outcomes)
		return nil
	},
}

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Work with daily and weekly challenges",
}

var challengeCompleteCmd = &cobra.Command{
	Use:   "complete <user> <challenge-id>",
	Short: "Complete an active daily challenge by hand",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		outcome, err := d.Engine.CompleteDailyChallenge(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if outcome == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Challenge %s is not active or already complete.\n", args[1])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s complete (+%d XP)\n", outcome.ChallengeID, outcome.XPReward)
		return nil
	},
}

// Package cli implements the pawpoints command-line interface using Cobra.
// Each subcommand maps to one progression operation.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pawpoints",
	Short: "Rewards and progression for lost-pet helpers",
	Long: `pawpoints tracks points, tiers, badges, streaks and challenges
for people who report lost pets and help reunite them.

Run 'pawpoints serve' for the HTTP API, or use the subcommands to act on
the configured store directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

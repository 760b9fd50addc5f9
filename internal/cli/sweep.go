package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reset expired challenges for every stored user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		updated, err := d.RunSweep(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Swept: %d records updated\n", updated)
		return err
	},
}

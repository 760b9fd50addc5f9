package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	notificationsCmd.Flags().IntVar(&notifLimit, "limit", 0, "Maximum notifications (0 = default)")
	notificationsCmd.Flags().BoolVar(&notifAck, "ack", false, "Mark the listed notifications as shown")
	rootCmd.AddCommand(notificationsCmd)
}

var (
	notifLimit int
	notifAck   bool
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications <user>",
	Aliases: []string{"inbox"},
	Short:   "List pending reward notifications",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		ns, err := d.Outbox.Pending(cmd.Context(), args[0], notifLimit)
		if err != nil {
			return err
		}
		if len(ns) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No pending notifications.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tTITLE\tDETAIL")
		for _, n := range ns {
			fmt.Fprintf(w, "%s\t%s\t%s\n", n.CreatedAt.Format("2006-01-02 15:04"), n.Title, n.Body)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if notifAck {
			for _, n := range ns {
				if err := d.Outbox.MarkShown(cmd.Context(), n.ID); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

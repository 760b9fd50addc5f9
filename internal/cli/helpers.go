package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lostpaws/pawpoints/internal/app/notify"
	"github.com/lostpaws/pawpoints/internal/daemon"
	"github.com/lostpaws/pawpoints/internal/domain"
)

// openDaemon wires services from the config without starting the server.
func openDaemon(cmd *cobra.Command) (*daemon.Daemon, error) {
	return daemon.New(cmd.Context(), rootCmd.Version)
}

// printOutcomes writes one line per outcome.
func printOutcomes(w io.Writer, d *daemon.Daemon, outcomes []domain.Outcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "Recorded. Nothing new unlocked.")
		return
	}
	for _, o := range outcomes {
		title, body := notify.Render(d.Engine.Rules().Catalog(), o)
		fmt.Fprintf(w, "★ %s: %s\n", title, body)
	}
}

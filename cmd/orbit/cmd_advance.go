package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newAdvanceCmd creates the "orbit advance" subcommand.
func newAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Promote the next queued mission",
		Long:  "Rotates out a finished active mission and promotes the queue\nhead to active. A no-op while the active mission is still running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			promoted, snap, err := rt.engine.AdvanceWorkflow(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case promoted != "":
				fmt.Fprintf(out, "promoted %s\n", promoted)
			case snap.Workflow.ActiveMission != "":
				fmt.Fprintf(out, "%s still running; nothing promoted\n", snap.Workflow.ActiveMission)
			default:
				fmt.Fprintln(out, "queue empty; nothing promoted")
			}
			return nil
		},
	}
}

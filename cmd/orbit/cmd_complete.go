package main

import (
	"fmt"

	"orbit/pkg/engine"

	"github.com/spf13/cobra"
)

// completeConfig holds configuration for the complete command.
type completeConfig struct {
	summary string
	notes   string
}

// newCompleteCmd creates the "orbit complete" subcommand.
func newCompleteCmd() *cobra.Command {
	var cfg completeConfig

	cmd := &cobra.Command{
		Use:   "complete <mission-id>",
		Short: "Complete a mission",
		Long:  "Marks the mission completed and rotates it out of the active\nslot. Fails while sub-missions are still open.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			m, err := rt.engine.CompleteMission(cmd.Context(), args[0], engine.CompleteOptions{
				Summary: cfg.summary,
				Notes:   cfg.notes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed %s at %s\n", m.ID, m.CompletedAt)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.summary, "summary", "s", "", "completion summary")
	cmd.Flags().StringVar(&cfg.notes, "notes", "", "notes to attach")
	return cmd
}

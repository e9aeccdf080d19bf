package main

import (
	"fmt"

	"orbit/pkg/engine"
	"orbit/pkg/protocol"

	"github.com/spf13/cobra"
)

// startConfig holds configuration for the start command.
type startConfig struct {
	objective string
	phase     string
	notes     string
	tags      []string
}

// newStartCmd creates the "orbit start" subcommand.
func newStartCmd() *cobra.Command {
	var cfg startConfig

	cmd := &cobra.Command{
		Use:   "start <mission-id>",
		Short: "Start a mission",
		Long:  "Marks the mission in progress and makes it the active mission.\nThe record is created if it does not exist yet.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			m, err := rt.engine.StartMission(cmd.Context(), args[0], engine.StartOptions{
				Objective: cfg.objective,
				Notes:     cfg.notes,
				Tags:      cfg.tags,
				Phase:     protocol.Phase(cfg.phase),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started %s [phase=%s]\n", m.ID, m.Phase)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.objective, "objective", "o", "", "mission objective")
	cmd.Flags().StringVar(&cfg.phase, "phase", "", "starting phase (default execution)")
	cmd.Flags().StringVar(&cfg.notes, "notes", "", "notes to attach")
	cmd.Flags().StringSliceVar(&cfg.tags, "tag", nil, "tags to attach (repeatable)")
	return cmd
}

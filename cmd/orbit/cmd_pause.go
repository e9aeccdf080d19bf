package main

import (
	"fmt"

	"orbit/pkg/engine"
	"orbit/pkg/protocol"

	"github.com/spf13/cobra"
)

// newPauseCmd creates the "orbit pause" subcommand.
func newPauseCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "pause <mission-id>",
		Short: "Pause a mission",
		Long:  "Sets the mission's status to paused and frees the active slot.\nThe phase is left alone so the mission resumes where it stopped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			snap, err := rt.engine.PauseMission(cmd.Context(), args[0], engine.PauseOptions{Note: note})
			if err != nil {
				return err
			}
			if m, ok := snap.Missions[args[0]]; ok && m.Status == protocol.StatusPaused {
				fmt.Fprintf(cmd.OutOrStdout(), "paused %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing to pause for %s\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "note recorded with the pause")
	return cmd
}

// newResumeCmd creates the "orbit resume" subcommand.
func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <mission-id>",
		Short: "Resume a paused mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			snap, err := rt.engine.ResumeMission(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if snap.Workflow.ActiveMission == args[0] {
				fmt.Fprintf(cmd.OutOrStdout(), "resumed %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing to resume for %s\n", args[0])
			}
			return nil
		},
	}
}

// newBlockCmd creates the "orbit block" subcommand.
func newBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <mission-id> [reason]",
		Short: "Mark a mission blocked",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			reason := ""
			if len(args) == 2 {
				reason = args[1]
			}
			m, err := rt.engine.BlockMission(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "blocked %s [phase=%s]\n", m.ID, m.Phase)
			return nil
		},
	}
}

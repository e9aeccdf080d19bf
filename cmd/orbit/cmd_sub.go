package main

import (
	"fmt"

	"orbit/pkg/engine"
	"orbit/pkg/state"

	"github.com/spf13/cobra"
)

// newSubCmd creates the "orbit sub" command group for delegation.
func newSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sub",
		Short: "Manage sub-mission delegation",
		Long:  "Pushes, commits, and rolls back sub-mission frames on a\nmission's delegation stack.",
	}
	cmd.AddCommand(
		newSubBeginCmd(),
		newSubCompleteCmd(),
		newSubRollbackCmd(),
		newSubRecordCmd(),
	)
	return cmd
}

func newSubBeginCmd() *cobra.Command {
	var objective string

	cmd := &cobra.Command{
		Use:   "begin <mission-id> <sub-id>",
		Short: "Push a sub-mission frame",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			m, err := rt.engine.BeginSubMission(cmd.Context(), args[0], args[1], engine.BeginOptions{
				Objective: objective,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "began %s on %s (depth %d)\n",
				args[1], args[0], len(m.ActiveSubMissions))
			return nil
		},
	}

	cmd.Flags().StringVarP(&objective, "objective", "o", "", "sub-mission objective")
	return cmd
}

func newSubCompleteCmd() *cobra.Command {
	var (
		input, output, status string
		skipPropagation       bool
	)

	cmd := &cobra.Command{
		Use:   "complete <mission-id> <sub-id>",
		Short: "Commit the top sub-mission frame",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			m, err := rt.engine.CompleteSubMission(cmd.Context(), args[0], args[1], engine.CompleteSubOptions{
				Input:           input,
				Output:          output,
				Status:          status,
				SkipPropagation: skipPropagation,
			})
			if err != nil {
				return err
			}
			focus := m.CurrentSubMission
			if focus == "" {
				focus = "(mission root)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "committed %s; focus back on %s\n", args[1], focus)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "input that drove the sub-mission")
	cmd.Flags().StringVar(&output, "output", "", "sub-mission output")
	cmd.Flags().StringVar(&status, "status", "", "result status (default completed)")
	cmd.Flags().BoolVar(&skipPropagation, "skip-propagation", false, "skip the context propagation run")
	return cmd
}

func newSubRollbackCmd() *cobra.Command {
	var (
		reason      string
		keepContext bool
	)

	cmd := &cobra.Command{
		Use:   "rollback <mission-id> <sub-id>",
		Short: "Roll back the top sub-mission frame",
		Long:  "Pops the top frame without recording a result and restores the\ncontext snapshot taken when the frame was pushed.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			_, err = rt.engine.RollbackSubMission(cmd.Context(), args[0], args[1], engine.RollbackOptions{
				Reason:             reason,
				SkipContextRestore: keepContext,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s on %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the rollback")
	cmd.Flags().BoolVar(&keepContext, "keep-context", false, "do not restore the pre-push context")
	return cmd
}

func newSubRecordCmd() *cobra.Command {
	var (
		input, output, status, timestamp string
		noDedupe                         bool
	)

	cmd := &cobra.Command{
		Use:   "record <mission-id> <sub-id>",
		Short: "Record an externally-run sub-mission result",
		Long:  "Appends a result for a sub-mission that ran outside the\nbegin/complete stack. Duplicate (id, timestamp) pairs are skipped.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if status == "" {
				status = "completed"
			}
			m, err := rt.engine.RecordSubMissionResult(cmd.Context(), args[0], state.SubMissionResult{
				SubMissionID: args[1],
				Input:        input,
				Output:       output,
				Status:       status,
				Timestamp:    timestamp,
			}, engine.RecordOptions{NoDedupe: noDedupe})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s (%d results on %s)\n",
				args[1], len(m.SubMissions), args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "input that drove the sub-mission")
	cmd.Flags().StringVar(&output, "output", "", "sub-mission output")
	cmd.Flags().StringVar(&status, "status", "", "result status (default completed)")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "result timestamp (default now)")
	cmd.Flags().BoolVar(&noDedupe, "no-dedupe", false, "append even when an identical result exists")
	return cmd
}

package main

import (
	"fmt"

	"orbit/pkg/engine"
	"orbit/pkg/protocol"

	"github.com/spf13/cobra"
)

// phaseConfig holds configuration for the phase command.
type phaseConfig struct {
	reason      string
	sub         string
	propagate   bool
	noPropagate bool
}

// newPhaseCmd creates the "orbit phase" subcommand.
func newPhaseCmd() *cobra.Command {
	var cfg phaseConfig

	cmd := &cobra.Command{
		Use:   "phase <mission-id> <phase>",
		Short: "Move a mission to a new phase",
		Long:  "Transitions the mission to the given phase. Entering execution\nor review triggers context propagation unless suppressed.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			opts := engine.UpdatePhaseOptions{
				Reason:            cfg.reason,
				CurrentSubMission: cfg.sub,
			}
			if cfg.propagate {
				on := true
				opts.AutoPropagate = &on
			}
			if cfg.noPropagate {
				off := false
				opts.AutoPropagate = &off
			}

			m, err := rt.engine.UpdatePhase(cmd.Context(), args[0], protocol.Phase(args[1]), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now in %s\n", m.ID, m.Phase)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.reason, "reason", "", "reason recorded with the transition")
	cmd.Flags().StringVar(&cfg.sub, "sub", "", "sub-mission to focus")
	cmd.Flags().BoolVar(&cfg.propagate, "propagate", false, "force context propagation")
	cmd.Flags().BoolVar(&cfg.noPropagate, "no-propagate", false, "suppress context propagation")
	cmd.MarkFlagsMutuallyExclusive("propagate", "no-propagate")
	return cmd
}

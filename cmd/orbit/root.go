package main

import (
	"fmt"

	"orbit/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root orbit command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "orbit",
		Short:         "Orbit agent mission control plane",
		Long:          "orbit manages mission state for agent workflows:\nrouting, phase tracking, sub-mission delegation, and run loops.",
		Version:       fmt.Sprintf("orbit %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newInitCmd(),
		newStatusCmd(),
		newRegisterCmd(),
		newAdvanceCmd(),
		newStartCmd(),
		newPhaseCmd(),
		newCompleteCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newBlockCmd(),
		newSubCmd(),
		newHistoryCmd(),
		newGatesCmd(),
		newQueryCmd(),
		newDashCmd(),
	)

	return cmd
}

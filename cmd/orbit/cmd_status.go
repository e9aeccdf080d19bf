package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"orbit/pkg/protocol"
	"orbit/pkg/state"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOut bool
}

// newStatusCmd creates the "orbit status" subcommand.
func newStatusCmd() *cobra.Command {
	var cfg statusConfig

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show mission and workflow state",
		Long:  "Displays the workflow queue, the active mission,\nand a summary table of every tracked mission.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			snap, err := rt.store.State()
			if err != nil {
				return err
			}

			if cfg.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			formatStatus(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOut, "json", false, "emit the raw state snapshot as JSON")
	return cmd
}

// formatStatus renders the human-readable status view.
func formatStatus(w io.Writer, snap *state.Snapshot) {
	wf := snap.Workflow
	active := wf.ActiveMission
	if active == "" {
		active = "(none)"
	}
	fmt.Fprintf(w, "active:    %s\n", active)
	fmt.Fprintf(w, "queue:     %s\n", joinOrNone(wf.Queue))
	fmt.Fprintf(w, "paused:    %s\n", joinOrNone(wf.Paused))
	fmt.Fprintf(w, "completed: %s\n", joinOrNone(wf.Completed))

	if len(snap.Missions) == 0 {
		fmt.Fprintln(w, "\nno missions tracked")
		return
	}

	ids := make([]string, 0, len(snap.Missions))
	for id := range snap.Missions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MISSION\tPHASE\tSTATUS\tSUB\tOBJECTIVE")
	for _, id := range ids {
		m := snap.Missions[id]
		sub := m.CurrentSubMission
		if sub == "" {
			sub = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			id, colorPhase(m.Phase), m.Status, sub, truncate(m.Objective, 48))
	}
	tw.Flush()
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// phaseColor maps phases to terminal colors; blocked stands out.
var phaseColor = map[protocol.Phase]string{ //nolint:gochecknoglobals
	protocol.PhaseExecution: "10",
	protocol.PhaseReview:    "12",
	protocol.PhaseBlocked:   "9",
	protocol.PhaseCompleted: "8",
}

// colorPhase styles the phase name when stdout is a TTY.
func colorPhase(p protocol.Phase) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return string(p)
	}
	c, ok := phaseColor[p]
	if !ok {
		return string(p)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Render(string(p))
}

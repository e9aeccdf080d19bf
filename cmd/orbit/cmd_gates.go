package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// gatesConfig holds configuration for the gates command.
type gatesConfig struct {
	limit  int
	events bool
}

// newGatesCmd creates the "orbit gates" subcommand.
func newGatesCmd() *cobra.Command {
	var cfg gatesConfig

	cmd := &cobra.Command{
		Use:   "gates [mission-id]",
		Short: "Show quality gate verdicts",
		Long:  "Lists quality gate verdicts recorded for missions, newest\nfirst. With --events, raw telemetry events are shown instead.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			var mission string
			if len(args) == 1 {
				mission = args[0]
			}
			out := cmd.OutOrStdout()

			if cfg.events {
				rows, err := rt.telemetry.Events(cmd.Context(), mission, cfg.limit)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "no events")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, r := range rows {
					mid := r.MissionID
					if mid == "" {
						mid = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%s\n", r.CreatedAt, mid, r.Category, r.Type, r.Status)
				}
				return tw.Flush()
			}

			rows, err := rt.telemetry.QualityGates(cmd.Context(), mission, cfg.limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "no quality gates")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.CreatedAt, r.MissionID, r.Gate, r.Status, r.Detail)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&cfg.limit, "limit", "n", 20, "show the most recent N rows (0 = all)")
	cmd.Flags().BoolVar(&cfg.events, "events", false, "show raw telemetry events instead of gates")
	return cmd
}

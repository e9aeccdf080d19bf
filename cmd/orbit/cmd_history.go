package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"orbit/pkg/eventlog"
	"orbit/pkg/protocol"

	"github.com/spf13/cobra"
)

// historyConfig holds configuration for the history command.
type historyConfig struct {
	action      string
	tail        int
	follow      bool
	transitions bool
	highlights  bool
}

// newHistoryCmd creates the "orbit history" subcommand.
func newHistoryCmd() *cobra.Command {
	var cfg historyConfig

	cmd := &cobra.Command{
		Use:   "history [mission-id]",
		Short: "Query the mission history log",
		Long:  "Displays events from the history log, optionally filtered by\nmission. --transitions and --highlights derive summary views.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			log := eventlog.Open(paths.HistoryPath)

			var mission string
			if len(args) == 1 {
				mission = args[0]
			}

			render := func() error {
				events, err := log.Query(cmd.Context(), eventlog.QueryOpts{
					Mission: mission,
					Action:  cfg.action,
					Limit:   cfg.tail,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch {
				case cfg.transitions:
					all, err := log.LoadEvents(cmd.Context())
					if err != nil {
						return err
					}
					printTransitions(out, eventlog.Transitions(all), mission)
				case cfg.highlights:
					printEvents(out, eventlog.Highlights(events, cfg.tail))
				default:
					printEvents(out, events)
				}
				return nil
			}

			if err := render(); err != nil {
				return err
			}
			if !cfg.follow {
				return nil
			}
			return log.Watch(cmd.Context(), func() { _ = render() })
		},
	}

	cmd.Flags().StringVar(&cfg.action, "action", "", "filter by action")
	cmd.Flags().IntVarP(&cfg.tail, "tail", "n", 20, "show the most recent N events (0 = all)")
	cmd.Flags().BoolVarP(&cfg.follow, "follow", "f", false, "watch the log and re-render on change")
	cmd.Flags().BoolVar(&cfg.transitions, "transitions", false, "show status transition edges")
	cmd.Flags().BoolVar(&cfg.highlights, "highlights", false, "show failures, blocks, and unmet needs")
	return cmd
}

func printEvents(w io.Writer, events []protocol.HistoryRecord) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no events")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ev := range events {
		summary := ev.Summary
		if summary == "" {
			summary = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ev.TS, ev.Mission, ev.Action, ev.Status, summary)
	}
	tw.Flush()
}

func printTransitions(w io.Writer, edges []protocol.TransitionEdge, mission string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	n := 0
	for _, e := range edges {
		if mission != "" && e.Mission != mission {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s -> %s\tx%d\t%s\n", e.Mission, e.From, e.To, e.Count, e.TS)
		n++
	}
	tw.Flush()
	if n == 0 {
		fmt.Fprintln(w, "no transitions")
	}
}

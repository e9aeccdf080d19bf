package main

import (
	"fmt"

	"orbit/pkg/engine"

	"github.com/spf13/cobra"
)

// queryConfig holds configuration for the query command.
type queryConfig struct {
	base   string
	events int
}

// newQueryCmd creates the "orbit query" subcommand.
func newQueryCmd() *cobra.Command {
	var cfg queryConfig

	cmd := &cobra.Command{
		Use:   "query <mission-id>",
		Short: "Compose a dynamic query for a mission",
		Long:  "Builds a prompt from the mission's state, its latest context\nsummary, and recent history events, and prints it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			query, err := rt.engine.BuildDynamicQuery(cmd.Context(), args[0], cfg.base, engine.QueryOptions{
				MaxEvents: cfg.events,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), query)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.base, "base", "b", "", "base query text to prepend")
	cmd.Flags().IntVar(&cfg.events, "events", 0, "recent events to include (default from config)")
	return cmd
}

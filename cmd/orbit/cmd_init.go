package main

import (
	"fmt"
	"os"

	"orbit/pkg/config"
	"orbit/pkg/state"
	"orbit/pkg/telemetry"

	"github.com/spf13/cobra"
)

// newInitCmd creates the "orbit init" subcommand.
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the orbit home directory",
		Long:  "Creates the orbit home directory with a default config file,\nan empty state snapshot, and the telemetry database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			if err := os.MkdirAll(paths.OrbitHome, 0o755); err != nil {
				return fmt.Errorf("create orbit home: %w", err)
			}
			if err := os.MkdirAll(paths.RuntimeDir, 0o755); err != nil {
				return fmt.Errorf("create runtime dir: %w", err)
			}

			if _, err := os.Stat(paths.ConfigPath); err == nil && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "config exists at %s (use --force to overwrite)\n", paths.ConfigPath)
			} else {
				if err := config.Default().Write(paths.ConfigPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", paths.ConfigPath)
			}

			// Loading an absent snapshot persists the empty one.
			store := state.New(paths.StatePath)
			if _, err := store.State(); err != nil {
				return err
			}

			tel, err := telemetry.Open(paths.DBPath)
			if err != nil {
				return err
			}
			defer tel.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", paths.OrbitHome)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

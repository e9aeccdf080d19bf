package main

import (
	"errors"
	"fmt"

	"orbit/pkg/config"
	"orbit/pkg/state"

	"github.com/spf13/cobra"
)

// registerConfig holds configuration for the register command.
type registerConfig struct {
	manifest string
	reset    bool
}

// newRegisterCmd creates the "orbit register" subcommand.
func newRegisterCmd() *cobra.Command {
	var cfg registerConfig

	cmd := &cobra.Command{
		Use:   "register [mission-id...]",
		Short: "Register missions in the workflow queue",
		Long:  "Appends mission ids to the workflow queue, creating records as\nneeded. With -f the missions come from a YAML manifest instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			ids := args
			var manifest *config.Manifest
			if cfg.manifest != "" {
				if len(args) > 0 {
					return errors.New("pass mission ids or -f, not both")
				}
				manifest, err = config.LoadManifest(cfg.manifest)
				if err != nil {
					return err
				}
				ids = manifest.IDs()
			}
			if len(ids) == 0 {
				return errors.New("no missions to register")
			}

			snap, err := rt.engine.RegisterWorkflow(cmd.Context(), ids, cfg.reset)
			if err != nil {
				return err
			}

			// Manifest missions carry descriptive fields; seed the fresh
			// records with them without touching phase or status.
			if manifest != nil {
				_, err = rt.store.Update(func(s *state.Snapshot) error {
					for _, mm := range manifest.Missions {
						m := s.EnsureMission(mm.ID)
						if mm.Objective != "" {
							m.Objective = mm.Objective
						}
						if mm.Notes != "" {
							m.Notes = mm.Notes
						}
						if len(mm.Tags) > 0 {
							m.Tags = append([]string{}, mm.Tags...)
						}
						for k, v := range state.CloneMap(mm.Metadata) {
							if m.Metadata == nil {
								m.Metadata = map[string]any{}
							}
							m.Metadata[k] = v
						}
					}
					return nil
				})
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "registered %d mission(s); queue: %s\n",
				len(ids), joinOrNone(snap.Workflow.Queue))
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.manifest, "file", "f", "", "YAML workflow manifest to register")
	cmd.Flags().BoolVar(&cfg.reset, "reset", false, "replace the queue instead of appending")
	return cmd
}

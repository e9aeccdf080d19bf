package main

import (
	"fmt"
	"os"

	"orbit/pkg/config"
	"orbit/pkg/engine"
	"orbit/pkg/eventlog"
	"orbit/pkg/state"
	"orbit/pkg/summarize"
	"orbit/pkg/telemetry"
)

// runtime bundles the wired control plane for one CLI invocation.
type runtime struct {
	paths     *Paths
	cfg       *config.Config
	store     *state.Store
	history   *eventlog.Log
	telemetry *telemetry.Store
	engine    *engine.Engine
}

// openRuntime resolves paths, loads the configuration, and wires the engine
// with its collaborators. Call close when done to release the telemetry
// database.
func openRuntime() (*runtime, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	if err := os.MkdirAll(paths.OrbitHome, 0o755); err != nil {
		return nil, fmt.Errorf("create orbit home: %w", err)
	}

	cfg, err := config.Load(paths.ConfigPath)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.Open(paths.DBPath)
	if err != nil {
		return nil, err
	}

	store := state.New(paths.StatePath)
	history := eventlog.Open(paths.HistoryPath)
	eng := engine.New(cfg.EngineConfig(paths.RuntimeDir), store, summarize.Headline{}, history, tel)

	return &runtime{
		paths:     paths,
		cfg:       cfg,
		store:     store,
		history:   history,
		telemetry: tel,
		engine:    eng,
	}, nil
}

func (r *runtime) close() {
	if r.telemetry != nil {
		_ = r.telemetry.Close()
	}
}

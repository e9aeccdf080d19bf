// Package config loads the Orbit configuration file (TOML) and workflow
// manifests (YAML). A missing config file yields defaults; a malformed one
// is an error.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"orbit/pkg/engine"
	"orbit/pkg/protocol"
)

// Config is the $ORBIT_HOME/config.toml structure.
type Config struct {
	// DelegationLimit caps the sub-mission stack depth.
	DelegationLimit int `toml:"delegation_limit"`
	// QueryEventWindow is the recent-event count woven into dynamic queries.
	QueryEventWindow int `toml:"query_event_window"`
	// AutoPropagatePhases are phase names whose entry triggers context
	// propagation.
	AutoPropagatePhases []string `toml:"auto_propagate_phases"`

	Boomerang BoomerangConfig `toml:"boomerang"`
	RSIP      RSIPConfig      `toml:"rsip"`
}

// BoomerangConfig tunes the retry pipeline.
type BoomerangConfig struct {
	MaxRetries    int `toml:"max_retries"`
	RetentionDays int `toml:"retention_days"`
}

// RSIPConfig bounds the convergence loop.
type RSIPConfig struct {
	MaxIterations int `toml:"max_iterations"`
	MinIterations int `toml:"min_iterations"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DelegationLimit:     8,
		QueryEventWindow:    5,
		AutoPropagatePhases: []string{string(protocol.PhaseExecution), string(protocol.PhaseReview)},
		Boomerang:           BoomerangConfig{MaxRetries: 2, RetentionDays: 7},
		RSIP:                RSIPConfig{MaxIterations: 5, MinIterations: 1},
	}
}

// Load reads the config file at path. A missing file returns Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DelegationLimit < 1 {
		return errors.New("delegation_limit must be at least 1")
	}
	for _, p := range c.AutoPropagatePhases {
		if !protocol.Phase(p).Valid() {
			return fmt.Errorf("unknown phase %q in auto_propagate_phases", p)
		}
	}
	if c.Boomerang.MaxRetries < 0 {
		return errors.New("boomerang.max_retries must not be negative")
	}
	if c.Boomerang.RetentionDays < 0 {
		return errors.New("boomerang.retention_days must not be negative")
	}
	if c.RSIP.MaxIterations < 1 {
		return errors.New("rsip.max_iterations must be at least 1")
	}
	if c.RSIP.MinIterations < 0 {
		return errors.New("rsip.min_iterations must not be negative")
	}
	return nil
}

// EngineConfig converts the file configuration into engine tunables.
func (c *Config) EngineConfig(runtimeRoot string) engine.Config {
	phases := make([]protocol.Phase, 0, len(c.AutoPropagatePhases))
	for _, p := range c.AutoPropagatePhases {
		phases = append(phases, protocol.Phase(p))
	}
	return engine.Config{
		DelegationLimit:        c.DelegationLimit,
		AutoPropagatePhases:    phases,
		RuntimeRoot:            runtimeRoot,
		QueryEventWindow:       c.QueryEventWindow,
		BoomerangMaxRetries:    c.Boomerang.MaxRetries,
		BoomerangRetentionDays: c.Boomerang.RetentionDays,
		RSIPMaxIterations:      c.RSIP.MaxIterations,
		RSIPMinIterations:      c.RSIP.MinIterations,
	}
}

// Write persists the configuration as TOML.
func (c *Config) Write(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

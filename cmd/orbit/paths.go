package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// orbitDir is the default state directory name under $HOME.
const orbitDir = ".orbit"

// Paths holds all resolved orbit state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	OrbitHome   string // ~/.orbit or ORBIT_HOME
	StatePath   string // state.json or ORBIT_STATE_PATH
	ConfigPath  string // config.toml or ORBIT_CONFIG_PATH
	HistoryPath string // history.jsonl or ORBIT_HISTORY_PATH
	DBPath      string // telemetry.db or ORBIT_DB_PATH
	RuntimeDir  string // runtime/ or ORBIT_RUNTIME_DIR
}

// ResolvePaths returns all orbit paths, respecting env var overrides.
// Environment variables:
//   - ORBIT_HOME: base directory for all orbit state (default: ~/.orbit)
//   - ORBIT_STATE_PATH: mission state snapshot (default: $ORBIT_HOME/state.json)
//   - ORBIT_CONFIG_PATH: configuration file (default: $ORBIT_HOME/config.toml)
//   - ORBIT_HISTORY_PATH: mission history log (default: $ORBIT_HOME/history.jsonl)
//   - ORBIT_DB_PATH: telemetry database (default: $ORBIT_HOME/telemetry.db)
//   - ORBIT_RUNTIME_DIR: checkpoint scratch space (default: $ORBIT_HOME/runtime)
//
// If ORBIT_HOME is set, it becomes the base for all default paths.
// Specific env vars override both the default and the ORBIT_HOME base.
func ResolvePaths() (*Paths, error) {
	home, err := resolveOrbitHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		OrbitHome:   home,
		StatePath:   resolvePathWithEnv("ORBIT_STATE_PATH", home, "state.json"),
		ConfigPath:  resolvePathWithEnv("ORBIT_CONFIG_PATH", home, "config.toml"),
		HistoryPath: resolvePathWithEnv("ORBIT_HISTORY_PATH", home, "history.jsonl"),
		DBPath:      resolvePathWithEnv("ORBIT_DB_PATH", home, "telemetry.db"),
		RuntimeDir:  resolvePathWithEnv("ORBIT_RUNTIME_DIR", home, "runtime"),
	}, nil
}

// resolveOrbitHome returns the orbit home directory from ORBIT_HOME or ~/.orbit.
func resolveOrbitHome() (string, error) {
	if v := os.Getenv("ORBIT_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, orbitDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}

package protocol

// SchemaDDL defines the SQLite schema for the Orbit telemetry database.
// Tables: events, quality_gates.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Structured telemetry events: lifecycle, guardrail warnings, loop runs
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    mission_id TEXT,
    category TEXT NOT NULL,
    type TEXT NOT NULL,
    status TEXT,
    data TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Quality gate verdicts: pass/warning/fail checkpoints per mission
CREATE TABLE IF NOT EXISTS quality_gates (
    id INTEGER PRIMARY KEY,
    mission_id TEXT,
    gate TEXT NOT NULL,
    status TEXT NOT NULL,
    detail TEXT,
    data TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_mission ON events(mission_id);
CREATE INDEX IF NOT EXISTS idx_gates_mission ON quality_gates(mission_id);
`

// Package telemetry implements the observability sink: structured events
// and quality gate verdicts recorded to a SQLite database. It satisfies the
// engine's Telemetry contract; readers (the CLI and dashboard) query the
// same database via Events and QualityGates.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"orbit/pkg/engine"
	"orbit/pkg/protocol"
)

// Store records to and reads from one telemetry database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the telemetry database at dbPath and ensures the
// schema is applied.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping telemetry db: %w", err)
	}
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply telemetry schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle. The schema must already be
// applied.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the database connection. Safe to call multiple times.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordEvent implements engine.Telemetry.
func (s *Store) RecordEvent(ctx context.Context, ev engine.TelemetryEvent) error {
	data, err := marshalData(ev.Data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (mission_id, category, type, status, data) VALUES (?, ?, ?, ?, ?)`,
		ev.MissionID, ev.Category, ev.Type, ev.Status, data)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecordQualityGate implements engine.Telemetry.
func (s *Store) RecordQualityGate(ctx context.Context, gate engine.QualityGate) error {
	data, err := marshalData(gate.Data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quality_gates (mission_id, gate, status, detail, data) VALUES (?, ?, ?, ?, ?)`,
		gate.MissionID, gate.Gate, string(gate.Status), gate.Detail, data)
	if err != nil {
		return fmt.Errorf("record quality gate: %w", err)
	}
	return nil
}

// EventRow is one recorded telemetry event.
type EventRow struct {
	ID        int64
	MissionID string
	Category  string
	Type      string
	Status    string
	Data      string
	CreatedAt string
}

// Events returns recorded events, newest first, optionally filtered by
// mission id. Limit 0 means no limit.
func (s *Store) Events(ctx context.Context, missionID string, limit int) ([]EventRow, error) {
	query := `SELECT id, mission_id, category, type, status, data, created_at FROM events`
	var args []any
	if missionID != "" {
		query += ` WHERE mission_id = ?`
		args = append(args, missionID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		var missionID, status, data sql.NullString
		if err := rows.Scan(&r.ID, &missionID, &r.Category, &r.Type, &status, &data, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.MissionID = missionID.String
		r.Status = status.String
		r.Data = data.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// GateRow is one recorded quality gate verdict.
type GateRow struct {
	ID        int64
	MissionID string
	Gate      string
	Status    string
	Detail    string
	Data      string
	CreatedAt string
}

// QualityGates returns recorded gate verdicts, newest first, optionally
// filtered by mission id. Limit 0 means no limit.
func (s *Store) QualityGates(ctx context.Context, missionID string, limit int) ([]GateRow, error) {
	query := `SELECT id, mission_id, gate, status, detail, data, created_at FROM quality_gates`
	var args []any
	if missionID != "" {
		query += ` WHERE mission_id = ?`
		args = append(args, missionID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quality gates: %w", err)
	}
	defer rows.Close()

	var out []GateRow
	for rows.Next() {
		var r GateRow
		var missionID, detail, data sql.NullString
		if err := rows.Scan(&r.ID, &missionID, &r.Gate, &r.Status, &detail, &data, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quality gate: %w", err)
		}
		r.MissionID = missionID.String
		r.Detail = detail.String
		r.Data = data.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func marshalData(data map[string]any) (sql.NullString, error) {
	if len(data) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal data: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

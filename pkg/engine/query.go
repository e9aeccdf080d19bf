package engine

import (
	"context"
	"fmt"
	"strings"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

// QueryOptions tune BuildDynamicQuery.
type QueryOptions struct {
	// MaxEvents caps the recent history events woven into the query
	// (default Config.QueryEventWindow).
	MaxEvents int
}

// BuildDynamicQuery composes a textual prompt for the mission from its
// status, objective, and latest context summary, plus the most recent
// history events from the external history source. The composed query is
// persisted as the mission's lastDynamicQuery snapshot and returned;
// queryReady fires after persistence.
func (e *Engine) BuildDynamicQuery(ctx context.Context, missionID, baseQuery string, opts QueryOptions) (string, error) {
	maxEvents := opts.MaxEvents
	if maxEvents <= 0 {
		maxEvents = e.cfg.QueryEventWindow
	}

	m, err := e.store.Mission(missionID)
	if err != nil {
		return "", err
	}

	var recent []protocol.HistoryRecord
	if e.history != nil {
		events, err := e.history.LoadEvents(ctx)
		if err != nil {
			return "", fmt.Errorf("load history events: %w", err)
		}
		recent = tailForMission(events, missionID, maxEvents)
	}

	query := composeQuery(baseQuery, m, recent)

	ts := e.timestamp()
	_, err = e.mutate(func(s *state.Snapshot) error {
		m := s.EnsureMission(missionID)
		m.LastDynamicQuery = &state.QuerySnapshot{
			Query:      query,
			BaseQuery:  baseQuery,
			ComposedAt: ts,
			EventCount: len(recent),
		}
		m.UpdatedAt = ts
		m.AppendHistory(ts, protocol.EventQueryComposed, map[string]any{
			"eventCount": len(recent),
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	e.bus.emit(protocol.EvQueryReady, QueryReady{MissionID: missionID, Query: query, TS: ts})
	return query, nil
}

// tailForMission returns the last n records for the mission, oldest first.
func tailForMission(events []protocol.HistoryRecord, missionID string, n int) []protocol.HistoryRecord {
	var matched []protocol.HistoryRecord
	for _, ev := range events {
		if ev.Mission == missionID {
			matched = append(matched, ev)
		}
	}
	if len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched
}

func composeQuery(baseQuery string, m *state.Mission, recent []protocol.HistoryRecord) string {
	var b strings.Builder
	if baseQuery != "" {
		b.WriteString(baseQuery)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Mission %s [phase=%s status=%s]\n", m.ID, m.Phase, m.Status)
	if m.Objective != "" {
		fmt.Fprintf(&b, "Objective: %s\n", m.Objective)
	}
	if m.CurrentSubMission != "" {
		fmt.Fprintf(&b, "Active sub-mission: %s\n", m.CurrentSubMission)
	}
	if m.LastContext != nil && m.LastContext.Summary != "" {
		fmt.Fprintf(&b, "\nContext:\n%s\n", m.LastContext.Summary)
	}
	if len(recent) > 0 {
		b.WriteString("\nRecent events:\n")
		for _, ev := range recent {
			fmt.Fprintf(&b, "- [%s] %s", ev.TS, ev.Action)
			if ev.Status != "" {
				fmt.Fprintf(&b, " (%s)", ev.Status)
			}
			if ev.Summary != "" {
				fmt.Fprintf(&b, ": %s", ev.Summary)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

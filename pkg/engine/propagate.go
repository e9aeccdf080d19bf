package engine

import (
	"context"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

// PropagateContext runs the external summarizer over the mission's recorded
// sub-mission results and stores the resulting snapshot as lastContext.
// Returns the stored summary. With no propagator configured this is a no-op
// returning a zero summary.
func (e *Engine) PropagateContext(ctx context.Context, missionID string) (state.ContextSummary, error) {
	if e.propagator == nil {
		return state.ContextSummary{}, nil
	}

	m, err := e.store.Mission(missionID)
	if err != nil {
		return state.ContextSummary{}, err
	}

	summary, err := e.propagator.PropagateContext(ctx, PropagateRequest{
		MissionID:        missionID,
		Objective:        m.Objective,
		PriorResults:     m.SubMissions,
		ActiveSubMission: m.CurrentSubMission,
	})
	if err != nil {
		e.record(ctx, TelemetryEvent{
			MissionID: missionID,
			Category:  "context",
			Type:      "propagation_failed",
			Status:    "error",
			Data:      map[string]any{"error": err.Error()},
		})
		return state.ContextSummary{}, err
	}

	ts := e.timestamp()
	if summary.GeneratedAt == "" {
		summary.GeneratedAt = ts
	}

	_, err = e.mutate(func(s *state.Snapshot) error {
		m := s.EnsureMission(missionID)
		stored := summary
		m.LastContext = &stored
		m.UpdatedAt = ts
		m.AppendHistory(ts, protocol.EventContextPropagated, map[string]any{
			"strategy":   summary.Strategy,
			"tokenCount": summary.TokenCount,
		})
		return nil
	})
	if err != nil {
		return state.ContextSummary{}, err
	}

	e.bus.emit(protocol.EvContextUpdated, ContextUpdated{MissionID: missionID, Summary: summary})
	return summary, nil
}

// propagate is the side-effect form used after phase updates and sub-mission
// completion: best-effort, failures are mirrored to telemetry inside
// PropagateContext and otherwise swallowed.
func (e *Engine) propagate(ctx context.Context, missionID string) {
	_, _ = e.PropagateContext(ctx, missionID)
}

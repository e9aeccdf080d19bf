package engine

import (
	"context"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

// RegisterWorkflow enqueues missions for scheduling. With reset the queue is
// replaced outright by ids (minus the active mission, which never sits in
// the queue); otherwise each id not already active or queued is appended.
// A mission record is created with defaults for every id that lacks one.
func (e *Engine) RegisterWorkflow(ctx context.Context, ids []string, reset bool) (*state.Snapshot, error) {
	ts := e.timestamp()
	snap, err := e.mutate(func(s *state.Snapshot) error {
		w := &s.Workflow
		if reset {
			w.Queue = []string{}
		}
		for _, id := range ids {
			m := s.EnsureMission(id)
			if m.UpdatedAt == "" {
				m.UpdatedAt = ts
			}
			if id == w.ActiveMission || w.Queued(id) {
				continue
			}
			w.Queue = append(w.Queue, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, TelemetryEvent{
		Category: "workflow",
		Type:     "workflow_registered",
		Data:     map[string]any{"count": len(ids), "reset": reset},
	})
	return snap, nil
}

// AdvanceWorkflow promotes the next queued mission to active. It is a no-op
// while the current active mission is still running (status neither
// completed nor blocked). A finished active mission is cleared and appended
// to the completed set before promotion. The promoted mission moves from
// idle to planning and from queued to current, and gets a workflow_routed
// history event. workflowAdvanced fires only when a mission was actually
// promoted; the promoted id is returned, or "" when the queue was empty.
func (e *Engine) AdvanceWorkflow(ctx context.Context) (string, *state.Snapshot, error) {
	ts := e.timestamp()
	var promoted string
	snap, err := e.mutate(func(s *state.Snapshot) error {
		w := &s.Workflow
		if w.ActiveMission != "" {
			cur := s.EnsureMission(w.ActiveMission)
			if cur.Status != protocol.StatusCompleted && cur.Status != protocol.StatusBlocked {
				return errNoop
			}
			w.MarkCompleted(w.ActiveMission)
			w.ActiveMission = ""
		}
		if len(w.Queue) == 0 {
			return nil
		}

		next := w.Queue[0]
		w.Queue = w.Queue[1:]

		m := s.EnsureMission(next)
		from := m.Phase
		if m.Phase == protocol.PhaseIdle {
			m.Phase = protocol.PhasePlanning
		}
		if m.Status == protocol.StatusQueued {
			m.Status = protocol.StatusCurrent
		}
		m.UpdatedAt = ts
		m.AppendHistory(ts, protocol.EventWorkflowRouted, map[string]any{
			"from": string(from),
			"to":   string(m.Phase),
		})
		w.ActiveMission = next
		promoted = next
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if promoted != "" {
		e.bus.emit(protocol.EvWorkflowAdvanced, WorkflowAdvanced{MissionID: promoted, TS: ts})
		e.record(ctx, TelemetryEvent{
			MissionID: promoted,
			Category:  "workflow",
			Type:      "workflow_advanced",
		})
	}
	return promoted, snap, nil
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

// StartOptions are the caller-supplied fields for StartMission.
type StartOptions struct {
	Objective         string
	CurrentSubMission string
	Notes             string
	Tags              []string
	Metadata          map[string]any
	// Phase is the phase to start in (default execution).
	Phase protocol.Phase
}

// StartMission marks a mission in progress: status in_progress, phase as
// requested (default execution), startedAt stamped once, active in the
// workflow and removed from the queue and paused sets. Appends a
// mission_started history event, plus a phase_transition event iff the phase
// actually changed; phaseTransition fires only on change.
func (e *Engine) StartMission(ctx context.Context, id string, opts StartOptions) (*state.Mission, error) {
	if opts.Phase == "" {
		opts.Phase = protocol.PhaseExecution
	}
	if !opts.Phase.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhase, opts.Phase)
	}

	ts := e.timestamp()
	var from protocol.Phase
	snap, err := e.mutate(func(s *state.Snapshot) error {
		m := s.EnsureMission(id)
		from = m.Phase

		m.Status = protocol.StatusInProgress
		m.Phase = opts.Phase
		if opts.Objective != "" {
			m.Objective = opts.Objective
		}
		if opts.CurrentSubMission != "" {
			m.CurrentSubMission = opts.CurrentSubMission
		}
		if opts.Notes != "" {
			m.Notes = opts.Notes
		}
		if len(opts.Tags) > 0 {
			m.Tags = append([]string{}, opts.Tags...)
		}
		mergeMetadata(m, opts.Metadata)
		if m.StartedAt == "" {
			m.StartedAt = ts
		}
		m.UpdatedAt = ts

		s.Workflow.ActiveMission = id
		s.Workflow.Dequeue(id)
		s.Workflow.Unpause(id)

		m.AppendHistory(ts, protocol.EventMissionStarted, map[string]any{
			"objective": m.Objective,
			"phase":     string(m.Phase),
		})
		if from != m.Phase {
			m.AppendHistory(ts, protocol.EventPhaseTransition, map[string]any{
				"from": string(from),
				"to":   string(m.Phase),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if from != opts.Phase {
		e.bus.emit(protocol.EvPhaseTransition, PhaseTransitioned{
			MissionID: id, From: from, To: opts.Phase, TS: ts,
		})
	}
	e.record(ctx, TelemetryEvent{MissionID: id, Category: "mission", Type: protocol.EventMissionStarted})
	return snap.Missions[id], nil
}

// UpdatePhaseOptions are the optional fields for UpdatePhase.
type UpdatePhaseOptions struct {
	Reason            string
	CurrentSubMission string
	// AutoPropagate overrides the auto-propagation set: true forces a
	// propagation run, false suppresses it, nil defers to the configured
	// phase set.
	AutoPropagate *bool
}

// UpdatePhase moves a mission to the given phase, appending a
// phase_transition history event and firing phaseTransition iff the phase
// actually changed. Entering a phase in the auto-propagation set (or an
// explicit AutoPropagate=true) triggers context propagation as a
// side effect.
//
// Setting the phase to blocked here leaves status untouched; use
// BlockMission when the mission should also stop being schedulable.
func (e *Engine) UpdatePhase(ctx context.Context, id string, phase protocol.Phase, opts UpdatePhaseOptions) (*state.Mission, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
	}

	ts := e.timestamp()
	var from protocol.Phase
	snap, err := e.mutate(func(s *state.Snapshot) error {
		m := s.EnsureMission(id)
		from = m.Phase
		m.Phase = phase
		if opts.CurrentSubMission != "" {
			m.CurrentSubMission = opts.CurrentSubMission
		}
		m.UpdatedAt = ts
		if from != phase {
			payload := map[string]any{"from": string(from), "to": string(phase)}
			if opts.Reason != "" {
				payload["reason"] = opts.Reason
			}
			m.AppendHistory(ts, protocol.EventPhaseTransition, payload)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if from != phase {
		e.bus.emit(protocol.EvPhaseTransition, PhaseTransitioned{
			MissionID: id, From: from, To: phase, Reason: opts.Reason, TS: ts,
		})
	}

	if e.shouldPropagate(phase, opts.AutoPropagate) {
		e.propagate(ctx, id)
	}
	return snap.Missions[id], nil
}

func (e *Engine) shouldPropagate(phase protocol.Phase, override *bool) bool {
	if override != nil {
		return *override
	}
	for _, p := range e.cfg.AutoPropagatePhases {
		if p == phase {
			return true
		}
	}
	return false
}

// CompleteOptions are the optional fields for CompleteMission.
type CompleteOptions struct {
	Summary  string
	Notes    string
	Metadata map[string]any
}

// CompleteMission finishes a mission: phase and status completed,
// completedAt stamped, currentSubMission cleared, moved from the active slot
// into the workflow's completed set. It fails without mutating anything if
// sub-missions are still active, recording a failed mission_completion
// quality gate before the error reaches the caller; success records a
// passing gate.
func (e *Engine) CompleteMission(ctx context.Context, id string, opts CompleteOptions) (*state.Mission, error) {
	ts := e.timestamp()
	var from protocol.Phase
	snap, err := e.mutate(func(s *state.Snapshot) error {
		m := s.EnsureMission(id)
		if n := len(m.ActiveSubMissions); n > 0 {
			return fmt.Errorf("%w: %s has %d", ErrActiveSubMissions, id, n)
		}
		from = m.Phase

		m.Phase = protocol.PhaseCompleted
		m.Status = protocol.StatusCompleted
		m.CompletedAt = ts
		m.UpdatedAt = ts
		m.CurrentSubMission = ""
		if opts.Notes != "" {
			m.Notes = opts.Notes
		}
		mergeMetadata(m, opts.Metadata)

		m.AppendHistory(ts, protocol.EventMissionCompleted, map[string]any{
			"summary": opts.Summary,
		})
		if from != protocol.PhaseCompleted {
			m.AppendHistory(ts, protocol.EventPhaseTransition, map[string]any{
				"from": string(from),
				"to":   string(protocol.PhaseCompleted),
			})
		}

		if s.Workflow.ActiveMission == id {
			s.Workflow.ActiveMission = ""
		}
		s.Workflow.Dequeue(id)
		s.Workflow.Unpause(id)
		s.Workflow.MarkCompleted(id)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrActiveSubMissions) {
			e.recordGate(ctx, QualityGate{
				MissionID: id,
				Gate:      protocol.GateMissionCompletion,
				Status:    protocol.GateFailed,
				Detail:    err.Error(),
			})
		}
		return nil, err
	}

	if from != protocol.PhaseCompleted {
		e.bus.emit(protocol.EvPhaseTransition, PhaseTransitioned{
			MissionID: id, From: from, To: protocol.PhaseCompleted, TS: ts,
		})
	}
	e.recordGate(ctx, QualityGate{
		MissionID: id,
		Gate:      protocol.GateMissionCompletion,
		Status:    protocol.GatePassed,
		Detail:    opts.Summary,
	})
	return snap.Missions[id], nil
}

// PauseOptions are the optional fields for PauseMission.
type PauseOptions struct {
	Note string
}

// PauseMission sets status paused, adds the mission to the paused set, and
// clears the active slot if this mission held it. Missing missions and
// already paused missions are no-ops. The phase is left alone: a paused
// mission resumes where it stopped.
func (e *Engine) PauseMission(ctx context.Context, id string, opts PauseOptions) (*state.Snapshot, error) {
	ts := e.timestamp()
	paused := false
	snap, err := e.mutate(func(s *state.Snapshot) error {
		m, ok := s.Missions[id]
		if !ok || m.Status == protocol.StatusPaused {
			return errNoop
		}
		m.Status = protocol.StatusPaused
		m.UpdatedAt = ts
		s.Workflow.MarkPaused(id)
		if s.Workflow.ActiveMission == id {
			s.Workflow.ActiveMission = ""
		}
		payload := map[string]any{}
		if opts.Note != "" {
			payload["note"] = opts.Note
		}
		m.AppendHistory(ts, protocol.EventMissionPaused, payload)
		paused = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if paused {
		e.bus.emit(protocol.EvMissionPaused, MissionPaused{MissionID: id, Note: opts.Note, TS: ts})
	}
	return snap, nil
}

// ResumeMission sets status in_progress, promotes the phase from idle to
// execution if still idle, makes the mission active, and removes it from the
// paused set. Missing missions and missions already in progress are no-ops.
func (e *Engine) ResumeMission(ctx context.Context, id string) (*state.Snapshot, error) {
	ts := e.timestamp()
	resumed := false
	snap, err := e.mutate(func(s *state.Snapshot) error {
		m, ok := s.Missions[id]
		if !ok || m.Status == protocol.StatusInProgress {
			return errNoop
		}
		m.Status = protocol.StatusInProgress
		if m.Phase == protocol.PhaseIdle {
			m.Phase = protocol.PhaseExecution
			m.AppendHistory(ts, protocol.EventPhaseTransition, map[string]any{
				"from": string(protocol.PhaseIdle),
				"to":   string(protocol.PhaseExecution),
			})
		}
		m.UpdatedAt = ts
		s.Workflow.ActiveMission = id
		s.Workflow.Unpause(id)
		s.Workflow.Dequeue(id)
		m.AppendHistory(ts, protocol.EventMissionResumed, nil)
		resumed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resumed {
		e.bus.emit(protocol.EvMissionResumed, MissionResumed{MissionID: id, TS: ts})
	}
	return snap, nil
}

// BlockMission marks a mission blocked on both axes: status blocked, and
// phase blocked unless the phase is already terminal. Status drives phase
// here; callers who only want to flag a blocked phase while work continues
// should use UpdatePhase instead.
func (e *Engine) BlockMission(ctx context.Context, id, reason string) (*state.Mission, error) {
	ts := e.timestamp()
	var from protocol.Phase
	snap, err := e.mutate(func(s *state.Snapshot) error {
		m := s.EnsureMission(id)
		from = m.Phase
		m.Status = protocol.StatusBlocked
		if !m.Phase.Terminal() {
			m.Phase = protocol.PhaseBlocked
		}
		m.UpdatedAt = ts
		if from != m.Phase {
			payload := map[string]any{"from": string(from), "to": string(m.Phase)}
			if reason != "" {
				payload["reason"] = reason
			}
			m.AppendHistory(ts, protocol.EventPhaseTransition, payload)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != snap.Missions[id].Phase {
		e.bus.emit(protocol.EvPhaseTransition, PhaseTransitioned{
			MissionID: id, From: from, To: snap.Missions[id].Phase, Reason: reason, TS: ts,
		})
	}
	e.record(ctx, TelemetryEvent{
		MissionID: id,
		Category:  "mission",
		Type:      "mission_blocked",
		Status:    "warning",
		Data:      map[string]any{"reason": reason},
	})
	return snap.Missions[id], nil
}

// mergeMetadata overlays new metadata keys onto the mission's existing map,
// deep-copying so caller-owned values never alias into the cache.
func mergeMetadata(m *state.Mission, md map[string]any) {
	if len(md) == 0 {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]any, len(md))
	}
	for k, v := range state.CloneMap(md) {
		m.Metadata[k] = v
	}
}

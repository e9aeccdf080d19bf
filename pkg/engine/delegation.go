package engine

import (
	"context"
	"errors"
	"fmt"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

// BeginOptions are the caller-supplied fields for BeginSubMission.
type BeginOptions struct {
	Objective string
	Metadata  map[string]any
}

// BeginSubMission pushes a new frame onto the mission's delegation stack and
// focuses it. The frame captures the previous focus as its parent and a copy
// of lastContext for rollback. It fails, leaving state unmutated, when the
// id is already on the stack or the stack would exceed the delegation limit;
// the limit failure is reported as a failed delegation_depth quality gate
// before the error is raised.
func (e *Engine) BeginSubMission(ctx context.Context, missionID, subID string, opts BeginOptions) (*state.Mission, error) {
	if subID == "" {
		return nil, errors.New("sub-mission id required")
	}

	ts := e.timestamp()
	snap, err := e.mutate(func(s *state.Snapshot) error {
		m := s.EnsureMission(missionID)
		if m.HasSubMission(subID) {
			return fmt.Errorf("%w: %s on %s", ErrDuplicateSubMission, subID, missionID)
		}
		if len(m.ActiveSubMissions) >= e.cfg.DelegationLimit {
			return fmt.Errorf("%w: %s holds %d frames", ErrDelegationLimit, missionID, len(m.ActiveSubMissions))
		}

		frame := state.ActiveSubMission{
			ID:        subID,
			StartedAt: ts,
			Parent:    m.CurrentSubMission,
			Objective: opts.Objective,
			Metadata:  state.CloneMap(opts.Metadata),
		}
		if m.LastContext != nil {
			prev := *m.LastContext
			frame.PreviousContext = &prev
		}
		m.ActiveSubMissions = append(m.ActiveSubMissions, frame)
		m.CurrentSubMission = subID
		m.UpdatedAt = ts
		m.AppendHistory(ts, protocol.EventSubMissionStarted, map[string]any{
			"subMissionId": subID,
			"objective":    opts.Objective,
			"depth":        len(m.ActiveSubMissions),
		})
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrDelegationLimit):
			e.recordGate(ctx, QualityGate{
				MissionID: missionID,
				Gate:      protocol.GateDelegationDepth,
				Status:    protocol.GateFailed,
				Detail:    err.Error(),
				Data:      map[string]any{"limit": e.cfg.DelegationLimit},
			})
		case errors.Is(err, ErrDuplicateSubMission):
			e.record(ctx, TelemetryEvent{
				MissionID: missionID,
				Category:  "delegation",
				Type:      "invariant_violation",
				Status:    "warning",
				Data:      map[string]any{"subMissionId": subID, "error": err.Error()},
			})
		}
		return nil, err
	}
	return snap.Missions[missionID], nil
}

// CompleteSubOptions are the caller-supplied fields for CompleteSubMission.
type CompleteSubOptions struct {
	Input    string
	Output   string
	Status   string
	Metadata map[string]any
	// Timestamp overrides the result timestamp (defaults to the clock).
	Timestamp string
	// SkipPropagation disables the context propagation that otherwise runs
	// after the result is committed.
	SkipPropagation bool
}

// CompleteSubMission commits the top frame of the delegation stack: appends
// a result to the subMissions log, pops the frame, and restores focus to the
// frame's parent. Completing any frame other than the top fails without
// mutation (LIFO discipline). Unless disabled, a context propagation run
// follows.
func (e *Engine) CompleteSubMission(ctx context.Context, missionID, subID string, opts CompleteSubOptions) (*state.Mission, error) {
	ts := e.timestamp()
	resultTS := opts.Timestamp
	if resultTS == "" {
		resultTS = ts
	}
	status := opts.Status
	if status == "" {
		status = "completed"
	}

	snap, err := e.mutate(func(s *state.Snapshot) error {
		m, ok := s.Missions[missionID]
		if !ok {
			return missionNotFoundf(missionID)
		}
		top := m.TopSubMission()
		if top == nil || top.ID != subID {
			return notTopErr(missionID, subID, top)
		}

		m.SubMissions = append(m.SubMissions, state.SubMissionResult{
			SubMissionID: subID,
			Input:        opts.Input,
			Output:       opts.Output,
			Status:       status,
			Timestamp:    resultTS,
			Metadata:     state.CloneMap(opts.Metadata),
		})
		parent := top.Parent
		m.ActiveSubMissions = m.ActiveSubMissions[:len(m.ActiveSubMissions)-1]
		m.CurrentSubMission = parent
		m.UpdatedAt = ts
		m.AppendHistory(ts, protocol.EventSubMissionRecorded, map[string]any{
			"subMissionId": subID,
			"status":       status,
		})
		m.AppendHistory(ts, protocol.EventSubMissionCommitted, map[string]any{
			"subMissionId": subID,
			"parent":       parent,
		})
		return nil
	})
	if err != nil {
		e.warnDelegation(ctx, missionID, subID, err)
		return nil, err
	}

	if !opts.SkipPropagation {
		e.propagate(ctx, missionID)
	}
	return snap.Missions[missionID], nil
}

// RollbackOptions are the caller-supplied fields for RollbackSubMission.
type RollbackOptions struct {
	Reason string
	// SkipContextRestore leaves lastContext alone instead of restoring the
	// frame's pre-push snapshot.
	SkipContextRestore bool
}

// RollbackSubMission pops the top frame without recording a result, restores
// focus to the frame's parent, and (unless skipped, and when a snapshot
// exists) restores lastContext to the frame's pre-push snapshot. Same LIFO
// check as completion. A telemetry warning is emitted.
func (e *Engine) RollbackSubMission(ctx context.Context, missionID, subID string, opts RollbackOptions) (*state.Mission, error) {
	ts := e.timestamp()
	snap, err := e.mutate(func(s *state.Snapshot) error {
		m, ok := s.Missions[missionID]
		if !ok {
			return missionNotFoundf(missionID)
		}
		top := m.TopSubMission()
		if top == nil || top.ID != subID {
			return notTopErr(missionID, subID, top)
		}

		frame := *top
		m.ActiveSubMissions = m.ActiveSubMissions[:len(m.ActiveSubMissions)-1]
		m.CurrentSubMission = frame.Parent
		if !opts.SkipContextRestore && frame.PreviousContext != nil {
			prev := *frame.PreviousContext
			m.LastContext = &prev
		}
		m.UpdatedAt = ts
		m.AppendHistory(ts, protocol.EventSubMissionRolledBack, map[string]any{
			"subMissionId": subID,
			"reason":       opts.Reason,
		})
		return nil
	})
	if err != nil {
		e.warnDelegation(ctx, missionID, subID, err)
		return nil, err
	}

	e.record(ctx, TelemetryEvent{
		MissionID: missionID,
		Category:  "delegation",
		Type:      protocol.EventSubMissionRolledBack,
		Status:    "warning",
		Data:      map[string]any{"subMissionId": subID, "reason": opts.Reason},
	})
	return snap.Missions[missionID], nil
}

// RecordOptions are the caller-supplied fields for RecordSubMissionResult.
type RecordOptions struct {
	// NoDedupe appends the result even when an identical
	// (subMissionId, timestamp) pair already exists.
	NoDedupe bool
}

// RecordSubMissionResult appends a sub-mission result directly, for
// sub-missions driven outside the begin/complete stack discipline. By
// default an identical (subMissionId, timestamp) pair is skipped.
func (e *Engine) RecordSubMissionResult(ctx context.Context, missionID string, result state.SubMissionResult, opts RecordOptions) (*state.Mission, error) {
	if result.SubMissionID == "" {
		return nil, errors.New("sub-mission id required")
	}
	ts := e.timestamp()
	if result.Timestamp == "" {
		result.Timestamp = ts
	}
	result.Metadata = state.CloneMap(result.Metadata)

	snap, err := e.mutate(func(s *state.Snapshot) error {
		m := s.EnsureMission(missionID)
		if !opts.NoDedupe {
			for _, r := range m.SubMissions {
				if r.SubMissionID == result.SubMissionID && r.Timestamp == result.Timestamp {
					return errNoop
				}
			}
		}
		m.SubMissions = append(m.SubMissions, result)
		m.UpdatedAt = ts
		m.AppendHistory(ts, protocol.EventSubMissionRecorded, map[string]any{
			"subMissionId": result.SubMissionID,
			"status":       result.Status,
			"external":     true,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap.Missions[missionID], nil
}

func notTopErr(missionID, subID string, top *state.ActiveSubMission) error {
	topID := "<empty stack>"
	if top != nil {
		topID = top.ID
	}
	return fmt.Errorf("%w: %s on %s (top is %s)", ErrSubMissionNotTop, subID, missionID, topID)
}

// warnDelegation mirrors a LIFO violation into telemetry.
func (e *Engine) warnDelegation(ctx context.Context, missionID, subID string, err error) {
	if !errors.Is(err, ErrSubMissionNotTop) {
		return
	}
	e.record(ctx, TelemetryEvent{
		MissionID: missionID,
		Category:  "delegation",
		Type:      "invariant_violation",
		Status:    "warning",
		Data:      map[string]any{"subMissionId": subID, "error": err.Error()},
	})
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

func TestBeginSubMission_PushesFrame(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	m, err := fx.engine.BeginSubMission(ctx, "M1", "sub-a", BeginOptions{Objective: "dig"})
	if err != nil {
		t.Fatalf("BeginSubMission: %v", err)
	}

	if len(m.ActiveSubMissions) != 1 {
		t.Fatalf("stack depth = %d, want 1", len(m.ActiveSubMissions))
	}
	frame := m.ActiveSubMissions[0]
	if frame.ID != "sub-a" || frame.Objective != "dig" {
		t.Errorf("frame = %+v", frame)
	}
	if frame.Parent != "" {
		t.Errorf("parent = %q, want empty at depth 1", frame.Parent)
	}
	if m.CurrentSubMission != "sub-a" {
		t.Errorf("currentSubMission = %q, want sub-a", m.CurrentSubMission)
	}
}

func TestBeginSubMission_NestedParentChain(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"sub-a", "sub-b", "sub-c"} {
		if _, err := fx.engine.BeginSubMission(ctx, "M1", id, BeginOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	m, err := fx.engine.Mission("M1")
	if err != nil {
		t.Fatal(err)
	}
	if m.ActiveSubMissions[1].Parent != "sub-a" || m.ActiveSubMissions[2].Parent != "sub-b" {
		t.Errorf("parent chain broken: %+v", m.ActiveSubMissions)
	}
	if m.CurrentSubMission != "sub-c" {
		t.Errorf("focus = %q, want sub-c", m.CurrentSubMission)
	}
}

func TestBeginSubMission_Duplicate(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.BeginSubMission(ctx, "M1", "sub-a", BeginOptions{}); err != nil {
		t.Fatal(err)
	}
	_, err := fx.engine.BeginSubMission(ctx, "M1", "sub-a", BeginOptions{})
	if !errors.Is(err, ErrDuplicateSubMission) {
		t.Fatalf("err = %v, want ErrDuplicateSubMission", err)
	}

	m, _ := fx.engine.Mission("M1")
	if len(m.ActiveSubMissions) != 1 {
		t.Errorf("stack depth = %d after duplicate, want 1", len(m.ActiveSubMissions))
	}
	ev := fx.telemetry.events[len(fx.telemetry.events)-1]
	if ev.Type != "invariant_violation" || ev.Status != "warning" {
		t.Errorf("telemetry = %s/%s", ev.Type, ev.Status)
	}
}

func TestBeginSubMission_DelegationLimit(t *testing.T) {
	fx := newTestEngine(t, Config{DelegationLimit: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("sub-%d", i)
		if _, err := fx.engine.BeginSubMission(ctx, "M1", id, BeginOptions{}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	_, err := fx.engine.BeginSubMission(ctx, "M1", "sub-over", BeginOptions{})
	if !errors.Is(err, ErrDelegationLimit) {
		t.Fatalf("err = %v, want ErrDelegationLimit", err)
	}

	// The rejected push leaves exactly the limit's worth of frames.
	m, _ := fx.engine.Mission("M1")
	if len(m.ActiveSubMissions) != 3 {
		t.Errorf("stack depth = %d, want 3", len(m.ActiveSubMissions))
	}
	if m.CurrentSubMission != "sub-2" {
		t.Errorf("focus = %q, want sub-2 unchanged", m.CurrentSubMission)
	}

	g := fx.telemetry.lastGate(t)
	if g.Gate != protocol.GateDelegationDepth || g.Status != protocol.GateFailed {
		t.Errorf("gate = %s/%s, want delegation_depth/failed", g.Gate, g.Status)
	}
}

func TestCompleteSubMission_LIFODiscipline(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	for _, id := range []string{"sub-a", "sub-b"} {
		if _, err := fx.engine.BeginSubMission(ctx, "M1", id, BeginOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	// Completing the bottom frame while the top is open must fail untouched.
	_, err := fx.engine.CompleteSubMission(ctx, "M1", "sub-a", CompleteSubOptions{})
	if !errors.Is(err, ErrSubMissionNotTop) {
		t.Fatalf("err = %v, want ErrSubMissionNotTop", err)
	}
	m, _ := fx.engine.Mission("M1")
	if len(m.ActiveSubMissions) != 2 || len(m.SubMissions) != 0 {
		t.Errorf("state mutated by LIFO violation: stack=%d results=%d",
			len(m.ActiveSubMissions), len(m.SubMissions))
	}

	// Top first, then the bottom.
	if _, err := fx.engine.CompleteSubMission(ctx, "M1", "sub-b", CompleteSubOptions{Output: "b done"}); err != nil {
		t.Fatal(err)
	}
	m, err = fx.engine.CompleteSubMission(ctx, "M1", "sub-a", CompleteSubOptions{Output: "a done"})
	if err != nil {
		t.Fatal(err)
	}

	if len(m.ActiveSubMissions) != 0 {
		t.Errorf("stack depth = %d after unwinding, want 0", len(m.ActiveSubMissions))
	}
	if m.CurrentSubMission != "" {
		t.Errorf("focus = %q, want empty", m.CurrentSubMission)
	}
	if len(m.SubMissions) != 2 {
		t.Fatalf("results = %d, want 2", len(m.SubMissions))
	}
	if m.SubMissions[0].SubMissionID != "sub-b" || m.SubMissions[0].Status != "completed" {
		t.Errorf("first result = %+v", m.SubMissions[0])
	}
}

func TestCompleteSubMission_RestoresParentFocus(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.BeginSubMission(ctx, "M1", "sub-a", BeginOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.BeginSubMission(ctx, "M1", "sub-b", BeginOptions{}); err != nil {
		t.Fatal(err)
	}

	m, err := fx.engine.CompleteSubMission(ctx, "M1", "sub-b", CompleteSubOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if m.CurrentSubMission != "sub-a" {
		t.Errorf("focus = %q, want parent sub-a", m.CurrentSubMission)
	}
}

func TestCompleteSubMission_Propagation(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.BeginSubMission(ctx, "M1", "sub-a", BeginOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.CompleteSubMission(ctx, "M1", "sub-a", CompleteSubOptions{}); err != nil {
		t.Fatal(err)
	}
	if fx.propagator.callCount() != 1 {
		t.Errorf("propagator calls = %d, want 1", fx.propagator.callCount())
	}

	if _, err := fx.engine.BeginSubMission(ctx, "M1", "sub-b", BeginOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.CompleteSubMission(ctx, "M1", "sub-b", CompleteSubOptions{SkipPropagation: true}); err != nil {
		t.Fatal(err)
	}
	if fx.propagator.callCount() != 1 {
		t.Errorf("propagator calls = %d, want still 1 with SkipPropagation", fx.propagator.callCount())
	}
}

func TestRollbackSubMission_RestoresContext(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	// Seed lastContext, then push a frame that snapshots it.
	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.PropagateContext(ctx, "M1"); err != nil {
		t.Fatal(err)
	}
	before, _ := fx.engine.Mission("M1")
	if before.LastContext == nil {
		t.Fatal("propagation did not store lastContext")
	}

	if _, err := fx.engine.BeginSubMission(ctx, "M1", "sub-a", BeginOptions{}); err != nil {
		t.Fatal(err)
	}

	// Clobber lastContext while the frame is open.
	fx.propagator.summary = state.ContextSummary{Summary: "scribbled", Strategy: "test"}
	if _, err := fx.engine.PropagateContext(ctx, "M1"); err != nil {
		t.Fatal(err)
	}

	m, err := fx.engine.RollbackSubMission(ctx, "M1", "sub-a", RollbackOptions{Reason: "bad branch"})
	if err != nil {
		t.Fatal(err)
	}

	if len(m.ActiveSubMissions) != 0 {
		t.Errorf("stack depth = %d, want 0", len(m.ActiveSubMissions))
	}
	if len(m.SubMissions) != 0 {
		t.Error("rollback recorded a result")
	}
	if m.LastContext == nil || m.LastContext.Summary != before.LastContext.Summary {
		t.Errorf("lastContext = %+v, want pre-push snapshot restored", m.LastContext)
	}
	last := m.History[len(m.History)-1]
	if last.Type != protocol.EventSubMissionRolledBack {
		t.Errorf("last history = %q, want sub_mission_rolled_back", last.Type)
	}
}

func TestRollbackSubMission_SkipContextRestore(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.PropagateContext(ctx, "M1"); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.BeginSubMission(ctx, "M1", "sub-a", BeginOptions{}); err != nil {
		t.Fatal(err)
	}
	fx.propagator.summary = state.ContextSummary{Summary: "kept", Strategy: "test"}
	if _, err := fx.engine.PropagateContext(ctx, "M1"); err != nil {
		t.Fatal(err)
	}

	m, err := fx.engine.RollbackSubMission(ctx, "M1", "sub-a", RollbackOptions{SkipContextRestore: true})
	if err != nil {
		t.Fatal(err)
	}
	if m.LastContext == nil || m.LastContext.Summary != "kept" {
		t.Errorf("lastContext = %+v, want the in-flight summary kept", m.LastContext)
	}
}

func TestRollbackSubMission_NotTop(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.BeginSubMission(ctx, "M1", "sub-a", BeginOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.BeginSubMission(ctx, "M1", "sub-b", BeginOptions{}); err != nil {
		t.Fatal(err)
	}

	_, err := fx.engine.RollbackSubMission(ctx, "M1", "sub-a", RollbackOptions{})
	if !errors.Is(err, ErrSubMissionNotTop) {
		t.Fatalf("err = %v, want ErrSubMissionNotTop", err)
	}
	m, _ := fx.engine.Mission("M1")
	if len(m.ActiveSubMissions) != 2 {
		t.Errorf("stack depth = %d, want 2 untouched", len(m.ActiveSubMissions))
	}
}

func TestRecordSubMissionResult_Dedupe(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	result := state.SubMissionResult{
		SubMissionID: "ext-1",
		Output:       "external run",
		Status:       "completed",
		Timestamp:    "2026-03-01T09:00:00Z",
	}
	if _, err := fx.engine.RecordSubMissionResult(ctx, "M1", result, RecordOptions{}); err != nil {
		t.Fatal(err)
	}
	m, err := fx.engine.RecordSubMissionResult(ctx, "M1", result, RecordOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.SubMissions) != 1 {
		t.Errorf("results = %d after duplicate record, want 1", len(m.SubMissions))
	}

	m, err = fx.engine.RecordSubMissionResult(ctx, "M1", result, RecordOptions{NoDedupe: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.SubMissions) != 2 {
		t.Errorf("results = %d with NoDedupe, want 2", len(m.SubMissions))
	}
}

func TestRecordSubMissionResult_DefaultsTimestamp(t *testing.T) {
	fx := newTestEngine(t, Config{})

	m, err := fx.engine.RecordSubMissionResult(context.Background(), "M1",
		state.SubMissionResult{SubMissionID: "ext-1", Status: "failed"}, RecordOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if m.SubMissions[0].Timestamp == "" {
		t.Error("timestamp not defaulted from the clock")
	}
}

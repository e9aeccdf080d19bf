package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

// The clock is injectable through Config without reaching into package
// internals, matching the store's WithClock option.
func TestNew_ConfigClockDrivesTimestamps(t *testing.T) {
	clock := func() time.Time {
		return time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	}
	store := state.New(filepath.Join(t.TempDir(), "state.json"), state.WithClock(clock))
	e := New(Config{Clock: clock}, store, nil, nil, nil)

	m, err := e.StartMission(context.Background(), "M1", StartOptions{})
	if err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	if m.StartedAt != "2026-04-02T12:00:00Z" {
		t.Errorf("startedAt = %q, want the injected clock's instant", m.StartedAt)
	}
}

func TestStartMission_Defaults(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()
	transitions := busEvents(fx.engine, protocol.EvPhaseTransition)

	m, err := fx.engine.StartMission(ctx, "M1", StartOptions{Objective: "ship it"})
	if err != nil {
		t.Fatalf("StartMission: %v", err)
	}

	if m.Phase != protocol.PhaseExecution {
		t.Errorf("phase = %q, want execution", m.Phase)
	}
	if m.Status != protocol.StatusInProgress {
		t.Errorf("status = %q, want in_progress", m.Status)
	}
	if m.StartedAt == "" || m.UpdatedAt == "" {
		t.Error("timestamps not stamped")
	}
	if m.Objective != "ship it" {
		t.Errorf("objective = %q", m.Objective)
	}
	if len(*transitions) != 1 {
		t.Fatalf("phaseTransition events = %d, want 1", len(*transitions))
	}
	pt := (*transitions)[0].(PhaseTransitioned)
	if pt.From != protocol.PhaseIdle || pt.To != protocol.PhaseExecution {
		t.Errorf("transition %s->%s, want idle->execution", pt.From, pt.To)
	}
}

func TestStartMission_StartedAtStampedOnce(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	m, err := fx.engine.StartMission(ctx, "M1", StartOptions{})
	if err != nil {
		t.Fatal(err)
	}
	first := m.StartedAt

	m, err = fx.engine.StartMission(ctx, "M1", StartOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if m.StartedAt != first {
		t.Errorf("startedAt rewritten: %s -> %s", first, m.StartedAt)
	}
	if m.UpdatedAt == first {
		t.Error("updatedAt not advanced on restart")
	}
}

func TestStartMission_InvalidPhase(t *testing.T) {
	fx := newTestEngine(t, Config{})

	_, err := fx.engine.StartMission(context.Background(), "M1", StartOptions{Phase: "launchpad"})
	if !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("err = %v, want ErrInvalidPhase", err)
	}
}

func TestUpdatePhase_TransitionAndHistory(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()
	transitions := busEvents(fx.engine, protocol.EvPhaseTransition)

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{Phase: protocol.PhasePlanning}); err != nil {
		t.Fatal(err)
	}

	m, err := fx.engine.UpdatePhase(ctx, "M1", protocol.PhaseExecution, UpdatePhaseOptions{Reason: "plan approved"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Phase != protocol.PhaseExecution {
		t.Errorf("phase = %q, want execution", m.Phase)
	}
	last := m.History[len(m.History)-1]
	if last.Type != protocol.EventPhaseTransition {
		t.Fatalf("last history = %q, want phase_transition", last.Type)
	}
	if last.Payload["reason"] != "plan approved" {
		t.Errorf("reason = %v", last.Payload["reason"])
	}
	if len(*transitions) != 2 {
		t.Errorf("phaseTransition events = %d, want 2 (start + update)", len(*transitions))
	}
}

func TestUpdatePhase_SamePhaseNoEvent(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()
	transitions := busEvents(fx.engine, protocol.EvPhaseTransition)

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	before := len(*transitions)

	m, err := fx.engine.UpdatePhase(ctx, "M1", protocol.PhaseExecution, UpdatePhaseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(*transitions) != before {
		t.Error("phaseTransition fired for a no-change phase update")
	}
	for _, h := range m.History {
		if h.Type == protocol.EventPhaseTransition && h.Payload["from"] == h.Payload["to"] {
			t.Error("self-transition recorded in history")
		}
	}
}

func TestUpdatePhase_AutoPropagatesOnConfiguredPhase(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()
	updated := busEvents(fx.engine, protocol.EvContextUpdated)

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{Phase: protocol.PhasePlanning}); err != nil {
		t.Fatal(err)
	}

	// review is in the default auto-propagate set.
	if _, err := fx.engine.UpdatePhase(ctx, "M1", protocol.PhaseReview, UpdatePhaseOptions{}); err != nil {
		t.Fatal(err)
	}
	if fx.propagator.callCount() != 1 {
		t.Errorf("propagator calls = %d, want 1", fx.propagator.callCount())
	}
	if len(*updated) != 1 {
		t.Errorf("contextUpdated events = %d, want 1", len(*updated))
	}

	// planning is not, and an explicit false suppresses even a listed phase.
	if _, err := fx.engine.UpdatePhase(ctx, "M1", protocol.PhasePlanning, UpdatePhaseOptions{}); err != nil {
		t.Fatal(err)
	}
	off := false
	if _, err := fx.engine.UpdatePhase(ctx, "M1", protocol.PhaseExecution, UpdatePhaseOptions{AutoPropagate: &off}); err != nil {
		t.Fatal(err)
	}
	if fx.propagator.callCount() != 1 {
		t.Errorf("propagator calls = %d, want still 1", fx.propagator.callCount())
	}

	// An explicit true forces it for an unlisted phase.
	on := true
	if _, err := fx.engine.UpdatePhase(ctx, "M1", protocol.PhasePlanning, UpdatePhaseOptions{AutoPropagate: &on}); err != nil {
		t.Fatal(err)
	}
	if fx.propagator.callCount() != 2 {
		t.Errorf("propagator calls = %d, want 2", fx.propagator.callCount())
	}
}

func TestCompleteMission_Success(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	m, err := fx.engine.CompleteMission(ctx, "M1", CompleteOptions{Summary: "shipped"})
	if err != nil {
		t.Fatalf("CompleteMission: %v", err)
	}

	if m.Phase != protocol.PhaseCompleted || m.Status != protocol.StatusCompleted {
		t.Errorf("terminal state = %s/%s", m.Phase, m.Status)
	}
	if m.CompletedAt == "" {
		t.Error("completedAt not stamped")
	}

	snap, err := fx.engine.State()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Workflow.ActiveMission == "M1" {
		t.Error("completed mission still active")
	}
	found := false
	for _, id := range snap.Workflow.Completed {
		if id == "M1" {
			found = true
		}
	}
	if !found {
		t.Error("M1 missing from workflow completed set")
	}

	g := fx.telemetry.lastGate(t)
	if g.Gate != protocol.GateMissionCompletion || g.Status != protocol.GatePassed {
		t.Errorf("gate = %s/%s, want mission_completion/passed", g.Gate, g.Status)
	}
}

func TestCompleteMission_FailsWithActiveSubMissions(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.BeginSubMission(ctx, "M1", "sub-1", BeginOptions{}); err != nil {
		t.Fatal(err)
	}

	_, err := fx.engine.CompleteMission(ctx, "M1", CompleteOptions{})
	if !errors.Is(err, ErrActiveSubMissions) {
		t.Fatalf("err = %v, want ErrActiveSubMissions", err)
	}

	// The refusal leaves the mission untouched.
	m, err := fx.engine.Mission("M1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != protocol.StatusInProgress || m.Phase != protocol.PhaseExecution {
		t.Errorf("state mutated by failed complete: %s/%s", m.Phase, m.Status)
	}
	if m.CompletedAt != "" {
		t.Error("completedAt stamped on failure")
	}

	g := fx.telemetry.lastGate(t)
	if g.Gate != protocol.GateMissionCompletion || g.Status != protocol.GateFailed {
		t.Errorf("gate = %s/%s, want mission_completion/failed", g.Gate, g.Status)
	}
}

func TestPauseResume_RoundTrip(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()
	pausedEv := busEvents(fx.engine, protocol.EvMissionPaused)
	resumedEv := busEvents(fx.engine, protocol.EvMissionResumed)

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{Phase: protocol.PhaseReview}); err != nil {
		t.Fatal(err)
	}

	snap, err := fx.engine.PauseMission(ctx, "M1", PauseOptions{Note: "lunch"})
	if err != nil {
		t.Fatal(err)
	}
	m := snap.Missions["M1"]
	if m.Status != protocol.StatusPaused {
		t.Errorf("status = %q, want paused", m.Status)
	}
	if m.Phase != protocol.PhaseReview {
		t.Errorf("phase = %q, pause must not touch it", m.Phase)
	}
	if snap.Workflow.ActiveMission == "M1" {
		t.Error("paused mission still active")
	}

	snap, err = fx.engine.ResumeMission(ctx, "M1")
	if err != nil {
		t.Fatal(err)
	}
	m = snap.Missions["M1"]
	if m.Status != protocol.StatusInProgress {
		t.Errorf("status = %q, want in_progress", m.Status)
	}
	if m.Phase != protocol.PhaseReview {
		t.Errorf("phase = %q, want review preserved across pause", m.Phase)
	}
	if snap.Workflow.ActiveMission != "M1" {
		t.Error("resumed mission not active")
	}

	if len(*pausedEv) != 1 || len(*resumedEv) != 1 {
		t.Errorf("events: paused=%d resumed=%d, want 1/1", len(*pausedEv), len(*resumedEv))
	}
}

func TestPauseResume_NoOps(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()
	pausedEv := busEvents(fx.engine, protocol.EvMissionPaused)

	// Missing mission: no error, no event, no record created.
	snap, err := fx.engine.PauseMission(ctx, "ghost", PauseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.Missions["ghost"]; ok {
		t.Error("pause of a missing mission created a record")
	}

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.PauseMission(ctx, "M1", PauseOptions{}); err != nil {
		t.Fatal(err)
	}
	// Double pause is silent.
	if _, err := fx.engine.PauseMission(ctx, "M1", PauseOptions{}); err != nil {
		t.Fatal(err)
	}
	if len(*pausedEv) != 1 {
		t.Errorf("paused events = %d, want 1", len(*pausedEv))
	}

	// Resume of an in-progress mission is silent too.
	if _, err := fx.engine.ResumeMission(ctx, "M1"); err != nil {
		t.Fatal(err)
	}
	resumedEv := busEvents(fx.engine, protocol.EvMissionResumed)
	if _, err := fx.engine.ResumeMission(ctx, "M1"); err != nil {
		t.Fatal(err)
	}
	if len(*resumedEv) != 0 {
		t.Errorf("resumed events after no-op = %d, want 0", len(*resumedEv))
	}
}

func TestBlockMission_DrivesBothAxes(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	m, err := fx.engine.BlockMission(ctx, "M1", "dependency down")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != protocol.StatusBlocked || m.Phase != protocol.PhaseBlocked {
		t.Errorf("blocked state = %s/%s, want blocked/blocked", m.Phase, m.Status)
	}

	ev := fx.telemetry.events[len(fx.telemetry.events)-1]
	if ev.Type != "mission_blocked" || ev.Status != "warning" {
		t.Errorf("telemetry = %s/%s", ev.Type, ev.Status)
	}
}

func TestBlockMission_TerminalPhaseKept(t *testing.T) {
	fx := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := fx.engine.StartMission(ctx, "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.engine.CompleteMission(ctx, "M1", CompleteOptions{}); err != nil {
		t.Fatal(err)
	}

	m, err := fx.engine.BlockMission(ctx, "M1", "late report")
	if err != nil {
		t.Fatal(err)
	}
	if m.Phase != protocol.PhaseCompleted {
		t.Errorf("phase = %q, terminal phase must survive a block", m.Phase)
	}
	if m.Status != protocol.StatusBlocked {
		t.Errorf("status = %q, want blocked", m.Status)
	}
}

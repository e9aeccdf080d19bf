package state //nolint:testpackage // white-box tests reach the cache and normalize pass

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orbit/pkg/boomerang"
	"orbit/pkg/protocol"
	"orbit/pkg/rsip"
)

func fakeClock() func() time.Time {
	t := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "state.json"), WithClock(fakeClock()))
}

func TestState_MissingFileSelfHeals(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if snap.Version != CurrentVersion {
		t.Errorf("version = %d, want %d", snap.Version, CurrentVersion)
	}
	if len(snap.Missions) != 0 {
		t.Errorf("missions = %d, want 0", len(snap.Missions))
	}
	if snap.LastUpdated == "" {
		t.Error("lastUpdated not stamped")
	}

	// The fresh snapshot was immediately persisted.
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("state file not written: %v", err)
	}
}

func TestState_EmptyFileSelfHeals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(path, WithClock(fakeClock()))

	if _, err := s.State(); err != nil {
		t.Fatalf("State on empty file: %v", err)
	}
}

func TestState_MalformedJSONIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(path, WithClock(fakeClock()))

	if _, err := s.State(); err == nil {
		t.Fatal("State on malformed file succeeded, want error")
	}
}

func TestUpdate_PersistsAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := New(path, WithClock(fakeClock()))

	_, err := s.Update(func(snap *Snapshot) error {
		m := snap.EnsureMission("M1")
		m.Objective = "port the parser"
		m.Tags = []string{"compiler"}
		m.Phase = protocol.PhaseExecution
		m.Status = protocol.StatusInProgress
		m.AppendHistory("2026-03-01T08:00:01Z", protocol.EventMissionStarted, map[string]any{"k": "v"})
		snap.Workflow.Queue = append(snap.Workflow.Queue, "M2")
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Reload through a fresh instance; the result must be semantically
	// identical with no shared references.
	fresh := New(path, WithClock(fakeClock()))
	snap, err := fresh.State()
	if err != nil {
		t.Fatalf("fresh State: %v", err)
	}

	m := snap.Missions["M1"]
	if m == nil {
		t.Fatal("M1 missing after reload")
	}
	if m.Objective != "port the parser" || m.Phase != protocol.PhaseExecution {
		t.Errorf("mission fields lost: %+v", m)
	}
	if len(m.History) != 1 || m.History[0].Type != protocol.EventMissionStarted {
		t.Errorf("history lost: %+v", m.History)
	}
	// M2 was referenced by the queue only; load self-heals a record for it.
	if snap.Missions["M2"] == nil {
		t.Error("dangling queue reference not self-healed into a mission record")
	}
}

func TestUpdate_MutatorErrorLeavesStateUnmutated(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Update(func(snap *Snapshot) error {
		snap.EnsureMission("M1")
		return nil
	}); err != nil {
		t.Fatalf("seed Update: %v", err)
	}

	sentinel := errors.New("invariant violated")
	_, err := s.Update(func(snap *Snapshot) error {
		snap.EnsureMission("M1").Objective = "should not stick"
		snap.EnsureMission("M2")
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Update error = %v, want sentinel", err)
	}

	snap, err := s.State()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Missions["M1"].Objective != "" {
		t.Error("failed mutation leaked into state")
	}
	if snap.Missions["M2"] != nil {
		t.Error("failed mutation created a mission")
	}
}

func TestStateAndUpdate_ReturnDeepCopies(t *testing.T) {
	s := newTestStore(t)
	first, err := s.Update(func(snap *Snapshot) error {
		m := snap.EnsureMission("M1")
		m.Tags = []string{"a"}
		m.Metadata = map[string]any{"nested": map[string]any{"k": "v"}}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the returned snapshot must not affect later reads.
	first.Missions["M1"].Tags[0] = "tampered"
	first.Missions["M1"].Metadata["nested"].(map[string]any)["k"] = "tampered"
	first.Workflow.Queue = append(first.Workflow.Queue, "ghost")

	snap, err := s.State()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Missions["M1"].Tags[0] != "a" {
		t.Error("tags aliased into the live cache")
	}
	if snap.Missions["M1"].Metadata["nested"].(map[string]any)["k"] != "v" {
		t.Error("nested metadata aliased into the live cache")
	}
	if len(snap.Workflow.Queue) != 0 {
		t.Error("queue aliased into the live cache")
	}
}

func TestMission_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Mission("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPersist_AtomicReplaceLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "state.json"), WithClock(fakeClock()))
	if _, err := s.Update(func(snap *Snapshot) error {
		snap.EnsureMission("M1")
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("dir entries = %d, want just the state file", len(entries))
	}
}

func TestNormalize_DefaultsAndClamps(t *testing.T) {
	doc := map[string]any{
		"missions": map[string]any{
			"M1": map[string]any{
				"phase":  "warp", // unknown
				"status": "gone", // unknown
				"rsipMetrics": map[string]any{
					"runs":            -3,
					"totalIterations": -1,
					"lastRun":         map[string]any{"reason": "mystery"},
				},
				"boomerangMetrics": map[string]any{
					"runs":    -2,
					"lastRun": map[string]any{"status": "exploded"},
				},
			},
		},
		"workflow": map[string]any{
			"activeMission": "M2",
			"queue":         []string{"M2", "M3"},
			"completed":     []string{"M4", "M4"},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := New(path, WithClock(fakeClock())).State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}

	m := snap.Missions["M1"]
	if m.Phase != protocol.PhaseIdle {
		t.Errorf("unknown phase normalized to %q, want idle", m.Phase)
	}
	if m.Status != protocol.StatusQueued {
		t.Errorf("unknown status normalized to %q, want queued", m.Status)
	}
	if m.RSIPMetrics.Runs != 0 || m.RSIPMetrics.TotalIterations != 0 {
		t.Errorf("negative counters not clamped: %+v", m.RSIPMetrics)
	}
	if m.RSIPMetrics.LastRun.Reason != rsip.ReasonMaxIterations {
		t.Errorf("unknown rsip reason = %q, want max_iterations", m.RSIPMetrics.LastRun.Reason)
	}
	if m.BoomerangMetrics.LastRun.Status != boomerang.StatusFailed {
		t.Errorf("unknown boomerang status = %q, want failed", m.BoomerangMetrics.LastRun.Status)
	}
	if m.ActiveSubMissions == nil || m.History == nil || m.SubMissions == nil {
		t.Error("nil slice fields not defaulted")
	}

	// Dangling workflow references self-heal into mission records.
	for _, id := range []string{"M2", "M3", "M4"} {
		if snap.Missions[id] == nil {
			t.Errorf("referenced mission %s not self-healed", id)
		}
	}
	// Active mission removed from the queue; completed de-duplicated.
	if snap.Workflow.Queued("M2") {
		t.Error("active mission still in queue")
	}
	if len(snap.Workflow.Completed) != 1 {
		t.Errorf("completed = %v, want de-duplicated single entry", snap.Workflow.Completed)
	}
}

func TestVersion_ZeroBecomesCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"missions":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	snap, err := New(path, WithClock(fakeClock())).State()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version != CurrentVersion {
		t.Errorf("version = %d, want %d", snap.Version, CurrentVersion)
	}
}

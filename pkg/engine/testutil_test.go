package engine //nolint:testpackage // white-box tests need the clock and bus internals

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

// --- Fakes ---

// recordingTelemetry captures everything the engine mirrors into the sink.
type recordingTelemetry struct {
	mu     sync.Mutex
	events []TelemetryEvent
	gates  []QualityGate
}

func (r *recordingTelemetry) RecordEvent(_ context.Context, ev TelemetryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingTelemetry) RecordQualityGate(_ context.Context, gate QualityGate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gates = append(r.gates, gate)
	return nil
}

func (r *recordingTelemetry) lastGate(t *testing.T) QualityGate {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.gates) == 0 {
		t.Fatal("no quality gates recorded")
	}
	return r.gates[len(r.gates)-1]
}

func (r *recordingTelemetry) gateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gates)
}

// scriptedPropagator returns a fixed summary and counts calls.
type scriptedPropagator struct {
	mu      sync.Mutex
	calls   []PropagateRequest
	summary state.ContextSummary
	err     error
}

func (p *scriptedPropagator) PropagateContext(_ context.Context, req PropagateRequest) (state.ContextSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if p.err != nil {
		return state.ContextSummary{}, p.err
	}
	return p.summary, nil
}

func (p *scriptedPropagator) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// fakeHistory serves canned history records.
type fakeHistory struct {
	events []protocol.HistoryRecord
	err    error
}

func (f *fakeHistory) LoadEvents(context.Context) ([]protocol.HistoryRecord, error) {
	return f.events, f.err
}

// --- Construction helpers ---

func fakeClock() func() time.Time {
	t := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

type engineFixture struct {
	engine     *Engine
	telemetry  *recordingTelemetry
	propagator *scriptedPropagator
	history    *fakeHistory
}

func newTestEngine(t *testing.T, cfg Config) *engineFixture {
	t.Helper()
	clock := fakeClock()
	store := state.New(filepath.Join(t.TempDir(), "state.json"), state.WithClock(clock))
	tel := &recordingTelemetry{}
	prop := &scriptedPropagator{summary: state.ContextSummary{
		Summary: "ctx", TokenCount: 1, Strategy: "test",
	}}
	hist := &fakeHistory{}
	if cfg.RuntimeRoot == "" {
		cfg.RuntimeRoot = t.TempDir()
	}
	e := New(cfg, store, prop, hist, tel)
	e.nowFunc = clock
	return &engineFixture{engine: e, telemetry: tel, propagator: prop, history: hist}
}

// busEvents subscribes to name and appends payloads to the returned slice.
func busEvents(e *Engine, name protocol.EventName) *[]any {
	var got []any
	e.Bus().On(name, func(payload any) { got = append(got, payload) })
	return &got
}

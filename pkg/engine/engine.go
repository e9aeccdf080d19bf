// Package engine implements the Orbit orchestration facade — the core
// coordination engine that composes the state store, workflow router, phase
// state machine, delegation stack, convergence loop, and retry pipeline
// behind one entry point. Every mutating call routes through the store's
// Update chokepoint, then dispatches typed events to registered listeners
// and mirrors notable outcomes into the telemetry collaborator.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

// --- Invariant violation errors ---

// Sentinel errors for invariant violations. Each leaves state unmutated and
// is mirrored into telemetry before it reaches the caller.
var (
	ErrActiveSubMissions   = errors.New("mission has active sub-missions")
	ErrDuplicateSubMission = errors.New("sub-mission already on delegation stack")
	ErrSubMissionNotTop    = errors.New("sub-mission is not the top of the delegation stack")
	ErrDelegationLimit     = errors.New("delegation stack limit reached")
	ErrInvalidPhase        = errors.New("invalid phase")
)

// errNoop signals from a mutator that the operation is a documented no-op:
// nothing is persisted and no events fire.
var errNoop = errors.New("no-op")

// --- Collaborator contracts ---

// PropagateRequest carries the inputs of a context propagation call.
type PropagateRequest struct {
	MissionID        string
	Objective        string
	PriorResults     []state.SubMissionResult
	ActiveSubMission string
}

// ContextPropagator summarizes prior sub-mission results into a context
// snapshot. The summarization algorithm lives outside the control plane.
type ContextPropagator interface {
	PropagateContext(ctx context.Context, req PropagateRequest) (state.ContextSummary, error)
}

// HistorySource reads the append-only mission history log, sorted by
// timestamp.
type HistorySource interface {
	LoadEvents(ctx context.Context) ([]protocol.HistoryRecord, error)
}

// TelemetryEvent is one structured observability record.
type TelemetryEvent struct {
	MissionID string
	Category  string
	Type      string
	Status    string
	Data      map[string]any
}

// QualityGate is one pass/warning/fail checkpoint.
type QualityGate struct {
	MissionID string
	Gate      string
	Status    protocol.GateStatus
	Detail    string
	Data      map[string]any
}

// Telemetry is the observability sink. Recording is best-effort: the engine
// never fails an operation because the sink errored.
type Telemetry interface {
	RecordEvent(ctx context.Context, ev TelemetryEvent) error
	RecordQualityGate(ctx context.Context, gate QualityGate) error
}

// NopTelemetry discards everything.
type NopTelemetry struct{}

// RecordEvent implements Telemetry.
func (NopTelemetry) RecordEvent(context.Context, TelemetryEvent) error { return nil }

// RecordQualityGate implements Telemetry.
func (NopTelemetry) RecordQualityGate(context.Context, QualityGate) error { return nil }

// --- Config ---

// Config holds engine tunables.
type Config struct {
	// DelegationLimit caps the sub-mission stack depth (default 8).
	DelegationLimit int
	// AutoPropagatePhases are the phases whose entry triggers context
	// propagation (default execution, review).
	AutoPropagatePhases []protocol.Phase
	// RuntimeRoot is the directory boomerang checkpoints live under.
	RuntimeRoot string
	// QueryEventWindow is how many recent history events feed a composed
	// dynamic query (default 5).
	QueryEventWindow int
	// BoomerangMaxRetries and BoomerangRetentionDays are the pipeline
	// budgets RunBoomerang falls back to when the per-run options leave
	// them zero (defaults 2 and 7).
	BoomerangMaxRetries    int
	BoomerangRetentionDays int
	// RSIPMaxIterations and RSIPMinIterations bound RunSelfImprovement
	// when the per-run options leave them zero (defaults 5 and 1).
	RSIPMaxIterations int
	RSIPMinIterations int
	// Clock supplies timestamps; defaults to time.Now.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	out := c
	if out.DelegationLimit == 0 {
		out.DelegationLimit = 8
	}
	if out.AutoPropagatePhases == nil {
		out.AutoPropagatePhases = []protocol.Phase{protocol.PhaseExecution, protocol.PhaseReview}
	}
	if out.QueryEventWindow == 0 {
		out.QueryEventWindow = 5
	}
	if out.BoomerangMaxRetries == 0 {
		out.BoomerangMaxRetries = 2
	}
	if out.BoomerangRetentionDays == 0 {
		out.BoomerangRetentionDays = 7
	}
	if out.RSIPMaxIterations == 0 {
		out.RSIPMaxIterations = 5
	}
	if out.RSIPMinIterations == 0 {
		out.RSIPMinIterations = 1
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	return out
}

// --- Engine ---

// Engine is the orchestration facade. All collaborators are optional: a nil
// propagator skips context propagation, a nil history source composes
// queries without recent events, and a nil telemetry sink records nothing.
type Engine struct {
	cfg        Config
	store      *state.Store
	bus        *Bus
	propagator ContextPropagator
	history    HistorySource
	telemetry  Telemetry
	nowFunc    func() time.Time
}

// New creates an Engine around the given store and collaborators.
func New(cfg Config, store *state.Store, propagator ContextPropagator, history HistorySource, tel Telemetry) *Engine {
	if tel == nil {
		tel = NopTelemetry{}
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:        cfg,
		store:      store,
		bus:        NewBus(),
		propagator: propagator,
		history:    history,
		telemetry:  tel,
		nowFunc:    cfg.Clock,
	}
}

// Bus returns the engine's event bus for listener registration.
func (e *Engine) Bus() *Bus { return e.bus }

// Store exposes the underlying state store for read paths.
func (e *Engine) Store() *state.Store { return e.store }

// timestamp returns the current ISO-8601 timestamp from the injected clock.
func (e *Engine) timestamp() string {
	return e.nowFunc().UTC().Format(time.RFC3339)
}

// State returns a deep copy of the current snapshot.
func (e *Engine) State() (*state.Snapshot, error) {
	return e.store.State()
}

// Mission returns a deep copy of one mission record.
func (e *Engine) Mission(id string) (*state.Mission, error) {
	return e.store.Mission(id)
}

// mutate runs one mutation through the store and fires stateChanged after it
// has been durably persisted. A mutator returning errNoop yields the current
// snapshot with nothing persisted and no events.
func (e *Engine) mutate(fn func(*state.Snapshot) error) (*state.Snapshot, error) {
	snap, err := e.store.Update(fn)
	if errors.Is(err, errNoop) {
		return e.store.State()
	}
	if err != nil {
		return nil, err
	}
	e.bus.emit(protocol.EvStateChanged, StateChanged{Snapshot: snap})
	return snap, nil
}

// record mirrors a telemetry event, best-effort.
func (e *Engine) record(ctx context.Context, ev TelemetryEvent) {
	_ = e.telemetry.RecordEvent(ctx, ev)
}

// recordGate mirrors a quality gate, best-effort.
func (e *Engine) recordGate(ctx context.Context, gate QualityGate) {
	_ = e.telemetry.RecordQualityGate(ctx, gate)
}

func missionNotFoundf(id string) error {
	return fmt.Errorf("%w: %s", state.ErrNotFound, id)
}

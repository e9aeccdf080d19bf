package engine

import (
	"sync"

	"orbit/pkg/protocol"
	"orbit/pkg/state"
)

// --- Event payloads ---

// StateChanged fires after every persisted mutation.
type StateChanged struct {
	Snapshot *state.Snapshot
}

// PhaseTransitioned fires when a mission's phase actually changed.
type PhaseTransitioned struct {
	MissionID string
	From      protocol.Phase
	To        protocol.Phase
	Reason    string
	TS        string
}

// WorkflowAdvanced fires when the router promoted a queued mission.
type WorkflowAdvanced struct {
	MissionID string
	TS        string
}

// ContextUpdated fires when a propagation run stored a new context summary.
type ContextUpdated struct {
	MissionID string
	Summary   state.ContextSummary
}

// QueryReady fires when a dynamic query was composed and persisted.
type QueryReady struct {
	MissionID string
	Query     string
	TS        string
}

// MissionPaused fires on pause.
type MissionPaused struct {
	MissionID string
	Note      string
	TS        string
}

// MissionResumed fires on resume.
type MissionResumed struct {
	MissionID string
	TS        string
}

// SelfImprovementRan fires after a convergence loop run was recorded.
type SelfImprovementRan struct {
	MissionID  string
	Converged  bool
	Reason     string
	Iterations int
	TS         string
}

// --- Bus ---

// Listener receives one event payload.
type Listener func(payload any)

// Subscription identifies one registered listener, for Off.
type Subscription struct {
	name protocol.EventName
	id   uint64
}

type registration struct {
	id   uint64
	fn   Listener
	once bool
}

// Bus is a process-local typed pub/sub registry. Delivery is synchronous and
// in registration order; emit is only called after the underlying state
// mutation has been persisted.
type Bus struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[protocol.EventName][]registration
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[protocol.EventName][]registration)}
}

// On registers a listener for name.
func (b *Bus) On(name protocol.EventName, fn Listener) Subscription {
	return b.register(name, fn, false)
}

// Once registers a listener that is removed after its first delivery.
func (b *Bus) Once(name protocol.EventName, fn Listener) Subscription {
	return b.register(name, fn, true)
}

func (b *Bus) register(name protocol.EventName, fn Listener, once bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners[name] = append(b.listeners[name], registration{id: b.nextID, fn: fn, once: once})
	return Subscription{name: name, id: b.nextID}
}

// Off removes a previously registered listener. Removing an unknown or
// already removed subscription is a no-op.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.listeners[sub.name]
	for i, r := range regs {
		if r.id == sub.id {
			b.listeners[sub.name] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// emit delivers payload to every listener registered for name, in
// registration order. Once-listeners are removed before their callback runs,
// so a listener re-registering itself does not double-fire.
func (b *Bus) emit(name protocol.EventName, payload any) {
	b.mu.Lock()
	regs := b.listeners[name]
	toCall := make([]Listener, 0, len(regs))
	kept := regs[:0:0]
	for _, r := range regs {
		toCall = append(toCall, r.fn)
		if !r.once {
			kept = append(kept, r)
		}
	}
	b.listeners[name] = kept
	b.mu.Unlock()

	for _, fn := range toCall {
		fn(payload)
	}
}

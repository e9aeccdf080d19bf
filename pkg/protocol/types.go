// Package protocol defines the shared vocabulary of the Orbit control plane:
// mission phases and statuses, history event types, engine event names,
// quality gate constants, and the wire shapes of the history log and the
// telemetry database. Every other package speaks in these terms.
package protocol

// Phase represents where a mission sits in its lifecycle.
type Phase string

// Mission phase constants. The happy path is
// idle -> planning -> execution -> review -> completed; blocked is reachable
// from any non-terminal phase and completed is terminal.
const (
	PhaseIdle      Phase = "idle"
	PhasePlanning  Phase = "planning"
	PhaseExecution Phase = "execution"
	PhaseReview    Phase = "review"
	PhaseBlocked   Phase = "blocked"
	PhaseCompleted Phase = "completed"
)

// Valid reports whether p is a known phase value.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhasePlanning, PhaseExecution, PhaseReview, PhaseBlocked, PhaseCompleted:
		return true
	}
	return false
}

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted
}

// Status is the coarser scheduling-facing field that runs parallel to Phase.
type Status string

// Mission status constants.
const (
	StatusQueued     Status = "queued"
	StatusCurrent    Status = "current"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusPaused     Status = "paused"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusCurrent, StatusInProgress, StatusCompleted, StatusBlocked, StatusPaused:
		return true
	}
	return false
}

// --- Mission history event types ---

// History event type constants, appended to a mission's in-state history log.
const (
	EventWorkflowRouted       = "workflow_routed"
	EventMissionStarted       = "mission_started"
	EventPhaseTransition      = "phase_transition"
	EventMissionCompleted     = "mission_completed"
	EventMissionPaused        = "mission_paused"
	EventMissionResumed       = "mission_resumed"
	EventSubMissionStarted    = "sub_mission_started"
	EventSubMissionRecorded   = "sub_mission_recorded"
	EventSubMissionCommitted  = "sub_mission_committed"
	EventSubMissionRolledBack = "sub_mission_rolled_back"
	EventSelfImprovementRun   = "self_improvement_run"
	EventBoomerangCompleted   = "boomerang_run_completed"
	EventBoomerangFallback    = "boomerang_fallback_triggered"
	EventContextPropagated    = "context_propagated"
	EventQueryComposed        = "dynamic_query_composed"
)

// --- Engine pub/sub event names ---

// EventName identifies a typed event on the engine's process-local bus.
type EventName string

// Engine event names. stateChanged fires after every persisted mutation;
// the rest fire conditionally as described on the emitting operation.
const (
	EvStateChanged       EventName = "stateChanged"
	EvPhaseTransition    EventName = "phaseTransition"
	EvContextUpdated     EventName = "contextUpdated"
	EvQueryReady         EventName = "queryReady"
	EvWorkflowAdvanced   EventName = "workflowAdvanced"
	EvMissionPaused      EventName = "missionPaused"
	EvMissionResumed     EventName = "missionResumed"
	EvSelfImprovementRun EventName = "selfImprovementRun"
)

// --- Quality gates ---

// GateStatus is the verdict of a quality gate reported to telemetry.
type GateStatus string

// Quality gate verdicts.
const (
	GatePassed  GateStatus = "passed"
	GateWarning GateStatus = "warning"
	GateFailed  GateStatus = "failed"
)

// Known quality gate names reported by the engine.
const (
	GateMissionCompletion = "mission_completion"
	GateDelegationDepth   = "delegation_depth"
	GateSelfImprovement   = "self_improvement"
	GateBoomerangRun      = "boomerang_run"
)

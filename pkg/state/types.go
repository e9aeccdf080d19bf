// Package state implements the durable mission state store: a single JSON
// document (AgenticStateSnapshot) cached in memory, read through deep copies,
// mutated through one Update chokepoint, and persisted by writing a temp file
// and atomically renaming it over the target path.
//
// The store is single-writer by design. Two processes pointed at the same
// state path will clobber each other's writes; callers needing multi-writer
// safety must serialize externally. See New.
package state

import (
	"orbit/pkg/boomerang"
	"orbit/pkg/protocol"
	"orbit/pkg/rsip"
)

// CurrentVersion is the snapshot document version written by this store.
const CurrentVersion = 1

// MissionEvent is one append-only history entry on a mission. History is
// never mutated in place, only appended.
type MissionEvent struct {
	TS      string         `json:"ts"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SubMissionResult is one completed sub-mission outcome, appended to a
// mission's subMissions log and consumed by context summarization.
type SubMissionResult struct {
	SubMissionID string         `json:"subMissionId"`
	Input        string         `json:"input,omitempty"`
	Output       string         `json:"output,omitempty"`
	Status       string         `json:"status,omitempty"`
	Timestamp    string         `json:"timestamp"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ContextSummary is the most recent context snapshot produced by the
// external summarizer for a mission.
type ContextSummary struct {
	Summary     string `json:"summary"`
	TokenCount  int    `json:"tokenCount"`
	Strategy    string `json:"strategy,omitempty"`
	GeneratedAt string `json:"generatedAt,omitempty"`
	SourceCount int    `json:"sourceCount,omitempty"`
}

// QuerySnapshot is the most recent composed prompt for a mission.
type QuerySnapshot struct {
	Query      string `json:"query"`
	BaseQuery  string `json:"baseQuery,omitempty"`
	ComposedAt string `json:"composedAt"`
	EventCount int    `json:"eventCount"`
}

// ActiveSubMission is one frame on a mission's delegation stack. Frames are
// pushed by begin, popped by complete or rollback, and never mutated in place.
type ActiveSubMission struct {
	ID        string `json:"id"`
	StartedAt string `json:"startedAt"`
	// Parent is the mission's currentSubMission at push time, restored on pop.
	Parent    string         `json:"parent,omitempty"`
	Objective string         `json:"objective,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	// PreviousContext snapshots lastContext at push time, for rollback.
	PreviousContext *ContextSummary `json:"previousContext,omitempty"`
}

// RSIPMetrics accumulates convergence loop runs for a mission.
type RSIPMetrics struct {
	Runs            int          `json:"runs"`
	TotalIterations int          `json:"totalIterations"`
	LastRun         *rsip.Result `json:"lastRun,omitempty"`
}

// BoomerangMetrics accumulates retry pipeline runs for a mission.
type BoomerangMetrics struct {
	Runs    int                `json:"runs"`
	LastRun *boomerang.Summary `json:"lastRun,omitempty"`
}

// Mission is one unit of tracked work.
type Mission struct {
	ID        string          `json:"id"`
	Phase     protocol.Phase  `json:"phase"`
	Status    protocol.Status `json:"status"`
	Objective string          `json:"objective,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`

	// CurrentSubMission is the id of the sub-mission in focus, if any.
	CurrentSubMission string `json:"currentSubMission,omitempty"`
	// ActiveSubMissions is the delegation stack; only the top frame may be
	// completed or rolled back.
	ActiveSubMissions []ActiveSubMission `json:"activeSubMissions"`

	StartedAt   string `json:"startedAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`

	History     []MissionEvent     `json:"history"`
	SubMissions []SubMissionResult `json:"subMissions"`

	LastContext      *ContextSummary `json:"lastContext,omitempty"`
	LastDynamicQuery *QuerySnapshot  `json:"lastDynamicQuery,omitempty"`

	RSIPMetrics      RSIPMetrics      `json:"rsipMetrics"`
	BoomerangMetrics BoomerangMetrics `json:"boomerangMetrics"`
}

// AppendHistory records a history event on the mission.
func (m *Mission) AppendHistory(ts, eventType string, payload map[string]any) {
	m.History = append(m.History, MissionEvent{TS: ts, Type: eventType, Payload: payload})
}

// TopSubMission returns the top frame of the delegation stack, or nil when
// the stack is empty.
func (m *Mission) TopSubMission() *ActiveSubMission {
	if len(m.ActiveSubMissions) == 0 {
		return nil
	}
	return &m.ActiveSubMissions[len(m.ActiveSubMissions)-1]
}

// HasSubMission reports whether id is anywhere on the delegation stack.
func (m *Mission) HasSubMission(id string) bool {
	for _, f := range m.ActiveSubMissions {
		if f.ID == id {
			return true
		}
	}
	return false
}

// WorkflowState is the singleton scheduling record: one active mission slot,
// a FIFO queue, and append-only completed / paused sets.
type WorkflowState struct {
	ActiveMission string   `json:"activeMission,omitempty"`
	Queue         []string `json:"queue"`
	Completed     []string `json:"completed"`
	Paused        []string `json:"paused"`
}

// Queued reports whether id is in the FIFO queue.
func (w *WorkflowState) Queued(id string) bool {
	for _, q := range w.Queue {
		if q == id {
			return true
		}
	}
	return false
}

// MarkCompleted appends id to the completed set, preserving insertion order
// and skipping duplicates.
func (w *WorkflowState) MarkCompleted(id string) {
	for _, c := range w.Completed {
		if c == id {
			return
		}
	}
	w.Completed = append(w.Completed, id)
}

// MarkPaused adds id to the paused set, skipping duplicates.
func (w *WorkflowState) MarkPaused(id string) {
	for _, p := range w.Paused {
		if p == id {
			return
		}
	}
	w.Paused = append(w.Paused, id)
}

// Unpause removes id from the paused set.
func (w *WorkflowState) Unpause(id string) {
	out := w.Paused[:0]
	for _, p := range w.Paused {
		if p != id {
			out = append(out, p)
		}
	}
	w.Paused = out
}

// Dequeue removes id from the FIFO queue wherever it sits.
func (w *WorkflowState) Dequeue(id string) {
	out := w.Queue[:0]
	for _, q := range w.Queue {
		if q != id {
			out = append(out, q)
		}
	}
	w.Queue = out
}

// Snapshot is the whole persisted document.
type Snapshot struct {
	Version     int                 `json:"version"`
	LastUpdated string              `json:"lastUpdated"`
	Missions    map[string]*Mission `json:"missions"`
	Workflow    WorkflowState       `json:"workflow"`
}

// EnsureMission returns the mission record for id, creating it with defaults
// (phase idle, status queued) if it does not exist yet. Missions are created
// lazily on first reference; there is no delete operation.
func (s *Snapshot) EnsureMission(id string) *Mission {
	if s.Missions == nil {
		s.Missions = make(map[string]*Mission)
	}
	if m, ok := s.Missions[id]; ok {
		return m
	}
	m := newMission(id)
	s.Missions[id] = m
	return m
}

func newMission(id string) *Mission {
	return &Mission{
		ID:                id,
		Phase:             protocol.PhaseIdle,
		Status:            protocol.StatusQueued,
		ActiveSubMissions: []ActiveSubMission{},
		History:           []MissionEvent{},
		SubMissions:       []SubMissionResult{},
	}
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Version:  CurrentVersion,
		Missions: make(map[string]*Mission),
		Workflow: WorkflowState{
			Queue:     []string{},
			Completed: []string{},
			Paused:    []string{},
		},
	}
}

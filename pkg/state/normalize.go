package state

import (
	"orbit/pkg/boomerang"
	"orbit/pkg/protocol"
	"orbit/pkg/rsip"
)

// normalize repairs a freshly decoded snapshot in place. Older or partially
// written documents may omit fields, carry negative counters, or reference
// missions that have no record; every rule here turns such a document into a
// fully populated one with deterministic defaults. Do not skip this pass: it
// is what keeps the store tolerant of legacy on-disk formats.
//
// Default rules:
//   - version <= 0 becomes CurrentVersion
//   - nil maps and slices become empty, never aliased to the decoder's
//   - unknown phase -> idle, unknown status -> queued
//   - counters clamp to non-negative
//   - unknown RSIP stop reason -> max_iterations; unknown boomerang status -> failed
//   - ids referenced by the workflow but absent from missions get default records
//   - the active mission is removed from the queue if it appears there
func normalize(s *Snapshot) {
	if s.Version <= 0 {
		s.Version = CurrentVersion
	}
	if s.Missions == nil {
		s.Missions = make(map[string]*Mission)
	}
	for id, m := range s.Missions {
		if m == nil {
			m = newMission(id)
			s.Missions[id] = m
		}
		normalizeMission(id, m)
	}
	normalizeWorkflow(s)
}

func normalizeMission(id string, m *Mission) {
	m.ID = id
	if !m.Phase.Valid() {
		m.Phase = protocol.PhaseIdle
	}
	if !m.Status.Valid() {
		m.Status = protocol.StatusQueued
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if m.ActiveSubMissions == nil {
		m.ActiveSubMissions = []ActiveSubMission{}
	}
	if m.History == nil {
		m.History = []MissionEvent{}
	}
	if m.SubMissions == nil {
		m.SubMissions = []SubMissionResult{}
	}

	m.RSIPMetrics.Runs = clampCount(m.RSIPMetrics.Runs)
	m.RSIPMetrics.TotalIterations = clampCount(m.RSIPMetrics.TotalIterations)
	if r := m.RSIPMetrics.LastRun; r != nil {
		if !r.Reason.Valid() {
			r.Reason = rsip.ReasonMaxIterations
		}
		if r.Iterations == nil {
			r.Iterations = []rsip.Iteration{}
		}
	}

	m.BoomerangMetrics.Runs = clampCount(m.BoomerangMetrics.Runs)
	if b := m.BoomerangMetrics.LastRun; b != nil {
		if !b.Status.Valid() {
			b.Status = boomerang.StatusFailed
		}
		if b.CompletedSteps == nil {
			b.CompletedSteps = []string{}
		}
		if b.Diagnostics.Attempts == nil {
			b.Diagnostics.Attempts = make(map[string]int)
		}
		if b.Diagnostics.CheckpointPaths == nil {
			b.Diagnostics.CheckpointPaths = []string{}
		}
		b.Diagnostics.RetainedCheckpoints = clampCount(b.Diagnostics.RetainedCheckpoints)
	}
}

func normalizeWorkflow(s *Snapshot) {
	w := &s.Workflow
	if w.Queue == nil {
		w.Queue = []string{}
	}
	if w.Completed == nil {
		w.Completed = []string{}
	}
	if w.Paused == nil {
		w.Paused = []string{}
	}

	// Completed is set-like; drop duplicates, first occurrence wins.
	seen := make(map[string]bool, len(w.Completed))
	deduped := w.Completed[:0]
	for _, id := range w.Completed {
		if !seen[id] {
			seen[id] = true
			deduped = append(deduped, id)
		}
	}
	w.Completed = deduped

	// Self-heal dangling references: any id the workflow names must have a
	// mission record (missions are created lazily on first reference).
	if w.ActiveMission != "" {
		s.EnsureMission(w.ActiveMission)
	}
	for _, id := range w.Queue {
		s.EnsureMission(id)
	}
	for _, id := range w.Completed {
		s.EnsureMission(id)
	}
	for _, id := range w.Paused {
		s.EnsureMission(id)
	}

	// The active mission never sits in the queue as well.
	if w.ActiveMission != "" {
		w.Dequeue(w.ActiveMission)
	}
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

package state

import (
	"orbit/pkg/boomerang"
	"orbit/pkg/rsip"
)

// Clone returns a deep copy of the snapshot. Every read path returns clones;
// callers must never observe references into the store's live cache.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Version:     s.Version,
		LastUpdated: s.LastUpdated,
		Missions:    make(map[string]*Mission, len(s.Missions)),
		Workflow: WorkflowState{
			ActiveMission: s.Workflow.ActiveMission,
			Queue:         cloneStrings(s.Workflow.Queue),
			Completed:     cloneStrings(s.Workflow.Completed),
			Paused:        cloneStrings(s.Workflow.Paused),
		},
	}
	for id, m := range s.Missions {
		out.Missions[id] = m.Clone()
	}
	return out
}

// Clone returns a deep copy of the mission.
func (m *Mission) Clone() *Mission {
	if m == nil {
		return nil
	}
	out := *m
	out.Tags = cloneStrings(m.Tags)
	out.Metadata = cloneAnyMap(m.Metadata)
	out.ActiveSubMissions = make([]ActiveSubMission, len(m.ActiveSubMissions))
	for i, f := range m.ActiveSubMissions {
		out.ActiveSubMissions[i] = f.clone()
	}
	out.History = make([]MissionEvent, len(m.History))
	for i, e := range m.History {
		out.History[i] = MissionEvent{TS: e.TS, Type: e.Type, Payload: cloneAnyMap(e.Payload)}
	}
	out.SubMissions = make([]SubMissionResult, len(m.SubMissions))
	for i, r := range m.SubMissions {
		out.SubMissions[i] = r
		out.SubMissions[i].Metadata = cloneAnyMap(r.Metadata)
	}
	out.LastContext = m.LastContext.clone()
	if m.LastDynamicQuery != nil {
		q := *m.LastDynamicQuery
		out.LastDynamicQuery = &q
	}
	out.RSIPMetrics = RSIPMetrics{
		Runs:            m.RSIPMetrics.Runs,
		TotalIterations: m.RSIPMetrics.TotalIterations,
		LastRun:         cloneRSIPRun(m.RSIPMetrics.LastRun),
	}
	out.BoomerangMetrics = BoomerangMetrics{
		Runs:    m.BoomerangMetrics.Runs,
		LastRun: cloneBoomerangRun(m.BoomerangMetrics.LastRun),
	}
	return &out
}

func (f ActiveSubMission) clone() ActiveSubMission {
	out := f
	out.Metadata = cloneAnyMap(f.Metadata)
	out.PreviousContext = f.PreviousContext.clone()
	return out
}

func (c *ContextSummary) clone() *ContextSummary {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

func cloneRSIPRun(r *rsip.Result) *rsip.Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Iterations = make([]rsip.Iteration, len(r.Iterations))
	copy(out.Iterations, r.Iterations)
	return &out
}

func cloneBoomerangRun(b *boomerang.Summary) *boomerang.Summary {
	if b == nil {
		return nil
	}
	out := *b
	out.CompletedSteps = cloneStrings(b.CompletedSteps)
	out.Diagnostics.CheckpointPaths = cloneStrings(b.Diagnostics.CheckpointPaths)
	out.Diagnostics.Attempts = make(map[string]int, len(b.Diagnostics.Attempts))
	for k, v := range b.Diagnostics.Attempts {
		out.Diagnostics.Attempts[k] = v
	}
	out.LastOutput = cloneAnyMap(b.LastOutput)
	return &out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// CloneMap deep-copies a JSON-shaped metadata map. Write paths use it so a
// caller-owned map never aliases into the store's cache.
func CloneMap(in map[string]any) map[string]any {
	return cloneAnyMap(in)
}

// cloneAnyMap deep-copies a JSON-shaped map: nested maps and slices are
// copied, scalars are shared (they are immutable).
func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAnyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneAny(e)
		}
		return out
	default:
		return v
	}
}

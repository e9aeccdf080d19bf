// Package summarize provides a deterministic ContextPropagator for running
// the engine without an external summarization service. It headlines the
// most recent sub-mission outputs; real summarization strategies live
// outside the control plane and plug in through the same contract.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"orbit/pkg/engine"
	"orbit/pkg/state"
)

// Strategy is the strategy name reported in produced summaries.
const Strategy = "headline"

// Headline joins the trailing sub-mission outputs into a compact context
// block. Token counts use a whitespace-field heuristic.
type Headline struct {
	// MaxResults caps how many trailing results are included (default 5).
	MaxResults int
	// MaxChars truncates each included output to that many runes (default 240).
	MaxChars int
}

// PropagateContext implements engine.ContextPropagator.
func (h Headline) PropagateContext(_ context.Context, req engine.PropagateRequest) (state.ContextSummary, error) {
	maxResults := h.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	maxChars := h.MaxChars
	if maxChars <= 0 {
		maxChars = 240
	}

	results := req.PriorResults
	if len(results) > maxResults {
		results = results[len(results)-maxResults:]
	}

	var b strings.Builder
	if req.Objective != "" {
		fmt.Fprintf(&b, "Objective: %s\n", req.Objective)
	}
	if req.ActiveSubMission != "" {
		fmt.Fprintf(&b, "Working on: %s\n", req.ActiveSubMission)
	}
	for _, r := range results {
		out := strings.TrimSpace(r.Output)
		if out == "" {
			out = "(no output)"
		}
		if runes := []rune(out); len(runes) > maxChars {
			out = string(runes[:maxChars]) + "…"
		}
		fmt.Fprintf(&b, "- %s [%s]: %s\n", r.SubMissionID, r.Status, out)
	}

	summary := strings.TrimRight(b.String(), "\n")
	return state.ContextSummary{
		Summary:     summary,
		TokenCount:  len(strings.Fields(summary)),
		Strategy:    Strategy,
		SourceCount: len(results),
	}, nil
}

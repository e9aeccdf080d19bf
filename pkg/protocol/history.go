package protocol

// HistoryRecord is one line of the append-only mission history log
// (newline-delimited JSON). Written by agents as they work; consumed
// read-only by the eventlog package. Optional fields are omitted when empty.
type HistoryRecord struct {
	TS       string   `json:"ts"`
	Mission  string   `json:"mission"`
	Action   string   `json:"action"`
	Status   string   `json:"status,omitempty"`
	Agent    string   `json:"agent,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	NextHint string   `json:"next_hint,omitempty"`
	Needs    []string `json:"needs,omitempty"`
}

// TransitionEdge is one observed status transition for a mission, derived
// from consecutive history records with differing statuses.
type TransitionEdge struct {
	Mission string `json:"mission"`
	From    string `json:"from"`
	To      string `json:"to"`
	TS      string `json:"ts"`
	Count   int    `json:"count"`
}

// Package eventlog provides read-only access to the append-only mission
// history log: one JSON object per line, written by agents as they work.
// It parses the log into sorted events, derives status transition edges and
// recent highlights, and can watch the file for changes. Malformed lines are
// skipped, never fatal.
package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"orbit/pkg/protocol"
)

// Log reads one mission history file.
type Log struct {
	path string
}

// Open returns a Log over the history file at path. The file may not exist
// yet; LoadEvents then returns no events.
func Open(path string) *Log {
	return &Log{path: path}
}

// Path returns the backing file path.
func (l *Log) Path() string { return l.path }

// LoadEvents parses the full log, sorted by timestamp. Lines that are not
// valid JSON objects, or that lack a mission or action, are skipped.
func (l *Log) LoadEvents(ctx context.Context) ([]protocol.HistoryRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	var events []protocol.HistoryRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec protocol.HistoryRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue // malformed line, skip
		}
		if rec.Mission == "" || rec.Action == "" {
			continue
		}
		events = append(events, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history log: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].TS < events[j].TS })
	return events, nil
}

// QueryOpts filter Query results.
type QueryOpts struct {
	// Mission filters events to one mission id.
	Mission string
	// Action filters to one action value.
	Action string
	// After and Before bound the timestamp range (inclusive).
	After  *time.Time
	Before *time.Time
	// Limit keeps only the most recent N matches (0 = no limit).
	Limit int
}

// Query loads the log and applies the filter criteria, returning matches
// oldest first.
func (l *Log) Query(ctx context.Context, opts QueryOpts) ([]protocol.HistoryRecord, error) {
	events, err := l.LoadEvents(ctx)
	if err != nil {
		return nil, err
	}

	var out []protocol.HistoryRecord
	for _, ev := range events {
		if opts.Mission != "" && ev.Mission != opts.Mission {
			continue
		}
		if opts.Action != "" && ev.Action != opts.Action {
			continue
		}
		if opts.After != nil || opts.Before != nil {
			ts, err := time.Parse(time.RFC3339, ev.TS)
			if err != nil {
				continue
			}
			if opts.After != nil && ts.Before(*opts.After) {
				continue
			}
			if opts.Before != nil && ts.After(*opts.Before) {
				continue
			}
		}
		out = append(out, ev)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out, nil
}

// Transitions derives status transition edges from consecutive events per
// mission: each time a mission's status differs from its previous one, an
// edge is counted. Edges are returned in first-seen order with the timestamp
// of their latest occurrence.
func Transitions(events []protocol.HistoryRecord) []protocol.TransitionEdge {
	last := make(map[string]string)
	index := make(map[string]int)
	var edges []protocol.TransitionEdge

	for _, ev := range events {
		if ev.Status == "" {
			continue
		}
		prev, seen := last[ev.Mission]
		last[ev.Mission] = ev.Status
		if !seen || prev == ev.Status {
			continue
		}
		key := ev.Mission + "\x00" + prev + "\x00" + ev.Status
		if i, ok := index[key]; ok {
			edges[i].Count++
			edges[i].TS = ev.TS
			continue
		}
		index[key] = len(edges)
		edges = append(edges, protocol.TransitionEdge{
			Mission: ev.Mission,
			From:    prev,
			To:      ev.Status,
			TS:      ev.TS,
			Count:   1,
		})
	}
	return edges
}

// Highlights returns the most recent notable events, oldest first: failures,
// blocked statuses, and events carrying unmet needs.
func Highlights(events []protocol.HistoryRecord, n int) []protocol.HistoryRecord {
	var notable []protocol.HistoryRecord
	for _, ev := range events {
		switch {
		case ev.Status == "failed", ev.Status == "blocked", len(ev.Needs) > 0:
			notable = append(notable, ev)
		}
	}
	if n > 0 && len(notable) > n {
		notable = notable[len(notable)-n:]
	}
	return notable
}

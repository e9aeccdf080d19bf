// Package boomerang implements the checkpointed retry pipeline: an ordered
// list of named steps run against a payload, each committed by a checkpoint
// file only after it succeeds, with a bounded per-step retry budget and an
// optional fallback path. Step exhaustion is not an error: Execute always
// returns a terminal Summary and callers must inspect its Status.
package boomerang

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Status is the terminal state of a pipeline run.
type Status string

// Run statuses.
const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusFallback Status = "fallback"
)

// Valid reports whether s is a known run status.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusFallback:
		return true
	}
	return false
}

// Payload is the value threaded through the steps.
type Payload = map[string]any

// Step is one named unit of the pipeline.
type Step struct {
	Name string
	// Run transforms the payload. Called up to MaxRetries+1 times.
	Run func(ctx context.Context, p Payload) (Payload, error)
	// Fallback, if set, runs after Run exhausts its retries; the pipeline
	// then continues with status "fallback" instead of stopping.
	Fallback func(ctx context.Context, p Payload, cause error) (Payload, error)
}

// Diagnostics reports bookkeeping from a run.
type Diagnostics struct {
	// Attempts counts Run invocations per step, including failed ones.
	Attempts            map[string]int `json:"attempts"`
	CheckpointPaths     []string       `json:"checkpointPaths"`
	RetainedCheckpoints int            `json:"retainedCheckpoints"`
}

// Summary is the terminal result of a run. It is always returned, whatever
// the outcome; only infrastructure failures (checkpoint I/O) surface as
// errors from Execute.
type Summary struct {
	StartedAt      string      `json:"startedAt"`
	CompletedAt    string      `json:"completedAt"`
	Status         Status      `json:"status"`
	CompletedSteps []string    `json:"completedSteps"`
	FailedStep     string      `json:"failedStep,omitempty"`
	FallbackReason string      `json:"fallbackReason,omitempty"`
	Diagnostics    Diagnostics `json:"diagnostics"`
	LastOutput     Payload     `json:"lastOutput,omitempty"`
}

// Config holds pipeline construction parameters.
type Config struct {
	MissionID string
	Steps     []Step
	// RuntimeRoot is the directory checkpoint files are written under,
	// scoped per mission id.
	RuntimeRoot string
	// RetentionDays is the pruning horizon for old checkpoints (default 7,
	// negative rejected by New).
	RetentionDays int
	// MaxRetries is the per-step retry budget beyond the first attempt
	// (default 2, negative rejected by New — every step gets at least one
	// attempt).
	MaxRetries int
	// Now supplies timestamps; defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	out := c
	if out.RetentionDays == 0 {
		out.RetentionDays = 7
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = 2
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}

// Pipeline executes steps for one mission. No two runs for the same mission
// should execute concurrently; this is caller responsibility, same as the
// single-writer rule on the state store.
type Pipeline struct {
	cfg Config
}

// New validates the configuration and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.MissionID == "" {
		return nil, errors.New("boomerang: mission id required")
	}
	if cfg.RuntimeRoot == "" {
		return nil, errors.New("boomerang: runtime root required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("boomerang: max retries must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("boomerang: retention days must not be negative, got %d", cfg.RetentionDays)
	}
	if len(cfg.Steps) == 0 {
		return nil, errors.New("boomerang: at least one step required")
	}
	seen := make(map[string]bool, len(cfg.Steps))
	for _, s := range cfg.Steps {
		if s.Name == "" {
			return nil, errors.New("boomerang: step with empty name")
		}
		if s.Run == nil {
			return nil, fmt.Errorf("boomerang: step %q has no run func", s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("boomerang: duplicate step name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return &Pipeline{cfg: cfg.withDefaults()}, nil
}

// checkpoint is the on-disk shape of one committed step.
type checkpoint struct {
	Mission string  `json:"mission"`
	Step    string  `json:"step"`
	TS      string  `json:"ts"`
	Payload Payload `json:"payload"`
}

// Execute runs the steps in order against initial. Each step gets
// MaxRetries+1 attempts; on success its output is checkpointed and becomes
// the next step's input. A step that exhausts its budget either hands off to
// its Fallback (run continues, status "fallback") or terminates the run with
// status "failed". The returned error is non-nil only for checkpoint I/O
// failures.
func (p *Pipeline) Execute(ctx context.Context, initial Payload) (Summary, error) {
	now := p.cfg.Now
	sum := Summary{
		StartedAt:      now().UTC().Format(time.RFC3339),
		Status:         StatusSuccess,
		CompletedSteps: []string{},
		Diagnostics: Diagnostics{
			Attempts:        make(map[string]int),
			CheckpointPaths: []string{},
		},
	}

	payload := clonePayload(initial)
	for _, step := range p.cfg.Steps {
		next, err := p.runStep(ctx, step, payload, &sum)
		if err == nil {
			path, cerr := p.writeCheckpoint(step.Name, next)
			if cerr != nil {
				return sum, cerr
			}
			sum.Diagnostics.CheckpointPaths = append(sum.Diagnostics.CheckpointPaths, path)
			sum.CompletedSteps = append(sum.CompletedSteps, step.Name)
			payload = next
			continue
		}

		if step.Fallback == nil {
			sum.Status = StatusFailed
			sum.FailedStep = step.Name
			break
		}

		fb, ferr := step.Fallback(ctx, clonePayload(payload), err)
		if ferr != nil {
			sum.Status = StatusFailed
			sum.FailedStep = step.Name
			sum.FallbackReason = fmt.Sprintf("%s: fallback failed: %v", step.Name, ferr)
			break
		}
		sum.Status = StatusFallback
		sum.FallbackReason = fmt.Sprintf("%s: %v", step.Name, err)
		path, cerr := p.writeCheckpoint(step.Name, fb)
		if cerr != nil {
			return sum, cerr
		}
		sum.Diagnostics.CheckpointPaths = append(sum.Diagnostics.CheckpointPaths, path)
		sum.CompletedSteps = append(sum.CompletedSteps, step.Name)
		payload = fb
	}

	retained, err := p.pruneCheckpoints(now())
	if err != nil {
		return sum, err
	}
	sum.Diagnostics.RetainedCheckpoints = retained
	sum.LastOutput = payload
	sum.CompletedAt = now().UTC().Format(time.RFC3339)
	return sum, nil
}

// runStep attempts step.Run up to MaxRetries+1 times, counting every attempt.
func (p *Pipeline) runStep(ctx context.Context, step Step, payload Payload, sum *Summary) (Payload, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		sum.Diagnostics.Attempts[step.Name]++
		out, err := step.Run(ctx, clonePayload(payload))
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// checkpointDir is scoped per mission id under the runtime root.
func (p *Pipeline) checkpointDir() string {
	return filepath.Join(p.cfg.RuntimeRoot, p.cfg.MissionID, "checkpoints")
}

func (p *Pipeline) writeCheckpoint(step string, payload Payload) (string, error) {
	dir := p.checkpointDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create checkpoint dir: %w", err)
	}

	ts := p.cfg.Now().UTC()
	cp := checkpoint{
		Mission: p.cfg.MissionID,
		Step:    step,
		TS:      ts.Format(time.RFC3339),
		Payload: payload,
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", sanitizeName(step), ts.Format("20060102T150405.000000000Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	return path, nil
}

// pruneCheckpoints removes checkpoint files older than the retention horizon
// and returns the number kept.
func (p *Pipeline) pruneCheckpoints(now time.Time) (int, error) {
	dir := p.checkpointDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read checkpoint dir: %w", err)
	}

	cutoff := now.Add(-time.Duration(p.cfg.RetentionDays) * 24 * time.Hour)
	retained := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if checkpointTime(e).Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
			continue
		}
		retained++
	}
	return retained, nil
}

// checkpointTime recovers the write time of a checkpoint file from the
// timestamp embedded in its name, falling back to mod time. The embedded
// timestamp comes from the injected clock, which keeps retention pruning
// deterministic under a fake clock.
func checkpointTime(e os.DirEntry) time.Time {
	name := strings.TrimSuffix(e.Name(), ".json")
	if i := strings.LastIndex(name, "-"); i >= 0 {
		if ts, err := time.Parse("20060102T150405.000000000Z", name[i+1:]); err == nil {
			return ts
		}
	}
	if info, err := e.Info(); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}

// Checkpoints lists the retained checkpoint files for the mission, sorted by
// name (which embeds the write timestamp).
func (p *Pipeline) Checkpoints() ([]string, error) {
	entries, err := os.ReadDir(p.checkpointDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			out = append(out, filepath.Join(p.checkpointDir(), e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// sanitizeName makes a step name safe for use in a file name.
func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// clonePayload shallow-copies the top level of a payload so steps cannot
// mutate the committed input of a retry.
func clonePayload(p Payload) Payload {
	if p == nil {
		return Payload{}
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Package rsip implements a generic bounded iterate-until-converged loop.
// It knows nothing about missions; the engine wraps it to record per-mission
// metrics. A handler is called repeatedly with the running state, and the
// loop stops on convergence, iteration exhaustion, or handler error. Handler
// errors never propagate as Go errors: they terminate the run with reason
// "error" and whatever iterations completed.
package rsip

import (
	"context"
	"time"
)

// Reason explains why a run stopped.
type Reason string

// Stop reasons.
const (
	ReasonDisabled      Reason = "disabled"
	ReasonConverged     Reason = "converged"
	ReasonMaxIterations Reason = "max_iterations"
	ReasonError         Reason = "error"
)

// Valid reports whether r is a known stop reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonDisabled, ReasonConverged, ReasonMaxIterations, ReasonError:
		return true
	}
	return false
}

// Iteration is the recorded outcome of one handler call.
type Iteration struct {
	// Index is 1-based.
	Index            int     `json:"index"`
	ImprovementScore float64 `json:"improvementScore"`
	Summary          string  `json:"summary,omitempty"`
}

// Result summarizes a completed run.
type Result struct {
	StartedAt   string      `json:"startedAt"`
	CompletedAt string      `json:"completedAt"`
	Converged   bool        `json:"converged"`
	Reason      Reason      `json:"reason"`
	Iterations  []Iteration `json:"iterations"`
	// Err holds the handler error text when Reason is ReasonError.
	Err string `json:"error,omitempty"`
}

// Step is the input to one handler call.
type Step struct {
	// State is the value threaded forward from the previous iteration
	// (or the initial state on the first call).
	State any
	// Iteration is the 1-based index of this call.
	Iteration int
}

// Outcome is the handler's report for one iteration.
type Outcome struct {
	State            any
	ImprovementScore float64
	Summary          string
	Converged        bool
}

// Handler performs one iteration of work.
type Handler func(ctx context.Context, step Step) (Outcome, error)

// Options bound a run.
type Options struct {
	// MaxIterations caps the run; zero or negative disables the loop
	// entirely (reason "disabled", no handler calls).
	MaxIterations int
	// MinIterations is the floor below which convergence is ignored.
	// Values below 1 are treated as 1.
	MinIterations int
	// Now supplies timestamps; defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	out := o
	if out.MinIterations < 1 {
		out.MinIterations = 1
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}

// Run executes the loop: call the handler up to MaxIterations times,
// threading state forward. After each call, stop with reason "converged"
// once the handler reports convergence and the iteration index has reached
// MinIterations. A handler error (or context cancellation between
// iterations) stops the run with reason "error".
func Run(ctx context.Context, initial any, handler Handler, opts Options) Result {
	opts = opts.withDefaults()

	res := Result{
		StartedAt:  opts.Now().UTC().Format(time.RFC3339),
		Iterations: []Iteration{},
	}

	if opts.MaxIterations <= 0 {
		res.Reason = ReasonDisabled
		res.CompletedAt = opts.Now().UTC().Format(time.RFC3339)
		return res
	}

	state := initial
	for i := 1; i <= opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			res.Reason = ReasonError
			res.Err = err.Error()
			break
		}

		out, err := handler(ctx, Step{State: state, Iteration: i})
		if err != nil {
			res.Reason = ReasonError
			res.Err = err.Error()
			break
		}

		res.Iterations = append(res.Iterations, Iteration{
			Index:            i,
			ImprovementScore: out.ImprovementScore,
			Summary:          out.Summary,
		})
		state = out.State

		if out.Converged && i >= opts.MinIterations {
			res.Converged = true
			res.Reason = ReasonConverged
			break
		}
		if i == opts.MaxIterations {
			res.Reason = ReasonMaxIterations
		}
	}

	res.CompletedAt = opts.Now().UTC().Format(time.RFC3339)
	return res
}

package engine

import (
	"context"

	"orbit/pkg/boomerang"
	"orbit/pkg/protocol"
	"orbit/pkg/rsip"
	"orbit/pkg/state"
)

// RunSelfImprovement executes a convergence loop for the mission and records
// the run: run counter and cumulative iteration count bumped, latest run
// snapshot stored, a self_improvement_run history event appended, and a
// quality gate recorded (passed when converged, warning otherwise).
// Zero iteration bounds in opts fall back to the engine config; a negative
// MaxIterations still disables the loop.
func (e *Engine) RunSelfImprovement(ctx context.Context, missionID string, initial any, handler rsip.Handler, opts rsip.Options) (rsip.Result, error) {
	if opts.MaxIterations == 0 {
		opts.MaxIterations = e.cfg.RSIPMaxIterations
	}
	if opts.MinIterations == 0 {
		opts.MinIterations = e.cfg.RSIPMinIterations
	}
	if opts.Now == nil {
		opts.Now = e.nowFunc
	}
	res := rsip.Run(ctx, initial, handler, opts)

	ts := e.timestamp()
	_, err := e.mutate(func(s *state.Snapshot) error {
		m := s.EnsureMission(missionID)
		m.RSIPMetrics.Runs++
		m.RSIPMetrics.TotalIterations += len(res.Iterations)
		stored := res
		m.RSIPMetrics.LastRun = &stored
		m.UpdatedAt = ts
		m.AppendHistory(ts, protocol.EventSelfImprovementRun, map[string]any{
			"reason":     string(res.Reason),
			"converged":  res.Converged,
			"iterations": len(res.Iterations),
		})
		return nil
	})
	if err != nil {
		return res, err
	}

	gateStatus := protocol.GateWarning
	if res.Converged {
		gateStatus = protocol.GatePassed
	}
	e.recordGate(ctx, QualityGate{
		MissionID: missionID,
		Gate:      protocol.GateSelfImprovement,
		Status:    gateStatus,
		Detail:    string(res.Reason),
		Data:      map[string]any{"iterations": len(res.Iterations)},
	})
	e.bus.emit(protocol.EvSelfImprovementRun, SelfImprovementRan{
		MissionID:  missionID,
		Converged:  res.Converged,
		Reason:     string(res.Reason),
		Iterations: len(res.Iterations),
		TS:         ts,
	})
	return res, nil
}

// BoomerangOptions override pipeline construction per run; zero values defer
// to the engine config and pipeline defaults.
type BoomerangOptions struct {
	RuntimeRoot   string
	RetentionDays int
	MaxRetries    int
}

// RunBoomerang executes a checkpointed retry pipeline for the mission and
// records the run: run counter bumped, latest summary stored, a
// boomerang_run_completed history event appended (plus
// boomerang_fallback_triggered when the fallback path ran), and a quality
// gate recorded that distinguishes failure from fallback. Step exhaustion is
// reported through the summary's status, never as an error.
func (e *Engine) RunBoomerang(ctx context.Context, missionID string, steps []boomerang.Step, initial boomerang.Payload, opts BoomerangOptions) (boomerang.Summary, error) {
	root := opts.RuntimeRoot
	if root == "" {
		root = e.cfg.RuntimeRoot
	}
	retention := opts.RetentionDays
	if retention == 0 {
		retention = e.cfg.BoomerangRetentionDays
	}
	retries := opts.MaxRetries
	if retries == 0 {
		retries = e.cfg.BoomerangMaxRetries
	}
	pipe, err := boomerang.New(boomerang.Config{
		MissionID:     missionID,
		Steps:         steps,
		RuntimeRoot:   root,
		RetentionDays: retention,
		MaxRetries:    retries,
		Now:           e.nowFunc,
	})
	if err != nil {
		return boomerang.Summary{}, err
	}

	sum, err := pipe.Execute(ctx, initial)
	if err != nil {
		return sum, err
	}

	ts := e.timestamp()
	_, err = e.mutate(func(s *state.Snapshot) error {
		m := s.EnsureMission(missionID)
		m.BoomerangMetrics.Runs++
		stored := sum
		m.BoomerangMetrics.LastRun = &stored
		m.UpdatedAt = ts
		m.AppendHistory(ts, protocol.EventBoomerangCompleted, map[string]any{
			"status":         string(sum.Status),
			"completedSteps": len(sum.CompletedSteps),
			"failedStep":     sum.FailedStep,
		})
		if sum.Status == boomerang.StatusFallback {
			m.AppendHistory(ts, protocol.EventBoomerangFallback, map[string]any{
				"reason": sum.FallbackReason,
			})
		}
		return nil
	})
	if err != nil {
		return sum, err
	}

	gate := QualityGate{
		MissionID: missionID,
		Gate:      protocol.GateBoomerangRun,
		Status:    protocol.GatePassed,
		Detail:    "all steps completed",
	}
	switch sum.Status {
	case boomerang.StatusFailed:
		gate.Status = protocol.GateFailed
		gate.Detail = "step failed: " + sum.FailedStep
	case boomerang.StatusFallback:
		gate.Status = protocol.GateFailed
		gate.Detail = "fallback taken: " + sum.FallbackReason
	}
	e.recordGate(ctx, gate)
	return sum, nil
}

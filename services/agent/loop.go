// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianAgent/services/agent/control"
	"github.com/AleutianAI/AleutianAgent/services/agent/trace"
)

var (
	runsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_runs_completed_total",
		Help: "Total completed runs by terminal phase",
	}, []string{"terminal"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_run_duration_seconds",
		Help:    "Wall-clock duration of completed runs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	})

	runSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_run_steps",
		Help:    "Decision passes consumed per run",
		Buckets: []float64{1, 2, 3, 5, 8, 12, 20},
	})
)

var loopTracer = otel.Tracer("aleutian.agent.loop")

// PhaseExecutor performs one phase's work against the run state.
type PhaseExecutor interface {
	// Execute mutates the state for its phase. Returning an error
	// aborts the run; phase-level faults that should not abort must be
	// absorbed into the state instead.
	Execute(ctx context.Context, s *RunState) error
}

// PhaseRegistry resolves a phase to its executor.
type PhaseRegistry interface {
	Executor(phase Phase) (PhaseExecutor, bool)
}

// Runner drives a run from question to terminal state.
//
// Description:
//
//	Each iteration asks the Orchestrator for a decision, then
//	dispatches the chosen phase. The memory phase runs unconditionally
//	after every think phase. Cancellation is checked between phases;
//	a phase in flight is treated as atomic.
//
// Thread Safety: Safe for concurrent use; every Run owns its state.
type Runner struct {
	orch     *Orchestrator
	phases   PhaseRegistry
	recorder *trace.Recorder
}

// NewRunner wires the loop over its collaborators.
func NewRunner(orch *Orchestrator, phases PhaseRegistry, recorder *trace.Recorder) (*Runner, error) {
	if orch == nil {
		return nil, fmt.Errorf("runner: orchestrator must not be nil")
	}
	if phases == nil {
		return nil, fmt.Errorf("runner: phase registry must not be nil")
	}
	return &Runner{orch: orch, phases: phases, recorder: recorder}, nil
}

// Run answers one question within the given budgets.
//
// Outputs:
//
//	*RunState - The terminal state. Non-nil even on error, so callers
//	can inspect how far the run got.
//	error - Non-nil on cancellation or a broken phase registry.
func (r *Runner) Run(ctx context.Context, question string, budgets control.Budgets) (*RunState, error) {
	state, err := NewRunState(question, budgets)
	if err != nil {
		return nil, err
	}
	return state, r.resume(ctx, state)
}

// resume drives an existing state to a terminal phase.
func (r *Runner) resume(ctx context.Context, state *RunState) error {
	ctx, span := loopTracer.Start(ctx, "runner.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", state.ID))

	start := time.Now()
	defer func() {
		terminal := state.Terminal
		if terminal == "" {
			// Aborted mid-flight (cancellation, broken registry).
			terminal = state.PhaseNext
		}
		runDuration.Observe(time.Since(start).Seconds())
		runSteps.Observe(float64(state.StepCount))
		runsCompleted.WithLabelValues(string(terminal)).Inc()
		slog.Info("Run finished",
			slog.String("run_id", state.ID),
			slog.String("terminal", string(terminal)),
			slog.Int("steps", state.StepCount),
			slog.Int("tool_calls", state.ToolCalls))
	}()

	for {
		if err := ctx.Err(); err != nil {
			state.AppendLog("run cancelled between phases")
			return err
		}

		if err := r.orch.Decide(ctx, state); err != nil {
			return err
		}
		r.enforceStepBackstop(state)

		if state.PhaseNext == PhaseStop {
			state.Terminal = PhaseStop
			return nil
		}

		phase := state.PhaseNext
		if err := r.executePhase(ctx, phase, state); err != nil {
			return err
		}

		// The memory phase follows every think phase unconditionally.
		if phase == PhaseThink {
			if err := r.executePhase(ctx, PhaseMemory, state); err != nil {
				return err
			}
		}

		if phase == PhaseAnswer {
			state.Terminal = PhaseAnswer
			state.PhaseNext = PhaseStop
			return nil
		}
	}
}

// enforceStepBackstop forces a terminal phase once the step budget is
// spent. The decision table's own step guardrail sits below the
// failure-recovery rules, so this outer check is what makes the
// termination bound unconditional.
func (r *Runner) enforceStepBackstop(state *RunState) {
	if state.StepCount < state.Budgets.MaxSteps {
		return
	}
	if state.PhaseNext == PhaseAnswer || state.PhaseNext == PhaseStop {
		return
	}
	if state.HasEvidence() {
		state.AppendLog(fmt.Sprintf("[step %d] step budget exhausted; answering best-effort", state.StepCount))
		state.PhaseNext = PhaseAnswer
	} else {
		state.AppendLog(fmt.Sprintf("[step %d] step budget exhausted; stopping", state.StepCount))
		state.PhaseNext = PhaseStop
	}
}

// executePhase dispatches one phase through the registry.
func (r *Runner) executePhase(ctx context.Context, phase Phase, state *RunState) error {
	exec, ok := r.phases.Executor(phase)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPhase, phase)
	}

	start := time.Now()
	err := exec.Execute(ctx, state)
	elapsed := time.Since(start)

	if r.recorder != nil {
		detail := fmt.Sprintf("phase %s completed", phase)
		if err != nil {
			detail = fmt.Sprintf("phase %s failed: %v", phase, err)
		}
		r.recorder.Record(trace.Event{
			Step:       state.StepCount,
			Kind:       trace.KindPhase,
			Phase:      string(phase),
			Detail:     detail,
			DurationMS: elapsed.Milliseconds(),
		})
	}
	if err != nil {
		return fmt.Errorf("phase %s: %w", phase, err)
	}
	return nil
}

// DefaultPhaseRegistry is a map-backed PhaseRegistry.
//
// Thread Safety: Read-only after construction; safe for concurrent use.
type DefaultPhaseRegistry struct {
	executors map[Phase]PhaseExecutor
}

// NewPhaseRegistry builds a registry from a phase-to-executor map.
func NewPhaseRegistry(executors map[Phase]PhaseExecutor) *DefaultPhaseRegistry {
	m := make(map[Phase]PhaseExecutor, len(executors))
	for phase, exec := range executors {
		m[phase] = exec
	}
	return &DefaultPhaseRegistry{executors: m}
}

// Executor implements the PhaseRegistry interface.
func (d *DefaultPhaseRegistry) Executor(phase Phase) (PhaseExecutor, bool) {
	exec, ok := d.executors[phase]
	return exec, ok
}

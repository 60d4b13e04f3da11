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
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianAgent/services/agent/decode"
	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
	"github.com/AleutianAI/AleutianAgent/services/agent/trace"
	"github.com/AleutianAI/AleutianAgent/services/llm"
)

var (
	decisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_decisions_total",
		Help: "Total control-plane decisions by rule",
	}, []string{"rule"})

	planInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_plan_invalidations_total",
		Help: "Total plan invalidations by reason",
	}, []string{"reason"})

	llmDecodeFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_llm_decode_fallbacks_total",
		Help: "Total deterministic fallbacks taken after undecodable model replies",
	}, []string{"site"})
)

var orchestratorTracer = otel.Tracer("aleutian.agent.orchestrator")

// Decision rule labels, in priority order. Used for metrics and trace
// events only; routing never branches on them.
const (
	ruleFastPath       = "fast_path"
	ruleFailCap        = "fail_cap"
	ruleFailRecovery   = "fail_recovery"
	rulePlanCreate     = "plan_create"
	rulePlanInvalidate = "plan_invalidate"
	rulePlanExecute    = "plan_execute"
	ruleGuardrail      = "guardrail"
	ruleOpportunistic  = "opportunistic"
	ruleResidualFast   = "residual_fast_path"
	ruleFallback       = "fallback_routing"
)

// Orchestrator is the control plane: a strict-priority decision table
// evaluated once per step.
//
// Description:
//
//	Decide reads the run state, fires the first matching rule, sets
//	PhaseNext, and returns. Rules are predicates over counters and
//	budgets; at most one reasoning call happens per pass, and every
//	undecodable model reply is replaced by a deterministic fallback,
//	so repeated invocation always reaches a terminal phase.
//
// Thread Safety: Safe for concurrent use across runs; each call owns
// its RunState exclusively.
type Orchestrator struct {
	llm      llm.Client
	registry *tools.Registry
	recorder *trace.Recorder
}

// NewOrchestrator creates the control plane over its collaborators.
//
// Inputs:
//
//	client - The reasoning capability. Must not be nil.
//	registry - The tool catalog. Must not be nil.
//	recorder - The run trace sink. May be nil to disable tracing.
func NewOrchestrator(client llm.Client, registry *tools.Registry, recorder *trace.Recorder) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("orchestrator: llm client must not be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("orchestrator: tool registry must not be nil")
	}
	return &Orchestrator{llm: client, registry: registry, recorder: recorder}, nil
}

// Decide runs one decision pass over the state.
//
// Description:
//
//	Increments StepCount by exactly one, evaluates the rule table
//	top-to-bottom, and sets PhaseNext before returning. Decide never
//	returns an error for model misbehavior; the only error paths are
//	context cancellation and programmer mistakes.
func (o *Orchestrator) Decide(ctx context.Context, s *RunState) error {
	if s == nil {
		return fmt.Errorf("decide: state must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := orchestratorTracer.Start(ctx, "orchestrator.Decide")
	defer span.End()

	s.StepCount++
	span.SetAttributes(
		attribute.String("run.id", s.ID),
		attribute.Int("run.step", s.StepCount),
	)

	pass := &decisionPass{orch: o, state: s}
	rule := pass.run(ctx)

	decisionTotal.WithLabelValues(rule).Inc()
	span.SetAttributes(
		attribute.String("decision.rule", rule),
		attribute.String("decision.phase_next", string(s.PhaseNext)),
	)
	o.record(trace.Event{
		Step:   s.StepCount,
		Kind:   trace.KindDecision,
		Phase:  string(s.PhaseNext),
		Detail: fmt.Sprintf("rule %s routed to %s", rule, s.PhaseNext),
	})
	slog.Debug("Control-plane decision",
		slog.String("run_id", s.ID),
		slog.Int("step", s.StepCount),
		slog.String("rule", rule),
		slog.String("phase_next", string(s.PhaseNext)))
	return nil
}

func (o *Orchestrator) record(ev trace.Event) {
	if o.recorder != nil {
		o.recorder.Record(ev)
	}
}

// decisionPass carries the per-pass scratch state, chiefly the
// one-reasoning-call guard.
type decisionPass struct {
	orch    *Orchestrator
	state   *RunState
	llmUsed bool
}

// run evaluates the rule table and returns the label of the rule that
// fired. PhaseNext is always assigned before returning.
func (p *decisionPass) run(ctx context.Context) string {
	if p.ruleFastPath() {
		return ruleFastPath
	}
	if p.ruleFailCap() {
		return ruleFailCap
	}
	if p.ruleFailRecovery() {
		return ruleFailRecovery
	}
	if p.rulePlanCreate(ctx) {
		return rulePlanCreate
	}
	if done, terminalized := p.rulePlanInvalidate(); done && terminalized {
		return rulePlanInvalidate
	}
	if p.rulePlanExecute(ctx) {
		return rulePlanExecute
	}
	if p.ruleGuardrails() {
		return ruleGuardrail
	}
	if p.ruleOpportunistic() {
		return ruleOpportunistic
	}
	if p.ruleFastPath() {
		return ruleResidualFast
	}
	p.ruleFallbackRouting(ctx)
	return ruleFallback
}

// generate consults the reasoning capability, enforcing the hard cap
// of one call per pass. The second caller in a pass gets ok=false and
// must take its deterministic fallback.
func (p *decisionPass) generate(ctx context.Context, prompt string) (string, bool) {
	if p.llmUsed {
		return "", false
	}
	p.llmUsed = true
	reply, err := p.orch.llm.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		slog.Warn("Reasoning call failed during decision pass",
			slog.String("run_id", p.state.ID),
			slog.String("error", err.Error()))
		return "", false
	}
	return reply, true
}

// === Rule 1 / Rule 9: arithmetic fast path ===

// ruleFastPath handles questions that are bare arithmetic expressions.
// Planning and tool selection are bypassed entirely.
func (p *decisionPass) ruleFastPath() bool {
	s := p.state
	if !tools.IsArithmeticExpression(s.Question) {
		return false
	}

	// A prior calculator attempt settles the run.
	for i := len(s.ToolResults) - 1; i >= 0; i-- {
		if s.ToolResults[i].Tool != tools.ToolCalculator {
			continue
		}
		if s.ToolResults[i].Failed {
			s.AppendLog(fmt.Sprintf("[step %d] calculator failed on direct expression; stopping", s.StepCount))
			s.PhaseNext = PhaseStop
		} else {
			s.PhaseNext = PhaseAnswer
		}
		return true
	}

	if s.Budgets.ToolBudgetExhausted(s.ToolCalls, s.ToolLatencyMS) {
		s.AppendLog(fmt.Sprintf("[step %d] tool budget exhausted before calculator could run; stopping", s.StepCount))
		s.PhaseNext = PhaseStop
		return true
	}

	s.ToolRequest = &tools.Request{
		Tool: tools.ToolCalculator,
		Args: map[string]any{"expression": strings.TrimSpace(s.Question)},
	}
	s.AppendLog(fmt.Sprintf("[step %d] REASON → TOOL (calculator)", s.StepCount))
	s.PhaseNext = PhaseTool
	return true
}

// === Rule 2: terminal tool-failure guardrail ===

func (p *decisionPass) ruleFailCap() bool {
	s := p.state
	if s.ToolFailCount < s.Budgets.ToolFailCap {
		return false
	}
	// Evidence means something usable: knowledge or a successful tool
	// result. A pile of failed attempts is not evidence.
	if s.HasEvidence() {
		s.AppendLog(fmt.Sprintf("[step %d] tool failure cap reached; answering best-effort", s.StepCount))
		s.PhaseNext = PhaseAnswer
	} else {
		s.AppendLog(fmt.Sprintf("[step %d] tool failure cap reached with no evidence; stopping", s.StepCount))
		s.PhaseNext = PhaseStop
	}
	return true
}

// === Rule 3: failure recovery ===

// ruleFailRecovery dispatches a repaired request when one is waiting,
// and otherwise sends the run to the think phase to produce one.
func (p *decisionPass) ruleFailRecovery() bool {
	s := p.state
	if s.ToolFailCount == 0 {
		return false
	}
	if s.RepairedToolRequest != nil {
		// A repair is still a tool call; the budget binds here exactly
		// as it does on the fallback routing path.
		if s.Budgets.ToolBudgetExhausted(s.ToolCalls, s.ToolLatencyMS) {
			s.ClearToolRequests()
			if s.HasEvidence() {
				s.AppendLog(fmt.Sprintf("[step %d] tool budget exhausted before repair; answering best-effort", s.StepCount))
				s.PhaseNext = PhaseAnswer
			} else {
				s.AppendLog(fmt.Sprintf("[step %d] tool budget exhausted before repair; stopping", s.StepCount))
				s.PhaseNext = PhaseStop
			}
			return true
		}
		s.AppendLog(fmt.Sprintf("[step %d] dispatching repaired %s request", s.StepCount, s.RepairedToolRequest.Tool))
		s.PhaseNext = PhaseTool
		return true
	}
	s.AppendLog(fmt.Sprintf("[step %d] tool failure pending; requesting repair", s.StepCount))
	s.PhaseNext = PhaseThink
	return true
}

// === Rule 4: planning ===

// rulePlanCreate asks the reasoning capability for a short plan when
// none exists. A created plan ends the pass; an undecodable reply is
// "no plan" and later rules take over without a second reasoning call.
func (p *decisionPass) rulePlanCreate(ctx context.Context) bool {
	s := p.state
	if len(s.Plan) > 0 {
		return false
	}

	reply, ok := p.generate(ctx, planPrompt(s))
	if !ok {
		return false
	}

	valid := map[string]bool{
		string(PhaseThink):    true,
		string(PhaseRetrieve): true,
		string(PhaseTool):     true,
		string(PhaseAnswer):   true,
	}
	plan, err := decode.DecodePlan(reply, valid, s.Budgets.PlanMax)
	if err != nil {
		llmDecodeFallbacks.WithLabelValues("plan").Inc()
		slog.Debug("Plan reply undecodable, continuing without a plan",
			slog.String("run_id", s.ID),
			slog.String("error", err.Error()))
		return false
	}

	s.Plan = plan
	s.AppendLog(fmt.Sprintf("[step %d] PLAN created: %s", s.StepCount, strings.Join(plan, " → ")))
	s.PhaseNext = PhaseThink
	return true
}

// === Rule 5: plan invalidation ===

// rulePlanInvalidate drops a plan whose head step became unexecutable.
// The bool pair is (fired, assignedPhase): most invalidations clear
// the plan and let later rules route, but a tool head with an
// exhausted budget terminates here.
func (p *decisionPass) rulePlanInvalidate() (bool, bool) {
	s := p.state
	if len(s.Plan) == 0 {
		return false, false
	}

	head := s.Plan[0]
	switch {
	case head == string(PhaseRetrieve) && s.RetrieveCount >= s.Budgets.RetrieveCap:
		s.Plan = nil
		planInvalidations.WithLabelValues("retrieve_cap").Inc()
		s.AppendLog(fmt.Sprintf("[step %d] PLAN invalidated: retrieve_cap reached", s.StepCount))
		return true, false

	case head == string(PhaseTool) && s.ToolFailCount > 0:
		s.Plan = nil
		planInvalidations.WithLabelValues("failure_pending").Inc()
		s.AppendLog(fmt.Sprintf("[step %d] PLAN invalidated: tool failure pending", s.StepCount))
		return true, false

	case head == string(PhaseTool) && s.Budgets.ToolBudgetExhausted(s.ToolCalls, s.ToolLatencyMS):
		s.Plan = nil
		planInvalidations.WithLabelValues("tool_budget").Inc()
		s.AppendLog(fmt.Sprintf("[step %d] PLAN invalidated: tool budget exhausted", s.StepCount))
		if s.HasEvidence() {
			s.PhaseNext = PhaseAnswer
		} else {
			s.PhaseNext = PhaseStop
		}
		return true, true
	}
	return false, false
}

// === Rule 6: plan execution ===

// rulePlanExecute pops the head of a surviving plan and routes to it.
func (p *decisionPass) rulePlanExecute(ctx context.Context) bool {
	s := p.state
	if len(s.Plan) == 0 {
		return false
	}

	head := s.Plan[0]
	s.Plan = s.Plan[1:]

	switch head {
	case string(PhaseTool):
		// The fast path still bypasses selection for plan-driven tools.
		if tools.IsArithmeticExpression(s.Question) {
			s.ToolRequest = &tools.Request{
				Tool: tools.ToolCalculator,
				Args: map[string]any{"expression": strings.TrimSpace(s.Question)},
			}
			s.AppendLog(fmt.Sprintf("[step %d] PLAN → TOOL (calculator)", s.StepCount))
			s.PhaseNext = PhaseTool
			return true
		}

		choice, ok := p.chooseTool(ctx)
		if !ok {
			llmDecodeFallbacks.WithLabelValues("tool_choice").Inc()
			s.AppendLog(fmt.Sprintf("[step %d] PLAN tool selection failed; thinking instead", s.StepCount))
			s.PhaseNext = PhaseThink
			return true
		}
		s.ToolRequest = &tools.Request{Tool: choice.Tool, Args: choice.Args}
		s.AppendLog(fmt.Sprintf("[step %d] PLAN → TOOL (%s)", s.StepCount, choice.Tool))
		s.PhaseNext = PhaseTool
		return true

	case string(PhaseRetrieve):
		s.AppendLog(fmt.Sprintf("[step %d] PLAN → RETRIEVE", s.StepCount))
		s.PhaseNext = PhaseRetrieve
		return true

	case string(PhaseAnswer):
		s.AppendLog(fmt.Sprintf("[step %d] PLAN → ANSWER", s.StepCount))
		s.PhaseNext = PhaseAnswer
		return true

	default:
		s.AppendLog(fmt.Sprintf("[step %d] PLAN → THINK", s.StepCount))
		s.PhaseNext = PhaseThink
		return true
	}
}

// chooseTool asks the reasoning capability to pick from the filtered,
// sorted catalog. ok is false when the reply is undecodable, names a
// tool outside the allowed set, or the pass's reasoning call is spent.
func (p *decisionPass) chooseTool(ctx context.Context) (decode.ToolChoice, bool) {
	s := p.state
	allowed := p.orch.registry.Allowed(s.Budgets.MaxToolRisk)
	if len(allowed) == 0 {
		return decode.ToolChoice{}, false
	}

	reply, ok := p.generate(ctx, toolChoicePrompt(s, allowed))
	if !ok {
		return decode.ToolChoice{}, false
	}

	allowedNames := make(map[string]bool, len(allowed))
	for _, info := range allowed {
		allowedNames[info.Name] = true
	}
	choice, err := decode.DecodeToolChoice(reply, allowedNames)
	if err != nil {
		return decode.ToolChoice{}, false
	}
	return choice, true
}

// === Rule 7: guardrails ===

func (p *decisionPass) ruleGuardrails() bool {
	s := p.state
	if s.StepCount >= s.Budgets.MaxSteps {
		s.AppendLog(fmt.Sprintf("[step %d] step budget exhausted; stopping", s.StepCount))
		s.PhaseNext = PhaseStop
		return true
	}
	if s.RetrieveCount >= s.Budgets.RetrieveCap && len(s.Knowledge) == 0 {
		s.AppendLog(fmt.Sprintf("[step %d] retrieve_cap reached with no knowledge; stopping", s.StepCount))
		s.PhaseNext = PhaseStop
		return true
	}
	// A repaired request with no active error is stale. Clear it and
	// keep evaluating.
	if s.RepairedToolRequest != nil && s.LastError == "" {
		s.RepairedToolRequest = nil
	}
	return false
}

// === Rule 8: opportunistic success ===

func (p *decisionPass) ruleOpportunistic() bool {
	s := p.state
	last := s.LastToolResult()
	if last == nil || last.Failed {
		return false
	}
	s.AppendLog(fmt.Sprintf("[step %d] %s succeeded; answering", s.StepCount, last.Tool))
	s.PhaseNext = PhaseAnswer
	return true
}

// === Rule 10: fallback routing ===

// ruleFallbackRouting is the terminal rule; it always assigns a phase.
func (p *decisionPass) ruleFallbackRouting(ctx context.Context) {
	s := p.state
	allowed := p.orch.registry.Allowed(s.Budgets.MaxToolRisk)

	reply, ok := p.generate(ctx, routingPrompt(s, allowed))
	if ok {
		validNext := map[string]bool{
			string(PhaseThink):    true,
			string(PhaseRetrieve): true,
			string(PhaseTool):     true,
			string(PhaseAnswer):   true,
			string(PhaseStop):     true,
		}
		allowedNames := make(map[string]bool, len(allowed))
		for _, info := range allowed {
			allowedNames[info.Name] = true
		}
		routing, err := decode.DecodeRouting(reply, validNext, allowedNames)
		if err == nil {
			if routing.Next == string(PhaseTool) {
				if s.Budgets.ToolBudgetExhausted(s.ToolCalls, s.ToolLatencyMS) {
					p.deterministicFallback("tool budget exhausted")
					return
				}
				s.ToolRequest = &tools.Request{Tool: routing.Tool, Args: routing.Args}
			}
			s.AppendLog(fmt.Sprintf("[step %d] routed to %s", s.StepCount, routing.Next))
			s.PhaseNext = Phase(routing.Next)
			return
		}
		llmDecodeFallbacks.WithLabelValues("routing").Inc()
	}
	p.deterministicFallback("routing reply undecodable")
}

// deterministicFallback is the no-reasoning escape hatch: retrieve if
// that can still help, stop otherwise.
func (p *decisionPass) deterministicFallback(reason string) {
	s := p.state
	if len(s.Knowledge) == 0 && s.RetrieveCount < s.Budgets.RetrieveCap {
		s.AppendLog(fmt.Sprintf("[step %d] fallback (%s): retrieving", s.StepCount, reason))
		s.PhaseNext = PhaseRetrieve
		return
	}
	s.AppendLog(fmt.Sprintf("[step %d] fallback (%s): stopping", s.StepCount, reason))
	s.PhaseNext = PhaseStop
}

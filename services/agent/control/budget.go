// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package control

import "fmt"

// Budgets carries every hard limit a run is allowed to consume.
//
// Description:
//
//	A zero Budgets value is not usable; construct with DefaultBudgets
//	and override fields, then call Validate before starting a run.
//	Budgets are compared against monotonically increasing counters in
//	the run state, so enforcement is exact regardless of which
//	component performs the check.
type Budgets struct {
	// MaxSteps bounds the number of decision passes for a run.
	MaxSteps int `json:"max_steps" yaml:"max_steps" validate:"gt=0"`

	// RetrieveCap bounds the number of retrieval rounds.
	RetrieveCap int `json:"retrieve_cap" yaml:"retrieve_cap" validate:"gte=0"`

	// ToolFailCap bounds consecutive-run tool failures before the run
	// is forced to terminate.
	ToolFailCap int `json:"tool_fail_cap" yaml:"tool_fail_cap" validate:"gt=0"`

	// ToolCallCap bounds total tool invocation attempts.
	ToolCallCap int `json:"tool_call_cap" yaml:"tool_call_cap" validate:"gt=0"`

	// ToolLatencyCapMS bounds cumulative successful tool latency in
	// milliseconds.
	ToolLatencyCapMS int64 `json:"tool_latency_cap_ms" yaml:"tool_latency_cap_ms" validate:"gt=0"`

	// MaxToolRisk is the highest risk level a tool may declare and
	// still be dispatched.
	MaxToolRisk RiskLevel `json:"max_tool_risk" yaml:"max_tool_risk" validate:"oneof=low medium high"`

	// MemoryEvery is the reasoning-log growth interval that triggers
	// memory compaction. Zero disables compaction.
	MemoryEvery int `json:"memory_every" yaml:"memory_every" validate:"gte=0"`

	// PlanMax bounds the number of steps a generated plan may hold.
	PlanMax int `json:"plan_max" yaml:"plan_max" validate:"gt=0"`
}

// DefaultBudgets returns the standard budget set for interactive runs.
func DefaultBudgets() Budgets {
	return Budgets{
		MaxSteps:         12,
		RetrieveCap:      3,
		ToolFailCap:      2,
		ToolCallCap:      4,
		ToolLatencyCapMS: 8000,
		MaxToolRisk:      RiskMedium,
		MemoryEvery:      6,
		PlanMax:          3,
	}
}

// Validate checks that every limit is internally coherent.
//
// Outputs:
//
//	error - Non-nil naming the first invalid field.
func (b Budgets) Validate() error {
	if b.MaxSteps <= 0 {
		return fmt.Errorf("budgets: max_steps must be positive, got %d", b.MaxSteps)
	}
	if b.RetrieveCap < 0 {
		return fmt.Errorf("budgets: retrieve_cap must be non-negative, got %d", b.RetrieveCap)
	}
	if b.ToolFailCap <= 0 {
		return fmt.Errorf("budgets: tool_fail_cap must be positive, got %d", b.ToolFailCap)
	}
	if b.ToolCallCap <= 0 {
		return fmt.Errorf("budgets: tool_call_cap must be positive, got %d", b.ToolCallCap)
	}
	if b.ToolLatencyCapMS <= 0 {
		return fmt.Errorf("budgets: tool_latency_cap_ms must be positive, got %d", b.ToolLatencyCapMS)
	}
	switch b.MaxToolRisk {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		return fmt.Errorf("budgets: max_tool_risk must be low, medium, or high, got %q", b.MaxToolRisk)
	}
	if b.MemoryEvery < 0 {
		return fmt.Errorf("budgets: memory_every must be non-negative, got %d", b.MemoryEvery)
	}
	if b.PlanMax <= 0 {
		return fmt.Errorf("budgets: plan_max must be positive, got %d", b.PlanMax)
	}
	return nil
}

// ToolBudgetExhausted reports whether either tool-side budget is spent.
//
// Inputs:
//
//	calls - Total tool attempts charged so far.
//	latencyMS - Cumulative successful tool latency so far.
func (b Budgets) ToolBudgetExhausted(calls int, latencyMS int64) bool {
	return calls >= b.ToolCallCap || latencyMS >= b.ToolLatencyCapMS
}

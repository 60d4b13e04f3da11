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

import "testing"

func TestDefaultBudgetsValidate(t *testing.T) {
	if err := DefaultBudgets().Validate(); err != nil {
		t.Fatalf("default budgets should validate, got %v", err)
	}
}

func TestBudgetsValidateRejectsBadFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Budgets)
	}{
		{"zero max_steps", func(b *Budgets) { b.MaxSteps = 0 }},
		{"negative retrieve_cap", func(b *Budgets) { b.RetrieveCap = -1 }},
		{"zero tool_fail_cap", func(b *Budgets) { b.ToolFailCap = 0 }},
		{"zero tool_call_cap", func(b *Budgets) { b.ToolCallCap = 0 }},
		{"zero latency cap", func(b *Budgets) { b.ToolLatencyCapMS = 0 }},
		{"unknown risk", func(b *Budgets) { b.MaxToolRisk = "extreme" }},
		{"negative memory_every", func(b *Budgets) { b.MemoryEvery = -2 }},
		{"zero plan_max", func(b *Budgets) { b.PlanMax = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := DefaultBudgets()
			tc.mutate(&b)
			if err := b.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestRiskRankOrdering(t *testing.T) {
	if !(RiskRank(RiskLow) < RiskRank(RiskMedium) && RiskRank(RiskMedium) < RiskRank(RiskHigh)) {
		t.Fatal("risk ranks must be strictly increasing")
	}
	if RiskRank("bogus") != RiskRank(RiskHigh) {
		t.Fatal("unknown risk must rank as high")
	}
}

func TestRiskAllowed(t *testing.T) {
	tests := []struct {
		tool, max RiskLevel
		want      bool
	}{
		{RiskLow, RiskLow, true},
		{RiskMedium, RiskLow, false},
		{RiskMedium, RiskMedium, true},
		{RiskHigh, RiskMedium, false},
		{RiskHigh, RiskHigh, true},
		{"bogus", RiskMedium, false},
	}
	for _, tc := range tests {
		if got := RiskAllowed(tc.tool, tc.max); got != tc.want {
			t.Errorf("RiskAllowed(%q, %q) = %v, want %v", tc.tool, tc.max, got, tc.want)
		}
	}
}

func TestToolBudgetExhausted(t *testing.T) {
	b := DefaultBudgets()
	if b.ToolBudgetExhausted(0, 0) {
		t.Fatal("fresh budgets should not be exhausted")
	}
	if !b.ToolBudgetExhausted(b.ToolCallCap, 0) {
		t.Fatal("call cap reached should exhaust the budget")
	}
	if !b.ToolBudgetExhausted(0, b.ToolLatencyCapMS) {
		t.Fatal("latency cap reached should exhaust the budget")
	}
}

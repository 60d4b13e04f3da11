// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package control provides guardrail primitives for the agent loop:
// risk/cost policy levels and the run budget set.
//
// Thread Safety:
//
//	All types in this package are plain values; copy them freely.
package control

// RiskLevel ranks a tool's safety risk.
type RiskLevel string

const (
	// RiskLow is for tools with no external side effects.
	RiskLow RiskLevel = "low"

	// RiskMedium is for tools with bounded external effects.
	RiskMedium RiskLevel = "medium"

	// RiskHigh is for tools with network access or open-ended effects.
	RiskHigh RiskLevel = "high"
)

// CostLevel ranks a tool's resource or API cost.
type CostLevel string

const (
	// CostLow is for pure-CPU tools.
	CostLow CostLevel = "low"

	// CostMedium is for tools with metered but cheap backends.
	CostMedium CostLevel = "medium"

	// CostHigh is for tools with expensive external backends.
	CostHigh CostLevel = "high"
)

// RiskRank maps a risk level to its ordinal.
//
// Unknown levels rank as high so that a malformed spec is never
// treated as safer than declared.
func RiskRank(r RiskLevel) int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	default:
		return 2
	}
}

// CostRank maps a cost level to its ordinal. Unknown levels rank as high.
func CostRank(c CostLevel) int {
	switch c {
	case CostLow:
		return 0
	case CostMedium:
		return 1
	default:
		return 2
	}
}

// RiskAllowed reports whether a tool's declared risk is within policy.
func RiskAllowed(toolRisk, maxRisk RiskLevel) bool {
	return RiskRank(toolRisk) <= RiskRank(maxRisk)
}

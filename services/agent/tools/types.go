// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools provides the agent's tool catalog and the executor
// boundary through which every tool invocation passes.
//
// A tool is a named handler with declared cost, risk, and latency
// metadata. The control plane selects tools against that metadata; the
// executor enforces the failure and validation contract at dispatch.
//
// Thread Safety:
//
//	Registry is safe for concurrent use. Spec values are immutable
//	after registration.
package tools

import "context"

// Output classes produced by tool handlers.
const (
	// ClassNumeric marks tools whose output is a single number.
	ClassNumeric = "numeric"

	// ClassText marks tools whose output is free text.
	ClassText = "text"
)

// Request is a tool invocation captured from the reasoning phase.
type Request struct {
	// Tool is the catalog name of the tool to invoke.
	Tool string `json:"tool"`

	// Args are the tool arguments, keyed by parameter name.
	Args map[string]any `json:"args"`
}

// Output is the typed payload a tool handler returns.
type Output struct {
	// Class is ClassNumeric or ClassText.
	Class string `json:"class"`

	// Value holds the result when Class is ClassNumeric.
	Value float64 `json:"value,omitempty"`

	// Text holds the result when Class is ClassText.
	Text string `json:"text,omitempty"`
}

// Result is the appended record of one tool attempt, success or failure.
type Result struct {
	// Tool is the catalog name that was dispatched.
	Tool string `json:"tool"`

	// Args echoes the arguments that were passed.
	Args map[string]any `json:"args"`

	// Output is the handler payload. Meaningless when Failed is true.
	Output Output `json:"output"`

	// Failed is true when the attempt did not produce a usable output.
	Failed bool `json:"failed"`

	// Error holds the failure description when Failed is true.
	Error string `json:"error,omitempty"`

	// LatencyMS is the declared latency charged for this attempt.
	// Zero for failed attempts.
	LatencyMS int64 `json:"latency_ms"`
}

// Handler executes a tool against its arguments.
type Handler func(ctx context.Context, args map[string]any) (Output, error)

// Spec is a registered tool: handler plus selection metadata.
type Spec struct {
	// Name is the unique catalog name.
	Name string `json:"name" yaml:"name"`

	// Description is a one-line summary shown to the planner.
	Description string `json:"description" yaml:"description"`

	// InputSchema maps parameter names to short type descriptions.
	InputSchema map[string]string `json:"input_schema" yaml:"input_schema"`

	// Cost ranks the tool's resource cost: "low", "medium", or "high".
	Cost string `json:"cost" yaml:"cost"`

	// Risk ranks the tool's safety risk: "low", "medium", or "high".
	Risk string `json:"risk" yaml:"risk"`

	// LatencyMS is the declared per-call latency charged against the
	// run's latency budget on success.
	LatencyMS int64 `json:"latency_ms" yaml:"latency_ms"`

	// Class is the output class the handler promises: ClassNumeric or
	// ClassText. The executor rejects outputs that break the promise.
	Class string `json:"class" yaml:"class"`

	// Handler executes the tool. Never serialized.
	Handler Handler `json:"-" yaml:"-"`
}

// Info is the handler-free view of a Spec, safe to serialize into
// prompts and API responses.
type Info struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	InputSchema map[string]string `json:"input_schema"`
	Cost        string            `json:"cost"`
	Risk        string            `json:"risk"`
	LatencyMS   int64             `json:"latency_ms"`
	Class       string            `json:"class"`
}

// Info returns the serializable view of the spec.
func (s Spec) Info() Info {
	return Info{
		Name:        s.Name,
		Description: s.Description,
		InputSchema: s.InputSchema,
		Cost:        s.Cost,
		Risk:        s.Risk,
		LatencyMS:   s.LatencyMS,
		Class:       s.Class,
	}
}

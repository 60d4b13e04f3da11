// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
)

// Built-in tool names.
const (
	ToolCalculator = "calculator"
	ToolWebLookup  = "web_lookup"
)

// RegisterBuiltins installs the default tool set into a registry.
//
// Outputs:
//
//	error - Non-nil if any builtin fails to register.
func RegisterBuiltins(reg *Registry) error {
	builtins := []Spec{
		{
			Name:        ToolCalculator,
			Description: "Evaluate an arithmetic expression and return a number.",
			InputSchema: map[string]string{"expression": "arithmetic expression, e.g. (3 + 4) * 2"},
			Cost:        "low",
			Risk:        "low",
			LatencyMS:   5,
			Class:       ClassNumeric,
			Handler:     calculatorHandler,
		},
		{
			Name:        ToolWebLookup,
			Description: "Look up a query on the web and return a text snippet.",
			InputSchema: map[string]string{"query": "search query text"},
			Cost:        "high",
			Risk:        "high",
			LatencyMS:   2000,
			Class:       ClassText,
			Handler:     webLookupHandler,
		},
	}
	for _, spec := range builtins {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// calculatorHandler evaluates args["expression"].
func calculatorHandler(_ context.Context, args map[string]any) (Output, error) {
	raw, ok := args["expression"]
	if !ok {
		return Output{}, fmt.Errorf("calculator: missing required argument \"expression\"")
	}
	expr, ok := raw.(string)
	if !ok {
		return Output{}, fmt.Errorf("calculator: argument \"expression\" must be a string, got %T", raw)
	}
	v, err := EvalArithmetic(expr)
	if err != nil {
		return Output{}, fmt.Errorf("calculator: %w", err)
	}
	return Output{Class: ClassNumeric, Value: v}, nil
}

// webLookupHandler is a deterministic stand-in for a real web search.
// It never touches the network; the declared latency and cost model
// the real thing for budget accounting.
func webLookupHandler(_ context.Context, args map[string]any) (Output, error) {
	raw, ok := args["query"]
	if !ok {
		return Output{}, fmt.Errorf("web_lookup: missing required argument \"query\"")
	}
	query, ok := raw.(string)
	if !ok {
		return Output{}, fmt.Errorf("web_lookup: argument \"query\" must be a string, got %T", raw)
	}
	return Output{
		Class: ClassText,
		Text:  fmt.Sprintf("Stub web result for %q: no live lookup is configured in this deployment.", query),
	}, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package decode parses structured replies out of raw model text.
//
// Model output is untrusted: it may wrap JSON in markdown fences, lead
// with prose, or be garbage. Every decoder here either returns a
// validated value or an error; callers must have a deterministic
// fallback for the error path and must never re-prompt the model to
// repair its own reply.
package decode

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON strips markdown fences and leading prose from raw model
// text and returns the first JSON object or array found.
//
// Outputs:
//
//	string - The candidate JSON text. Validity is the caller's problem.
//	error - Non-nil when no JSON-looking payload is present.
func ExtractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("empty model reply")
	}

	// Prefer a fenced block when one exists.
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			// Drop the language tag line ("json", "JSON", or empty).
			tag := strings.TrimSpace(rest[:nl])
			if tag == "" || strings.EqualFold(tag, "json") {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		text = strings.TrimSpace(rest)
	}

	// Cut leading prose before the first brace or bracket.
	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')
	start := objStart
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
	}
	if start < 0 {
		return "", fmt.Errorf("no JSON payload in model reply")
	}
	text = text[start:]

	// Trim trailing prose after the matching close.
	var opener, closer byte = '{', '}'
	if text[0] == '[' {
		opener, closer = '[', ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[:i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON payload in model reply")
}

// DecodePlan parses a planning reply of the form {"plan": ["...", ...]}.
//
// Description:
//
//	Steps are trimmed and filtered against the valid step set; the
//	result is truncated to max entries. An empty surviving plan is an
//	error, so a garbage reply never produces a vacuous plan.
//
// Inputs:
//
//	raw - The raw model reply.
//	valid - The set of acceptable step labels. Nil accepts any step.
//	max - The maximum plan length. Must be positive.
func DecodePlan(raw string, valid map[string]bool, max int) ([]string, error) {
	if max <= 0 {
		return nil, fmt.Errorf("decode plan: max must be positive, got %d", max)
	}
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	var reply struct {
		Plan []string `json:"plan"`
	}
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	var plan []string
	for _, step := range reply.Plan {
		step = strings.ToLower(strings.TrimSpace(step))
		if step == "" {
			continue
		}
		if valid != nil && !valid[step] {
			continue
		}
		plan = append(plan, step)
		if len(plan) == max {
			break
		}
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("decode plan: no valid steps in reply")
	}
	return plan, nil
}

// ToolChoice is a decoded tool invocation from a model reply.
type ToolChoice struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// DecodeToolChoice parses a reply of the form {"tool": "...", "args": {...}}.
//
// Inputs:
//
//	raw - The raw model reply.
//	known - Registered tool names. Nil accepts any name.
func DecodeToolChoice(raw string, known map[string]bool) (ToolChoice, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return ToolChoice{}, fmt.Errorf("decode tool choice: %w", err)
	}

	var choice ToolChoice
	if err := json.Unmarshal([]byte(payload), &choice); err != nil {
		return ToolChoice{}, fmt.Errorf("decode tool choice: %w", err)
	}
	choice.Tool = strings.TrimSpace(choice.Tool)
	if choice.Tool == "" {
		return ToolChoice{}, fmt.Errorf("decode tool choice: empty tool name")
	}
	if known != nil && !known[choice.Tool] {
		return ToolChoice{}, fmt.Errorf("decode tool choice: unknown tool %q", choice.Tool)
	}
	if choice.Args == nil {
		choice.Args = map[string]any{}
	}
	return choice, nil
}

// Routing is a decoded routing decision from a model reply.
type Routing struct {
	Next string         `json:"next"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// DecodeRouting parses a reply of the form
// {"next": "...", "tool": "...", "args": {...}}.
//
// Description:
//
//	Next is lowercased and checked against the valid phase set. A
//	routing of "tool" without a known tool name is an error, since
//	dispatching it could only fail downstream.
func DecodeRouting(raw string, validNext map[string]bool, knownTools map[string]bool) (Routing, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return Routing{}, fmt.Errorf("decode routing: %w", err)
	}

	var routing Routing
	if err := json.Unmarshal([]byte(payload), &routing); err != nil {
		return Routing{}, fmt.Errorf("decode routing: %w", err)
	}
	routing.Next = strings.ToLower(strings.TrimSpace(routing.Next))
	if routing.Next == "" {
		return Routing{}, fmt.Errorf("decode routing: empty next phase")
	}
	if validNext != nil && !validNext[routing.Next] {
		return Routing{}, fmt.Errorf("decode routing: invalid next phase %q", routing.Next)
	}
	routing.Tool = strings.TrimSpace(routing.Tool)
	if routing.Next == "tool" {
		if routing.Tool == "" {
			return Routing{}, fmt.Errorf("decode routing: tool phase requires a tool name")
		}
		if knownTools != nil && !knownTools[routing.Tool] {
			return Routing{}, fmt.Errorf("decode routing: unknown tool %q", routing.Tool)
		}
	}
	if routing.Args == nil {
		routing.Args = map[string]any{}
	}
	return routing, nil
}

// DecodeRepair parses a tool-repair reply, which has the same shape as
// a tool choice. The repaired tool must be a known tool.
func DecodeRepair(raw string, known map[string]bool) (ToolChoice, error) {
	choice, err := DecodeToolChoice(raw, known)
	if err != nil {
		return ToolChoice{}, fmt.Errorf("decode repair: %w", err)
	}
	return choice, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/AleutianAgent/services/agent"
	"github.com/AleutianAI/AleutianAgent/services/agent/decode"
	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
	"github.com/AleutianAI/AleutianAgent/services/llm"
)

// maxThoughtLen bounds how much model text one think pass may append
// to the reasoning log.
const maxThoughtLen = 500

// ThinkPhase runs the reasoning capability.
//
// Description:
//
//	In repair mode (a tool failure is pending and no repaired request
//	exists yet) it asks the model to reformulate the failed request.
//	An undecodable repair falls back to retrying the failed request
//	as-is, which either succeeds or drives the failure counter to its
//	cap; either way the run keeps moving. Otherwise it appends one
//	bounded chain-of-thought entry to the reasoning log.
type ThinkPhase struct {
	deps Dependencies
}

// Execute implements the agent.PhaseExecutor interface.
func (t *ThinkPhase) Execute(ctx context.Context, s *agent.RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.ToolFailCount > 0 && s.LastError != "" && s.RepairedToolRequest == nil {
		t.repair(ctx, s)
		return nil
	}
	t.expand(ctx, s)
	return nil
}

// repair asks the model for a corrected tool request.
func (t *ThinkPhase) repair(ctx context.Context, s *agent.RunState) {
	failed := s.LastToolResult()

	allowed := t.deps.Registry.Allowed(s.Budgets.MaxToolRisk)
	allowedNames := make(map[string]bool, len(allowed))
	var catalog strings.Builder
	for _, info := range allowed {
		allowedNames[info.Name] = true
		fmt.Fprintf(&catalog, "  - %s: %s\n", info.Name, info.Description)
	}

	prompt := repairPrompt(s, failed, catalog.String())
	reply, err := t.deps.LLM.Generate(ctx, prompt, llm.GenerationParams{})
	if err == nil {
		if choice, derr := decode.DecodeRepair(reply, allowedNames); derr == nil {
			s.RepairedToolRequest = &tools.Request{Tool: choice.Tool, Args: choice.Args}
			s.AppendLog(fmt.Sprintf("[step %d] THINK repaired request: %s", s.StepCount, choice.Tool))
			return
		}
	}

	// Deterministic fallback: retry the failed request unchanged. The
	// retry is still bounded by the failure cap and the call budget.
	if failed != nil {
		s.RepairedToolRequest = &tools.Request{Tool: failed.Tool, Args: failed.Args}
		s.AppendLog(fmt.Sprintf("[step %d] THINK repair undecodable; retrying %s as-is", s.StepCount, failed.Tool))
		return
	}
	s.AppendLog(fmt.Sprintf("[step %d] THINK repair undecodable and no prior attempt to retry", s.StepCount))
	slog.Warn("Repair requested with no recorded tool attempt", slog.String("run_id", s.ID))
}

// expand appends one chain-of-thought entry.
func (t *ThinkPhase) expand(ctx context.Context, s *agent.RunState) {
	reply, err := t.deps.LLM.Generate(ctx, thinkPrompt(s), llm.GenerationParams{})
	if err != nil {
		s.AppendLog(fmt.Sprintf("[step %d] THINK unavailable: %v", s.StepCount, err))
		return
	}
	thought := strings.TrimSpace(reply)
	if thought == "" {
		s.AppendLog(fmt.Sprintf("[step %d] THINK produced nothing", s.StepCount))
		return
	}
	if len(thought) > maxThoughtLen {
		// Cut on a rune boundary so the log stays valid UTF-8.
		cut := maxThoughtLen
		for cut > 0 && !utf8.RuneStart(thought[cut]) {
			cut--
		}
		thought = thought[:cut] + "…"
	}
	s.AppendLog(fmt.Sprintf("[step %d] THOUGHT: %s", s.StepCount, thought))
}

func thinkPrompt(s *agent.RunState) string {
	var b strings.Builder
	b.WriteString("Think step by step about how to answer the question. Be brief.\n")
	fmt.Fprintf(&b, "Question: %s\n", s.Question)
	if s.MemorySummary != "" {
		fmt.Fprintf(&b, "Summary of earlier reasoning: %s\n", s.MemorySummary)
	}
	if len(s.Knowledge) > 0 {
		fmt.Fprintf(&b, "Knowledge held: %d snippets.\n", len(s.Knowledge))
	}
	return b.String()
}

func repairPrompt(s *agent.RunState, failed *tools.Result, catalog string) string {
	var b strings.Builder
	b.WriteString("A tool call failed. Propose a corrected call.\n")
	fmt.Fprintf(&b, "Question: %s\n", s.Question)
	if failed != nil {
		fmt.Fprintf(&b, "Failed call: %s with args %v\n", failed.Tool, failed.Args)
	}
	fmt.Fprintf(&b, "Error: %s\n", s.LastError)
	b.WriteString("Available tools:\n")
	b.WriteString(catalog)
	b.WriteString(`Reply with strict JSON only, in the form {"tool": "name", "args": {...}}.`)
	return b.String()
}

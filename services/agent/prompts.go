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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
)

// planPrompt asks for a short-horizon plan as strict JSON.
func planPrompt(s *RunState) string {
	var b strings.Builder
	b.WriteString("You are planning the next moves of a question-answering agent.\n")
	fmt.Fprintf(&b, "Question: %s\n", s.Question)
	fmt.Fprintf(&b, "Knowledge gathered: %v\n", len(s.Knowledge) > 0)
	fmt.Fprintf(&b, "Tool results gathered: %v\n", len(s.ToolResults) > 0)
	fmt.Fprintf(&b, "Propose at most %d steps, each one of: think, retrieve, tool, answer.\n", s.Budgets.PlanMax)
	b.WriteString(`Reply with strict JSON only, in the form {"plan": ["step", ...]}.`)
	return b.String()
}

// toolChoicePrompt asks for one tool pick from the allowed catalog.
func toolChoicePrompt(s *RunState, allowed []tools.Info) string {
	var b strings.Builder
	b.WriteString("Choose exactly one tool to make progress on the question.\n")
	fmt.Fprintf(&b, "Question: %s\n", s.Question)
	b.WriteString("Available tools, cheapest first:\n")
	writeCatalog(&b, allowed)
	b.WriteString(`Reply with strict JSON only, in the form {"tool": "name", "args": {...}}.`)
	return b.String()
}

// routingPrompt asks for a free-form next-phase decision.
func routingPrompt(s *RunState, allowed []tools.Info) string {
	var b strings.Builder
	b.WriteString("Decide the next phase for a question-answering agent.\n")
	fmt.Fprintf(&b, "Question: %s\n", s.Question)
	fmt.Fprintf(&b, "Step %d of %d.\n", s.StepCount, s.Budgets.MaxSteps)
	if s.MemorySummary != "" {
		fmt.Fprintf(&b, "Summary of earlier reasoning: %s\n", s.MemorySummary)
	}
	if n := len(s.ReasoningLog); n > 0 {
		b.WriteString("Recent reasoning:\n")
		start := n - 4
		if start < 0 {
			start = 0
		}
		for _, entry := range s.ReasoningLog[start:] {
			fmt.Fprintf(&b, "  %s\n", entry)
		}
	}
	fmt.Fprintf(&b, "Knowledge snippets held: %d (retrieval %d of %d used).\n",
		len(s.Knowledge), s.RetrieveCount, s.Budgets.RetrieveCap)
	fmt.Fprintf(&b, "Tool calls used: %d of %d.\n", s.ToolCalls, s.Budgets.ToolCallCap)
	b.WriteString("Available tools, cheapest first:\n")
	writeCatalog(&b, allowed)
	b.WriteString("Phases: think, retrieve, tool, answer, stop.\n")
	b.WriteString(`Reply with strict JSON only, in the form {"next": "phase", "tool": "", "args": {}}.`)
	return b.String()
}

func writeCatalog(b *strings.Builder, allowed []tools.Info) {
	if len(allowed) == 0 {
		b.WriteString("  (none permitted under the current risk policy)\n")
		return
	}
	for _, info := range allowed {
		fmt.Fprintf(b, "  - %s: %s (cost %s, risk %s, ~%dms)\n",
			info.Name, info.Description, info.Cost, info.Risk, info.LatencyMS)
	}
}

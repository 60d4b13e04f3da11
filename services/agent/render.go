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
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
	"github.com/AleutianAI/AleutianAgent/services/agent/trace"
)

// RenderRun formats a terminal run as a human-readable report.
//
// Description:
//
//	Produces the question, the reasoning timeline, tool attempts with
//	outcomes, gathered knowledge, budget consumption, and the final
//	answer. Intended for CLI output and debugging, not for parsing.
func RenderRun(s *RunState, events []trace.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\n", s.Question)
	fmt.Fprintf(&b, "Run: %s  (steps %d/%d)\n", s.ID, s.StepCount, s.Budgets.MaxSteps)
	b.WriteString(strings.Repeat("-", 60) + "\n")

	if s.MemorySummary != "" {
		fmt.Fprintf(&b, "Earlier reasoning (compacted): %s\n\n", s.MemorySummary)
	}

	if len(s.ReasoningLog) > 0 {
		b.WriteString("Reasoning log:\n")
		for _, entry := range s.ReasoningLog {
			fmt.Fprintf(&b, "  %s\n", entry)
		}
		b.WriteString("\n")
	}

	if len(s.ToolResults) > 0 {
		b.WriteString("Tool attempts:\n")
		for i, res := range s.ToolResults {
			status := "ok"
			if res.Failed {
				status = "FAILED: " + res.Error
			}
			fmt.Fprintf(&b, "  %d. %s(%s) → %s\n", i+1, res.Tool, renderArgs(res.Args), status)
			if !res.Failed {
				fmt.Fprintf(&b, "     %s\n", renderOutput(res))
			}
		}
		b.WriteString("\n")
	}

	if len(s.Knowledge) > 0 {
		b.WriteString("Knowledge:\n")
		for _, snippet := range s.Knowledge {
			fmt.Fprintf(&b, "  - %s: %s\n", snippet.Title, snippet.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Budgets: tool calls %d/%d, latency %dms/%dms, retrievals %d/%d, failures %d/%d\n",
		s.ToolCalls, s.Budgets.ToolCallCap,
		s.ToolLatencyMS, s.Budgets.ToolLatencyCapMS,
		s.RetrieveCount, s.Budgets.RetrieveCap,
		s.ToolFailCount, s.Budgets.ToolFailCap)

	if len(events) > 0 {
		fmt.Fprintf(&b, "Timeline: %d events recorded\n", len(events))
	}

	b.WriteString(strings.Repeat("-", 60) + "\n")
	if s.Answer != "" {
		fmt.Fprintf(&b, "Answer: %s\n", s.Answer)
	} else {
		b.WriteString("Answer: (none; run stopped before answering)\n")
	}
	return b.String()
}

func renderArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for key, value := range args {
		parts = append(parts, fmt.Sprintf("%s=%v", key, value))
	}
	// Most tools take a single argument; no ordering guarantee needed
	// beyond readability.
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func renderOutput(res tools.Result) string {
	if res.Output.Class == tools.ClassNumeric {
		return formatNumber(res.Output.Value)
	}
	return res.Output.Text
}

// formatNumber renders integers without a trailing ".0".
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

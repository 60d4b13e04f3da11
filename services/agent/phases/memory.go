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

	"github.com/AleutianAI/AleutianAgent/services/agent"
	"github.com/AleutianAI/AleutianAgent/services/llm"
)

// keepTail is how many recent reasoning entries survive a compaction.
const keepTail = 4

// MemoryPhase compacts old reasoning history into a rolling summary.
//
// Description:
//
//	Runs after every think phase. Compaction triggers only when the
//	log has grown by at least MemoryEvery entries since the last
//	watermark; with nothing eligible it is a no-op, so back-to-back
//	invocations are idempotent.
type MemoryPhase struct {
	deps Dependencies
}

// Execute implements the agent.PhaseExecutor interface.
func (m *MemoryPhase) Execute(ctx context.Context, s *agent.RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.Budgets.MemoryEvery <= 0 {
		return nil
	}
	if len(s.ReasoningLog)-s.LastMemoryAt < s.Budgets.MemoryEvery {
		return nil
	}

	compactable := len(s.ReasoningLog) - keepTail
	if compactable < keepTail {
		// Not enough backlog to be worth a summary; just move the
		// watermark so the trigger re-arms.
		s.LastMemoryAt = len(s.ReasoningLog)
		return nil
	}

	head := s.ReasoningLog[:compactable]
	summary, err := m.summarize(ctx, s, head)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// Leave the log intact and re-arm; the next trigger retries.
		slog.Warn("Memory compaction skipped, summarizer unavailable",
			slog.String("run_id", s.ID),
			slog.String("error", err.Error()))
		s.LastMemoryAt = len(s.ReasoningLog)
		return nil
	}

	if s.MemorySummary != "" {
		s.MemorySummary = s.MemorySummary + " " + summary
	} else {
		s.MemorySummary = summary
	}
	tail := make([]string, keepTail)
	copy(tail, s.ReasoningLog[compactable:])
	s.ReasoningLog = tail
	s.LastMemoryAt = len(s.ReasoningLog)

	slog.Debug("Compacted reasoning log",
		slog.String("run_id", s.ID),
		slog.Int("compacted", compactable),
		slog.Int("kept", keepTail))
	return nil
}

func (m *MemoryPhase) summarize(ctx context.Context, s *agent.RunState, entries []string) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize these agent reasoning steps in at most two sentences:\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "  %s\n", entry)
	}

	reply, err := m.deps.LLM.Generate(ctx, b.String(), llm.GenerationParams{})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(reply)
	if summary == "" {
		return "", fmt.Errorf("summarizer returned empty text")
	}
	return summary, nil
}

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

	"github.com/AleutianAI/AleutianAgent/services/agent"
	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
)

// ToolPhase dispatches the pending tool request exactly once.
//
// Description:
//
//	The repaired request wins over the original when both exist. An
//	absent request is itself a counted failure with a fixed message.
//	Every attempt charges the call budget; only successes charge the
//	latency budget and reset the failure counter.
type ToolPhase struct {
	deps Dependencies
}

// Execute implements the agent.PhaseExecutor interface.
func (t *ToolPhase) Execute(ctx context.Context, s *agent.RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := s.PendingRequest()
	s.ClearToolRequests()
	s.ToolCalls++

	if req == nil {
		result := tools.Result{
			Tool:   "",
			Args:   map[string]any{},
			Failed: true,
			Error:  "no tool request present",
		}
		s.ToolResults = append(s.ToolResults, result)
		s.ToolFailCount++
		s.LastError = result.Error
		s.AppendLog(fmt.Sprintf("[step %d] TOOL phase entered with no request", s.StepCount))
		return nil
	}

	result := t.deps.Executor.Execute(ctx, *req)
	s.ToolResults = append(s.ToolResults, result)

	if result.Failed {
		s.ToolFailCount++
		s.LastError = result.Error
		s.AppendLog(fmt.Sprintf("[step %d] TOOL %s failed: %s", s.StepCount, result.Tool, result.Error))
		return nil
	}

	s.ToolFailCount = 0
	s.LastError = ""
	s.ToolLatencyMS += result.LatencyMS
	s.AppendLog(fmt.Sprintf("[step %d] TOOL %s succeeded", s.StepCount, result.Tool))
	return nil
}

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
	"math"
	"strconv"

	"github.com/AleutianAI/AleutianAgent/services/agent"
	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
)

// UncertainAnswer is emitted when a run ends with nothing usable.
const UncertainAnswer = "I was not able to find a reliable answer to that question."

// AnswerPhase synthesizes the terminal answer.
//
// Description:
//
//	Evidence priority is strict: a successful numeric tool result
//	beats retrieved knowledge, which beats the honest-uncertainty
//	fallback. The chosen answer is appended to the reasoning log with
//	the ANSWER marker.
type AnswerPhase struct{}

// Execute implements the agent.PhaseExecutor interface.
func (a *AnswerPhase) Execute(ctx context.Context, s *agent.RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.Answer = synthesize(s)
	s.AppendLog(fmt.Sprintf("ANSWER: %s", s.Answer))
	return nil
}

func synthesize(s *agent.RunState) string {
	if last := s.LastToolResult(); last != nil && !last.Failed && last.Output.Class == tools.ClassNumeric {
		return fmt.Sprintf("The result is %s.", formatNumeric(last.Output.Value))
	}
	// Only the snippet text is the answer; the title is metadata.
	if len(s.Knowledge) > 0 {
		return s.Knowledge[len(s.Knowledge)-1].Text
	}
	return UncertainAnswer
}

// formatNumeric renders integers without a trailing ".0".
func formatNumeric(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

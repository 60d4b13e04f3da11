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

	"github.com/AleutianAI/AleutianAgent/services/agent"
)

// RetrievePhase performs one bounded knowledge retrieval round.
//
// Description:
//
//	A round is charged against the retrieve cap whether or not it
//	finds anything; an empty round is a signal the control plane uses
//	to stop retrieving, not an error.
type RetrievePhase struct {
	deps Dependencies
}

// Execute implements the agent.PhaseExecutor interface.
func (r *RetrievePhase) Execute(ctx context.Context, s *agent.RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.RetrieveCount++

	docs, err := r.deps.Retriever.Retrieve(ctx, s.Question, RetrieveK)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// A broken retriever is an empty round, not a dead run.
		s.AppendLog(fmt.Sprintf("[step %d] RETRIEVE failed: %v", s.StepCount, err))
		slog.Warn("Retrieval round failed",
			slog.String("run_id", s.ID),
			slog.String("error", err.Error()))
		return nil
	}

	for _, doc := range docs {
		s.Knowledge = append(s.Knowledge, agent.Snippet{Title: doc.Title, Text: doc.Text})
	}
	s.AppendLog(fmt.Sprintf("[step %d] RETRIEVE round %d gathered %d snippets", s.StepCount, s.RetrieveCount, len(docs)))
	return nil
}

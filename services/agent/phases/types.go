// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package phases implements the action phases dispatched by the agent
// loop: think, retrieve, tool, answer, and memory.
//
// Each phase is a stateless transformation over the run state. Faults
// that should not abort the run are absorbed into the state (failed
// tool results, skipped compactions); only cancellation and wiring
// mistakes surface as errors.
package phases

import (
	"fmt"

	"github.com/AleutianAI/AleutianAgent/services/agent"
	"github.com/AleutianAI/AleutianAgent/services/agent/retrieval"
	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
	"github.com/AleutianAI/AleutianAgent/services/llm"
)

// RetrieveK is the number of snippets fetched per retrieval round.
const RetrieveK = 2

// Dependencies carries the collaborators shared across phases.
type Dependencies struct {
	// LLM is the reasoning capability. Must not be nil.
	LLM llm.Client

	// Registry is the tool catalog. Must not be nil.
	Registry *tools.Registry

	// Executor dispatches tool requests. Must not be nil.
	Executor *tools.Executor

	// Retriever looks up knowledge. Must not be nil.
	Retriever retrieval.Retriever
}

// Validate checks that every collaborator is present.
func (d Dependencies) Validate() error {
	if d.LLM == nil {
		return fmt.Errorf("phases: llm client must not be nil")
	}
	if d.Registry == nil {
		return fmt.Errorf("phases: tool registry must not be nil")
	}
	if d.Executor == nil {
		return fmt.Errorf("phases: tool executor must not be nil")
	}
	if d.Retriever == nil {
		return fmt.Errorf("phases: retriever must not be nil")
	}
	return nil
}

// NewRegistry builds the standard phase registry over the dependencies.
//
// Outputs:
//
//	agent.PhaseRegistry - Executors for think, retrieve, tool, answer,
//	and memory.
//	error - Non-nil if a dependency is missing.
func NewRegistry(deps Dependencies) (agent.PhaseRegistry, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	return agent.NewPhaseRegistry(map[agent.Phase]agent.PhaseExecutor{
		agent.PhaseThink:    &ThinkPhase{deps: deps},
		agent.PhaseRetrieve: &RetrievePhase{deps: deps},
		agent.PhaseTool:     &ToolPhase{deps: deps},
		agent.PhaseAnswer:   &AnswerPhase{},
		agent.PhaseMemory:   &MemoryPhase{deps: deps},
	}), nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent implements the bounded decision loop that answers a
// question through phased reasoning, retrieval, and tool use.
//
// The control plane is a strict-priority decision table evaluated once
// per step. Counters only grow, every resource has a budget, and the
// reasoning capability is consulted at most once per decision pass, so
// a run always terminates regardless of what the model returns.
package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianAgent/services/agent/control"
	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
)

// Phase identifies where the loop goes next.
type Phase string

const (
	// PhaseThink runs the reasoning capability.
	PhaseThink Phase = "think"

	// PhaseRetrieve performs one knowledge retrieval round.
	PhaseRetrieve Phase = "retrieve"

	// PhaseTool dispatches the pending tool request.
	PhaseTool Phase = "tool"

	// PhaseAnswer synthesizes the final answer.
	PhaseAnswer Phase = "answer"

	// PhaseMemory compacts the reasoning log.
	PhaseMemory Phase = "memory"

	// PhaseStop terminates the run.
	PhaseStop Phase = "stop"
)

// IsTerminal reports whether the phase ends the run.
func (p Phase) IsTerminal() bool {
	return p == PhaseStop
}

// Valid reports whether the phase is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseThink, PhaseRetrieve, PhaseTool, PhaseAnswer, PhaseMemory, PhaseStop:
		return true
	}
	return false
}

// Snippet is one retrieved knowledge item. The title is display
// metadata; answer synthesis uses only the text.
type Snippet struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Sentinel errors for run control flow.
var (
	// ErrRunFinished is returned when a phase executes on a stopped run.
	ErrRunFinished = errors.New("run already finished")

	// ErrUnknownPhase is returned when no executor handles a phase.
	ErrUnknownPhase = errors.New("unknown phase")
)

// RunState is the complete mutable state of one question-answering run.
//
// Description:
//
//	All counters are monotonically non-decreasing for the life of the
//	run. The decision table reads this state and mutates it in place;
//	no other component routes phases.
//
// Thread Safety: Not safe for concurrent use. A run is owned by a
// single goroutine; snapshot before sharing.
type RunState struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Question is the user's original question, immutable for the run.
	Question string `json:"question"`

	// PhaseNext is the phase the loop will execute next.
	PhaseNext Phase `json:"phase_next"`

	// StepCount is the number of decision passes completed.
	StepCount int `json:"step_count"`

	// Budgets are the hard limits for this run.
	Budgets control.Budgets `json:"budgets"`

	// ReasoningLog is the append-only record of decisions and phase
	// activity, oldest first.
	ReasoningLog []string `json:"reasoning_log"`

	// Knowledge holds retrieved snippets, oldest first.
	Knowledge []Snippet `json:"knowledge"`

	// RetrieveCount is the number of retrieval rounds performed.
	RetrieveCount int `json:"retrieve_count"`

	// ToolRequest is the pending tool invocation, if any. Consumed
	// exactly once by the tool phase.
	ToolRequest *tools.Request `json:"tool_request,omitempty"`

	// RepairedToolRequest is a reformulated request produced after a
	// failure, dispatched in preference to ToolRequest.
	RepairedToolRequest *tools.Request `json:"repaired_tool_request,omitempty"`

	// ToolResults is the append-only record of every tool attempt.
	ToolResults []tools.Result `json:"tool_results"`

	// ToolFailCount is the number of failed tool attempts this run.
	ToolFailCount int `json:"tool_fail_count"`

	// ToolCalls is the number of tool attempts charged, success or not.
	ToolCalls int `json:"tool_calls"`

	// ToolLatencyMS is the cumulative declared latency of successful
	// tool attempts.
	ToolLatencyMS int64 `json:"tool_latency_ms"`

	// LastError describes the most recent tool failure, empty when the
	// last attempt succeeded.
	LastError string `json:"last_error,omitempty"`

	// Plan is the remaining phase labels of the active plan, if any.
	Plan []string `json:"plan,omitempty"`

	// MemorySummary is the rolling summary of compacted log entries.
	MemorySummary string `json:"memory_summary,omitempty"`

	// LastMemoryAt is the reasoning-log length at the last compaction.
	LastMemoryAt int `json:"last_memory_at"`

	// Answer is the synthesized final answer, set by the answer phase.
	Answer string `json:"answer,omitempty"`

	// Terminal records how the run ended, PhaseAnswer or PhaseStop.
	// Empty while the run is in flight.
	Terminal Phase `json:"terminal,omitempty"`

	// CreatedAt is the run start in Unix milliseconds UTC.
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the last mutation in Unix milliseconds UTC.
	UpdatedAt int64 `json:"updated_at"`
}

// NewRunState creates a fresh run for a question.
//
// Outputs:
//
//	*RunState - The initialized state, entering the think phase.
//	error - Non-nil if the question is empty or budgets are invalid.
func NewRunState(question string, budgets control.Budgets) (*RunState, error) {
	if question == "" {
		return nil, fmt.Errorf("new run: question must not be empty")
	}
	if err := budgets.Validate(); err != nil {
		return nil, fmt.Errorf("new run: %w", err)
	}
	now := time.Now().UnixMilli()
	return &RunState{
		ID:        uuid.NewString(),
		Question:  question,
		PhaseNext: PhaseThink,
		Budgets:   budgets,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AppendLog adds one entry to the reasoning log and stamps UpdatedAt.
func (s *RunState) AppendLog(entry string) {
	s.ReasoningLog = append(s.ReasoningLog, entry)
	s.UpdatedAt = time.Now().UnixMilli()
}

// HasEvidence reports whether the run has gathered anything usable:
// a knowledge snippet or a successful tool result.
func (s *RunState) HasEvidence() bool {
	if len(s.Knowledge) > 0 {
		return true
	}
	for _, res := range s.ToolResults {
		if !res.Failed {
			return true
		}
	}
	return false
}

// LastToolResult returns the most recent tool attempt, or nil.
func (s *RunState) LastToolResult() *tools.Result {
	if len(s.ToolResults) == 0 {
		return nil
	}
	return &s.ToolResults[len(s.ToolResults)-1]
}

// LastSuccessfulNumeric returns the most recent successful numeric tool
// result, or nil.
func (s *RunState) LastSuccessfulNumeric() *tools.Result {
	for i := len(s.ToolResults) - 1; i >= 0; i-- {
		res := &s.ToolResults[i]
		if !res.Failed && res.Output.Class == tools.ClassNumeric {
			return res
		}
	}
	return nil
}

// PendingRequest returns the request the tool phase should dispatch:
// the repaired request when present, otherwise the original.
func (s *RunState) PendingRequest() *tools.Request {
	if s.RepairedToolRequest != nil {
		return s.RepairedToolRequest
	}
	return s.ToolRequest
}

// ClearToolRequests drops both pending requests after dispatch.
func (s *RunState) ClearToolRequests() {
	s.ToolRequest = nil
	s.RepairedToolRequest = nil
}

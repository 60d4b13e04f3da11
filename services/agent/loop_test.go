// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianAgent/services/agent"
	"github.com/AleutianAI/AleutianAgent/services/agent/control"
	"github.com/AleutianAI/AleutianAgent/services/agent/phases"
	"github.com/AleutianAI/AleutianAgent/services/agent/retrieval"
	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
	"github.com/AleutianAI/AleutianAgent/services/agent/trace"
	"github.com/AleutianAI/AleutianAgent/services/llm"
)

func newRunner(t *testing.T, client llm.Client) (*agent.Runner, *trace.Recorder) {
	t.Helper()

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	recorder := trace.NewRecorder()
	orch, err := agent.NewOrchestrator(client, registry, recorder)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	phaseReg, err := phases.NewRegistry(phases.Dependencies{
		LLM:       client,
		Registry:  registry,
		Executor:  tools.NewExecutor(registry),
		Retriever: retrieval.NewCorpusRetriever(retrieval.DefaultCorpus()),
	})
	if err != nil {
		t.Fatalf("phases.NewRegistry: %v", err)
	}

	runner, err := agent.NewRunner(orch, phaseReg, recorder)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner, recorder
}

func TestRunArithmeticFastPathEndToEnd(t *testing.T) {
	client := llm.NewScriptedClient().WithFallback("irrelevant")
	runner, recorder := newRunner(t, client)

	state, err := runner.Run(context.Background(), "2 + 2", control.DefaultBudgets())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Answer != "The result is 4." {
		t.Errorf("unexpected answer: %q", state.Answer)
	}
	if state.Terminal != agent.PhaseAnswer {
		t.Errorf("an answered run must record the answer terminal, got %q", state.Terminal)
	}
	if client.CallCount() != 0 {
		t.Errorf("fast-path run must never consult the model, got %d calls", client.CallCount())
	}
	if state.ToolCalls != 1 {
		t.Errorf("expected exactly one tool call, got %d", state.ToolCalls)
	}
	if state.ToolLatencyMS != 5 {
		t.Errorf("expected 5ms charged latency, got %d", state.ToolLatencyMS)
	}
	if recorder.Len() == 0 {
		t.Error("run must leave a trace")
	}
	logText := strings.Join(state.ReasoningLog, "\n")
	if !strings.Contains(logText, "ANSWER: The result is 4.") {
		t.Errorf("answer marker missing from log:\n%s", logText)
	}
}

func TestRunPlannedRetrievalAnswersFromKnowledge(t *testing.T) {
	client := llm.NewScriptedClient(
		`{"plan":["retrieve","answer"]}`,
		"The budget docs should cover this.",
	).WithFallback("no more ideas")
	runner, _ := newRunner(t, client)

	state, err := runner.Run(context.Background(), "how does the tool call budget work", control.DefaultBudgets())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Answer == "" {
		t.Fatal("expected an answer")
	}
	if len(state.Knowledge) == 0 {
		t.Fatal("retrieval should have gathered knowledge")
	}
	if state.Answer != state.Knowledge[len(state.Knowledge)-1].Text {
		t.Errorf("answer should be the most recent snippet's text, got %q", state.Answer)
	}
}

func TestRunTerminatesWithGarbageModel(t *testing.T) {
	client := llm.NewScriptedClient().WithFallback("I REFUSE TO EMIT JSON")
	runner, _ := newRunner(t, client)

	budgets := control.DefaultBudgets()
	state, err := runner.Run(context.Background(), "what is the capital of France", budgets)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.StepCount > budgets.MaxSteps {
		t.Errorf("run must terminate within %d steps, used %d", budgets.MaxSteps, state.StepCount)
	}
	if !state.PhaseNext.IsTerminal() {
		t.Errorf("run must end in a terminal phase, got %s", state.PhaseNext)
	}
}

func TestRunDivisionByZeroStops(t *testing.T) {
	client := llm.NewScriptedClient().WithFallback("irrelevant")
	runner, _ := newRunner(t, client)

	state, err := runner.Run(context.Background(), "1 / 0", control.DefaultBudgets())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Answer != "" {
		t.Errorf("a failed direct expression must not answer, got %q", state.Answer)
	}
	if state.ToolFailCount == 0 {
		t.Error("the failed calculator attempt must be counted")
	}
	if state.Terminal != agent.PhaseStop {
		t.Errorf("a stopped run must record the stop terminal, got %q", state.Terminal)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	client := llm.NewScriptedClient().WithFallback("irrelevant")
	runner, _ := newRunner(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := runner.Run(ctx, "2 + 2", control.DefaultBudgets()); err == nil {
		t.Error("cancelled context must abort the run with an error")
	}
}

func TestRunCountersAreMonotonic(t *testing.T) {
	client := llm.NewScriptedClient().WithFallback("garbage forever")
	runner, _ := newRunner(t, client)

	state, err := runner.Run(context.Background(), "tell me about retrieval rounds and budgets", control.DefaultBudgets())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.StepCount <= 0 {
		t.Error("step count must have advanced")
	}
	if state.RetrieveCount > state.Budgets.RetrieveCap {
		t.Errorf("retrieve count %d exceeds cap %d", state.RetrieveCount, state.Budgets.RetrieveCap)
	}
	if state.ToolCalls > state.Budgets.ToolCallCap {
		t.Errorf("tool calls %d exceed cap %d", state.ToolCalls, state.Budgets.ToolCallCap)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAgent/services/agent"
	"github.com/AleutianAI/AleutianAgent/services/agent/control"
	"github.com/AleutianAI/AleutianAgent/services/agent/trace"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func terminalState(t *testing.T) *agent.RunState {
	t.Helper()
	state, err := agent.NewRunState("2 + 2", control.DefaultBudgets())
	require.NoError(t, err)
	state.Answer = "The result is 4."
	state.PhaseNext = agent.PhaseStop
	return state
}

func TestArchiveAndGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	state := terminalState(t)
	events := []trace.Event{
		{Step: 1, Kind: trace.KindDecision, Phase: "tool", Detail: "rule fast_path routed to tool"},
	}

	require.NoError(t, store.ArchiveRun(state, events))

	archived, err := store.GetRun(state.ID)
	require.NoError(t, err)
	assert.Equal(t, state.ID, archived.State.ID)
	assert.Equal(t, "The result is 4.", archived.State.Answer)
	require.Len(t, archived.Events, 1)
	assert.Equal(t, trace.KindDecision, archived.Events[0].Kind)
}

func TestGetRunNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetRun("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	store := openTestStore(t)

	first := terminalState(t)
	second := terminalState(t)
	require.NoError(t, store.ArchiveRun(first, nil))
	require.NoError(t, store.ArchiveRun(second, nil))

	ids, err := store.ListRuns()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestArchiveRunValidation(t *testing.T) {
	store := openTestStore(t)

	assert.Error(t, store.ArchiveRun(nil, nil))

	state := terminalState(t)
	state.ID = ""
	assert.Error(t, store.ArchiveRun(state, nil))
}

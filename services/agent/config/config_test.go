// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "aleutian-agent", cfg.Service.Name)
	assert.Equal(t, ":8080", cfg.Service.Listen)
	assert.Equal(t, "openai", cfg.LLM.Backend)
	assert.Equal(t, 12, cfg.Budgets.MaxSteps)
	assert.Equal(t, "medium", cfg.Budgets.MaxToolRisk)
	assert.False(t, cfg.Storage.Enabled)

	require.NoError(t, cfg.Budgets.ToBudgets().Validate())
}

func TestLoadExternalFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	content := `
service:
  name: aleutian-agent
  listen: ":9999"
llm:
  backend: ollama
budgets:
  max_steps: 5
  retrieve_cap: 1
  tool_fail_cap: 1
  tool_call_cap: 2
  tool_latency_cap_ms: 1000
  max_tool_risk: low
  memory_every: 4
  plan_max: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("AGENT_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Service.Listen)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, 5, cfg.Budgets.MaxSteps)
	assert.Equal(t, "low", cfg.Budgets.MaxToolRisk)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	t.Setenv("AGENT_LISTEN_ADDR", ":7777")
	t.Setenv("AGENT_LLM_BACKEND", "ollama")
	t.Setenv("AGENT_MAX_STEPS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Service.Listen)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, 3, cfg.Budgets.MaxSteps)
}

func TestLoadRejectsInvalidBackend(t *testing.T) {
	t.Setenv("AGENT_LLM_BACKEND", "carrier-pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidRisk(t *testing.T) {
	t.Setenv("AGENT_MAX_TOOL_RISK", "extreme")

	_, err := Load()
	assert.Error(t, err)
}

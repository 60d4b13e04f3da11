// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the agent service configuration.
//
// Precedence, lowest to highest: embedded defaults, the external YAML
// file named by AGENT_CONFIG_PATH, then individual environment
// variables.
//
// Thread Safety: A loaded Config is read-only; share freely.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianAgent/services/agent/control"
)

// MaxConfigFileSize bounds external configuration files (1MB).
const MaxConfigFileSize = 1024 * 1024

//go:embed default_config.yaml
var defaultConfigYAML []byte

// Config is the root service configuration.
type Config struct {
	Service ServiceConfig `yaml:"service" validate:"required"`
	Logging LoggingConfig `yaml:"logging"`
	LLM     LLMConfig     `yaml:"llm" validate:"required"`
	Budgets BudgetsConfig `yaml:"budgets" validate:"required"`
	Storage StorageConfig `yaml:"storage"`
}

// ServiceConfig names the service and its listen address.
type ServiceConfig struct {
	Name   string `yaml:"name" validate:"required"`
	Listen string `yaml:"listen" validate:"required"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// LLMConfig selects the reasoning backend.
type LLMConfig struct {
	// Backend is "openai" or "ollama". Credentials and model names
	// come from each backend's own environment variables.
	Backend string `yaml:"backend" validate:"oneof=openai ollama"`
}

// BudgetsConfig mirrors control.Budgets for YAML loading.
type BudgetsConfig struct {
	MaxSteps         int    `yaml:"max_steps" validate:"gt=0"`
	RetrieveCap      int    `yaml:"retrieve_cap" validate:"gte=0"`
	ToolFailCap      int    `yaml:"tool_fail_cap" validate:"gt=0"`
	ToolCallCap      int    `yaml:"tool_call_cap" validate:"gt=0"`
	ToolLatencyCapMS int64  `yaml:"tool_latency_cap_ms" validate:"gt=0"`
	MaxToolRisk      string `yaml:"max_tool_risk" validate:"oneof=low medium high"`
	MemoryEvery      int    `yaml:"memory_every" validate:"gte=0"`
	PlanMax          int    `yaml:"plan_max" validate:"gt=0"`
}

// StorageConfig controls the run archive.
type StorageConfig struct {
	// Enabled turns on run archival.
	Enabled bool `yaml:"enabled"`

	// Path is the BadgerDB directory. Required when Enabled.
	Path string `yaml:"path" validate:"required_if=Enabled true"`
}

// ToBudgets converts the YAML form into the control-plane type.
func (b BudgetsConfig) ToBudgets() control.Budgets {
	return control.Budgets{
		MaxSteps:         b.MaxSteps,
		RetrieveCap:      b.RetrieveCap,
		ToolFailCap:      b.ToolFailCap,
		ToolCallCap:      b.ToolCallCap,
		ToolLatencyCapMS: b.ToolLatencyCapMS,
		MaxToolRisk:      control.RiskLevel(b.MaxToolRisk),
		MemoryEvery:      b.MemoryEvery,
		PlanMax:          b.PlanMax,
	}
}

// Load builds the effective configuration.
//
// Description:
//
//	Starts from the embedded defaults, overlays AGENT_CONFIG_PATH when
//	set, applies environment overrides, then validates the result.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil on parse or validation failure.
func Load() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded config: %w", err)
	}

	if path := os.Getenv("AGENT_CONFIG_PATH"); path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
		if info.Size() > MaxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileSize)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		slog.Info("Loaded external configuration", slog.String("path", path))
	}

	applyEnvOverrides(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Budgets.ToBudgets().Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies single-variable overrides on top of YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENT_LISTEN_ADDR"); v != "" {
		cfg.Service.Listen = v
	}
	if v := os.Getenv("AGENT_LLM_BACKEND"); v != "" {
		cfg.LLM.Backend = v
	}
	if v := os.Getenv("AGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AGENT_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("AGENT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
		cfg.Storage.Enabled = true
	}
	if v := os.Getenv("AGENT_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Budgets.MaxSteps = n
		} else {
			slog.Warn("Ignoring invalid AGENT_MAX_STEPS", slog.String("value", v))
		}
	}
	if v := os.Getenv("AGENT_MAX_TOOL_RISK"); v != "" {
		cfg.Budgets.MaxToolRisk = v
	}
}

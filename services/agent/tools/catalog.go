// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"
)

const (
	// MaxYAMLFileSize is the maximum allowed catalog file size (1MB).
	MaxYAMLFileSize = 1024 * 1024

	// MaxToolsInCatalog is the maximum entries allowed in a catalog file.
	MaxToolsInCatalog = 200
)

//go:embed tool_catalog.yaml
var defaultCatalogYAML []byte

var (
	catalogLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_tool_catalog_load_errors_total",
		Help: "Total tool catalog load errors",
	})

	catalogOverrides = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_tool_catalog_overrides_total",
		Help: "Total tool metadata entries applied from a catalog file",
	})
)

var catalogTracer = otel.Tracer("aleutian.agent.toolcatalog")

// catalogYAML is the root structure for catalog deserialization.
type catalogYAML struct {
	Tools []catalogEntryYAML `yaml:"tools"`
}

type catalogEntryYAML struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Cost        string `yaml:"cost"`
	Risk        string `yaml:"risk"`
	LatencyMS   int64  `yaml:"latency_ms"`
}

// ApplyCatalog overlays YAML metadata onto registered tools.
//
// Description:
//
//	Loads the catalog from AGENT_TOOL_CATALOG_PATH when set, falling
//	back to the embedded default. Entries naming unregistered tools
//	are skipped with a warning; handlers never come from YAML.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	reg - The registry to update.
//
// Outputs:
//
//	int - Number of tools whose metadata was overridden.
//	error - Non-nil if the catalog could not be parsed.
func ApplyCatalog(ctx context.Context, reg *Registry) (int, error) {
	if ctx == nil {
		return 0, fmt.Errorf("ApplyCatalog: ctx must not be nil")
	}

	ctx, span := catalogTracer.Start(ctx, "toolcatalog.Apply")
	defer span.End()

	yamlData := defaultCatalogYAML
	source := "embedded"
	if path := os.Getenv("AGENT_TOOL_CATALOG_PATH"); path != "" {
		data, err := loadCatalogFile(path)
		if err != nil {
			slog.Warn("External tool catalog not available, using embedded default",
				slog.String("path", path),
				slog.String("error", err.Error()))
		} else {
			yamlData = data
			source = "external"
		}
	}
	span.SetAttributes(
		attribute.String("source", source),
		attribute.Int("yaml_size", len(yamlData)),
	)

	var catalog catalogYAML
	if err := yaml.Unmarshal(yamlData, &catalog); err != nil {
		span.SetStatus(codes.Error, "parse failed")
		catalogLoadErrors.Inc()
		return 0, fmt.Errorf("parsing tool catalog YAML: %w", err)
	}
	if len(catalog.Tools) > MaxToolsInCatalog {
		catalogLoadErrors.Inc()
		return 0, fmt.Errorf("too many tools in catalog: %d (max %d)", len(catalog.Tools), MaxToolsInCatalog)
	}

	applied := 0
	for _, entry := range catalog.Tools {
		if entry.Name == "" {
			continue
		}
		err := reg.UpdateMetadata(entry.Name, Info{
			Description: entry.Description,
			Cost:        entry.Cost,
			Risk:        entry.Risk,
			LatencyMS:   entry.LatencyMS,
		})
		if err != nil {
			slog.Warn("Tool catalog entry names an unregistered tool, skipping",
				slog.String("tool", entry.Name))
			continue
		}
		applied++
		catalogOverrides.Inc()
	}

	slog.Info("Tool catalog applied",
		slog.Int("applied", applied),
		slog.String("source", source))
	return applied, nil
}

// loadCatalogFile reads an external catalog with path and size checks.
func loadCatalogFile(path string) ([]byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if strings.Contains(absPath, "..") {
		return nil, fmt.Errorf("loadCatalogFile: path traversal not allowed: %s", absPath)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("catalog file too large: %d bytes (max %d)", info.Size(), MaxYAMLFileSize)
	}
	return os.ReadFile(absPath)
}

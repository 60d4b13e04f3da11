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
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_tool_executions_total",
		Help: "Total tool execution attempts by tool and outcome",
	}, []string{"tool", "outcome"})

	toolWallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_tool_wall_duration_seconds",
		Help:    "Measured wall-clock duration of tool handler execution",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"tool"})
)

var executorTracer = otel.Tracer("aleutian.agent.executor")

// Executor dispatches tool requests against a registry.
//
// Description:
//
//	Every invocation passes through Execute, which enforces the
//	failure contract: unknown tools, handler errors, handler panics,
//	and outputs that break the declared class all yield a failed
//	Result rather than an error or a crash. The declared latency is
//	charged only on success; failed attempts return zero latency.
//
// Thread Safety: Safe for concurrent use.
type Executor struct {
	registry *Registry
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute runs one tool attempt and returns its record.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	req - The tool request. Nil Args is treated as empty.
//
// Outputs:
//
//	Result - The attempt record. Failed is true on any fault; the
//	caller decides how failures affect run state.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	ctx, span := executorTracer.Start(ctx, "executor.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", req.Tool))

	result := Result{Tool: req.Tool, Args: req.Args}
	if result.Args == nil {
		result.Args = map[string]any{}
	}

	spec, err := e.registry.Get(req.Tool)
	if err != nil {
		result.Failed = true
		result.Error = fmt.Sprintf("unknown tool: %s", req.Tool)
		span.SetStatus(codes.Error, result.Error)
		toolExecutions.WithLabelValues(req.Tool, "unknown").Inc()
		slog.Warn("Tool execution rejected: unknown tool", slog.String("tool", req.Tool))
		return result
	}

	output, runErr := e.runHandler(ctx, spec, result.Args)
	if runErr != nil {
		result.Failed = true
		result.Error = runErr.Error()
		span.SetStatus(codes.Error, result.Error)
		toolExecutions.WithLabelValues(req.Tool, "failure").Inc()
		slog.Warn("Tool execution failed",
			slog.String("tool", req.Tool),
			slog.String("error", result.Error))
		return result
	}

	if verr := validateOutput(spec, output); verr != nil {
		result.Failed = true
		result.Error = verr.Error()
		span.SetStatus(codes.Error, result.Error)
		toolExecutions.WithLabelValues(req.Tool, "invalid_output").Inc()
		slog.Warn("Tool returned invalid output",
			slog.String("tool", req.Tool),
			slog.String("error", result.Error))
		return result
	}

	result.Output = output
	result.LatencyMS = spec.LatencyMS
	toolExecutions.WithLabelValues(req.Tool, "success").Inc()
	slog.Debug("Tool execution succeeded",
		slog.String("tool", req.Tool),
		slog.Int64("charged_latency_ms", spec.LatencyMS))
	return result
}

// runHandler invokes the handler behind a panic boundary.
func (e *Executor) runHandler(ctx context.Context, spec Spec, args map[string]any) (output Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", spec.Name, r)
		}
	}()

	start := time.Now()
	defer func() {
		toolWallDuration.WithLabelValues(spec.Name).Observe(time.Since(start).Seconds())
	}()

	return spec.Handler(ctx, args)
}

// validateOutput checks the handler payload against the declared class.
//
// A numeric tool that yields NaN, an infinity, or a non-numeric payload
// has failed semantically even though its handler returned nil.
func validateOutput(spec Spec, output Output) error {
	switch spec.Class {
	case ClassNumeric:
		if output.Class != ClassNumeric {
			return fmt.Errorf("tool %s declared numeric output but returned class %q", spec.Name, output.Class)
		}
		if math.IsNaN(output.Value) || math.IsInf(output.Value, 0) {
			return fmt.Errorf("tool %s returned a non-finite number", spec.Name)
		}
	case ClassText:
		if output.Class != ClassText {
			return fmt.Errorf("tool %s declared text output but returned class %q", spec.Name, output.Class)
		}
	}
	return nil
}

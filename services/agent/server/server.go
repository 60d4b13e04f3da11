// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the agent loop over HTTP.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianAgent/services/agent"
	"github.com/AleutianAI/AleutianAgent/services/agent/control"
	"github.com/AleutianAI/AleutianAgent/services/agent/phases"
	"github.com/AleutianAI/AleutianAgent/services/agent/retrieval"
	"github.com/AleutianAI/AleutianAgent/services/agent/storage/badger"
	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
	"github.com/AleutianAI/AleutianAgent/services/agent/trace"
	"github.com/AleutianAI/AleutianAgent/services/llm"
)

// Handlers serves the agent HTTP API.
//
// Description:
//
//	Each ask request gets its own recorder, orchestrator, and runner;
//	the shared collaborators (model client, tool registry, retriever,
//	archive) are read-only or internally synchronized.
type Handlers struct {
	llm       llm.Client
	registry  *tools.Registry
	retriever retrieval.Retriever
	budgets   control.Budgets

	// store is optional; nil disables archival and run lookup.
	store *badger.Store
}

// NewHandlers wires the API over its collaborators.
func NewHandlers(client llm.Client, registry *tools.Registry, retriever retrieval.Retriever, budgets control.Budgets, store *badger.Store) (*Handlers, error) {
	if client == nil {
		return nil, fmt.Errorf("server: llm client must not be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("server: tool registry must not be nil")
	}
	if retriever == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if err := budgets.Validate(); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	return &Handlers{
		llm:       client,
		registry:  registry,
		retriever: retriever,
		budgets:   budgets,
		store:     store,
	}, nil
}

// RegisterRoutes attaches the API to a gin engine.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1/agent")
	{
		v1.POST("/ask", h.ask)
		v1.GET("/runs", h.listRuns)
		v1.GET("/runs/:id", h.getRun)
		v1.GET("/tools", h.listTools)
	}
}

type askRequest struct {
	Question string `json:"question" binding:"required"`

	// MaxSteps optionally tightens the step budget for this request.
	MaxSteps int `json:"max_steps,omitempty"`
}

type askResponse struct {
	RunID    string `json:"run_id"`
	Answer   string `json:"answer"`
	Terminal string `json:"terminal"`
	Steps    int    `json:"steps"`
	Report   string `json:"report"`
}

func (h *Handlers) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	budgets := h.budgets
	if req.MaxSteps > 0 && req.MaxSteps < budgets.MaxSteps {
		budgets.MaxSteps = req.MaxSteps
	}

	runner, recorder, err := h.newRunner()
	if err != nil {
		slog.Error("Failed to build runner", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	state, err := runner.Run(c.Request.Context(), req.Question, budgets)
	if err != nil {
		if state == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Warn("Run aborted", slog.String("run_id", state.ID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run aborted", "run_id": state.ID})
		return
	}

	events := recorder.Events()
	if h.store != nil {
		if err := h.store.ArchiveRun(state, events); err != nil {
			slog.Warn("Failed to archive run", slog.String("run_id", state.ID), slog.String("error", err.Error()))
		}
	}

	c.JSON(http.StatusOK, askResponse{
		RunID:    state.ID,
		Answer:   state.Answer,
		Terminal: string(state.Terminal),
		Steps:    state.StepCount,
		Report:   agent.RenderRun(state, events),
	})
}

func (h *Handlers) newRunner() (*agent.Runner, *trace.Recorder, error) {
	recorder := trace.NewRecorder()
	orch, err := agent.NewOrchestrator(h.llm, h.registry, recorder)
	if err != nil {
		return nil, nil, err
	}
	phaseReg, err := phases.NewRegistry(phases.Dependencies{
		LLM:       h.llm,
		Registry:  h.registry,
		Executor:  tools.NewExecutor(h.registry),
		Retriever: h.retriever,
	})
	if err != nil {
		return nil, nil, err
	}
	runner, err := agent.NewRunner(orch, phaseReg, recorder)
	if err != nil {
		return nil, nil, err
	}
	return runner, recorder, nil
}

func (h *Handlers) getRun(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run archive is not enabled"})
		return
	}
	archived, err := h.store.GetRun(c.Param("id"))
	if errors.Is(err, badger.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		slog.Error("Failed to load run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, archived)
}

func (h *Handlers) listRuns(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []string{}})
		return
	}
	ids, err := h.store.ListRuns()
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": ids})
}

func (h *Handlers) listTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.registry.List()})
}

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/AleutianAI/AleutianAgent/services/agent"
	"github.com/AleutianAI/AleutianAgent/services/agent/phases"
	"github.com/AleutianAI/AleutianAgent/services/agent/retrieval"
	"github.com/AleutianAI/AleutianAgent/services/agent/server"
	"github.com/AleutianAI/AleutianAgent/services/agent/storage/badger"
	"github.com/AleutianAI/AleutianAgent/services/agent/tools"
	"github.com/AleutianAI/AleutianAgent/services/agent/trace"
	"github.com/AleutianAI/AleutianAgent/services/llm"
)

var (
	rootCmd = &cobra.Command{
		Use:   "aleutian-agent",
		Short: "A bounded agent loop with budgets, guardrails, and tool use",
		Long: `aleutian-agent answers questions through a guarded decision loop:
a control plane routes each step to thinking, retrieval, tool execution,
or answering, and hard budgets bound every run.`,
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question and print the run report",
		Long:  `Runs the full agent loop once against the configured reasoning backend and prints the answer along with the reasoning log, tool attempts, and budget usage.`,
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}
	askTimeout time.Duration

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent loop over HTTP",
		Long:  `Starts the HTTP API (ask, run lookup, tool catalog, health, metrics) on the configured listen address.`,
		Run:   runServeCommand,
	}

	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools and their declared metadata",
		Run:   runToolsCommand,
	}
)

func init() {
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "overall deadline for the run")
}

// buildRegistry assembles the tool catalog: built-ins plus any external
// catalog overrides.
func buildRegistry(ctx context.Context) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}
	overridden, err := tools.ApplyCatalog(ctx, registry)
	if err != nil {
		return nil, fmt.Errorf("apply tool catalog: %w", err)
	}
	if overridden > 0 {
		slog.Debug("Applied tool catalog overrides", slog.Int("count", overridden))
	}
	return registry, nil
}

func buildLLMClient() (llm.Client, error) {
	switch cfg.LLM.Backend {
	case "ollama":
		return llm.NewOllamaClient()
	case "openai":
		return llm.NewOpenAIClient()
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.LLM.Backend)
	}
}

// buildRetriever prefers a Weaviate deployment when AGENT_WEAVIATE_URL
// is set and falls back to the built-in corpus otherwise.
func buildRetriever(ctx context.Context) (retrieval.Retriever, error) {
	rawURL := os.Getenv("AGENT_WEAVIATE_URL")
	if rawURL == "" {
		return retrieval.NewCorpusRetriever(retrieval.DefaultCorpus()), nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse AGENT_WEAVIATE_URL: %w", err)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	if err := retrieval.EnsureKnowledgeSchema(ctx, client); err != nil {
		return nil, err
	}
	slog.Info("Using Weaviate retriever", slog.String("host", parsed.Host))
	return retrieval.NewWeaviateRetriever(client)
}

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	registry, err := buildRegistry(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	client, err := buildLLMClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	retriever, err := buildRetriever(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	recorder := trace.NewRecorder()
	orch, err := agent.NewOrchestrator(client, registry, recorder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	phaseReg, err := phases.NewRegistry(phases.Dependencies{
		LLM:       client,
		Registry:  registry,
		Executor:  tools.NewExecutor(registry),
		Retriever: retriever,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	runner, err := agent.NewRunner(orch, phaseReg, recorder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	state, err := runner.Run(ctx, question, cfg.Budgets.ToBudgets())
	if err != nil {
		if state != nil {
			fmt.Println(agent.RenderRun(state, recorder.Events()))
		}
		fmt.Fprintf(os.Stderr, "Error: run aborted: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(agent.RenderRun(state, recorder.Events()))
}

func runServeCommand(cmd *cobra.Command, _ []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := buildRegistry(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	client, err := buildLLMClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	retriever, err := buildRetriever(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var store *badger.Store
	if cfg.Storage.Enabled {
		store, err = badger.Open(badger.DefaultConfig(cfg.Storage.Path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open run archive: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Warn("Failed to close run archive", "error", err)
			}
		}()
	}

	handlers, err := server.NewHandlers(client, registry, retriever, cfg.Budgets.ToBudgets(), store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Service.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Agent API listening", slog.String("addr", cfg.Service.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
			os.Exit(1)
		}
	}
}

func runToolsCommand(cmd *cobra.Command, _ []string) {
	registry, err := buildRegistry(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, info := range registry.List() {
		fmt.Printf("%-12s cost=%-6s risk=%-6s ~%dms  %s\n",
			info.Name, info.Cost, info.Risk, info.LatencyMS, info.Description)
	}
}

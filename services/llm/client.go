// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides clients for language model backends.
//
// The reasoning capability is modeled as "produces text from a prompt,
// nondeterministic, may return ill-formed output". Callers must treat
// structured replies as untrusted text and parse-and-validate them with
// a deterministic fallback (see services/agent/decode).
package llm

import "context"

// GenerationParams tunes a single generation request.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client defines the standard interface for any LLM backend.
type Client interface {
	// Generate sends a prompt and returns the raw model text.
	//
	// The returned text is untrusted: it may be empty, malformed, or
	// contain markup. Implementations must honor ctx cancellation.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

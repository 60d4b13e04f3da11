// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"sync"
)

// ScriptedClient is a deterministic Client for tests and offline demos.
//
// Description:
//
//	Replies are served in registration order; once exhausted, the
//	fallback reply is returned for every subsequent call. A Script
//	function, when set, takes precedence and receives the prompt.
//
// Thread Safety: Safe for concurrent use.
type ScriptedClient struct {
	mu       sync.Mutex
	replies  []string
	index    int
	fallback string

	// Script, when non-nil, computes the reply from the prompt and
	// overrides the canned reply list.
	Script func(prompt string) string

	// Calls records every prompt received, in order.
	Calls []string
}

// NewScriptedClient creates a client that replays the given replies.
func NewScriptedClient(replies ...string) *ScriptedClient {
	return &ScriptedClient{replies: replies}
}

// WithFallback sets the reply returned after the script is exhausted.
func (s *ScriptedClient) WithFallback(reply string) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = reply
	return s
}

// Generate implements the Client interface.
func (s *ScriptedClient) Generate(ctx context.Context, prompt string, _ GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, prompt)

	if s.Script != nil {
		return s.Script(prompt), nil
	}
	if s.index < len(s.replies) {
		reply := s.replies[s.index]
		s.index++
		return reply, nil
	}
	return s.fallback, nil
}

// CallCount returns the number of Generate calls served so far.
func (s *ScriptedClient) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

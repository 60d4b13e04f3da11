// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trace records the per-run event timeline used for rendering
// and archival. It is append-only and deliberately generic: decision
// semantics live in the control plane, not here.
package trace

import (
	"sync"
	"time"
)

// Event kinds recorded during a run.
const (
	KindDecision = "decision"
	KindPhase    = "phase"
	KindTool     = "tool"
	KindMemory   = "memory"
	KindAnswer   = "answer"
)

// Event is one timeline entry.
type Event struct {
	// Step is the decision pass the event belongs to.
	Step int `json:"step"`

	// Kind classifies the event (decision, phase, tool, memory, answer).
	Kind string `json:"kind"`

	// Phase names the phase involved, when applicable.
	Phase string `json:"phase,omitempty"`

	// Detail is the human-readable event description.
	Detail string `json:"detail"`

	// At is the event time in Unix milliseconds UTC.
	At int64 `json:"at"`

	// DurationMS is the elapsed time for timed events, zero otherwise.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// Recorder accumulates events for one run.
//
// Thread Safety: Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an event, stamping At when it is zero.
func (r *Recorder) Record(ev Event) {
	if ev.At == 0 {
		ev.At = time.Now().UnixMilli()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the timeline in record order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

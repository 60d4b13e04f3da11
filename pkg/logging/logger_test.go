// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if LevelWarn.String() != "WARN" {
		t.Errorf("expected WARN, got %s", LevelWarn.String())
	}
	if Level(99).String() != "UNKNOWN" {
		t.Errorf("expected UNKNOWN for out-of-range level")
	}
}

// captureExporter records exported entries for assertions.
type captureExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (c *captureExporter) Export(_ context.Context, entry LogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return nil
}

func (c *captureExporter) Flush(context.Context) error { return nil }
func (c *captureExporter) Close() error                { return nil }

func TestExporterReceivesEntries(t *testing.T) {
	exp := &captureExporter{}
	logger := New(Config{Quiet: true, Service: "test", Exporter: exp})
	defer logger.Close()

	logger.Info("hello", "k", "v")

	exp.mu.Lock()
	defer exp.mu.Unlock()
	if len(exp.entries) != 1 {
		t.Fatalf("expected 1 exported entry, got %d", len(exp.entries))
	}
	if exp.entries[0].Message != "hello" {
		t.Errorf("expected message hello, got %q", exp.entries[0].Message)
	}
	if exp.entries[0].Service != "test" {
		t.Errorf("expected service test, got %q", exp.entries[0].Service)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	logger := New(Config{Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

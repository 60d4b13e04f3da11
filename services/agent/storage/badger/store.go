// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger archives terminal runs in an embedded BadgerDB store.
//
// A completed run is written once and read many times, so the store is
// a thin key-value wrapper: one JSON document per run under the key
// prefix "run/".
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianAgent/services/agent"
	"github.com/AleutianAI/AleutianAgent/services/agent/trace"
)

const runKeyPrefix = "run/"

// ErrRunNotFound is returned when no archived run matches the id.
var ErrRunNotFound = errors.New("run not found")

// ArchivedRun is the persisted form of a completed run.
type ArchivedRun struct {
	// State is the terminal run state.
	State *agent.RunState `json:"state"`

	// Events is the recorded timeline, in order.
	Events []trace.Event `json:"events"`
}

// Config holds store configuration.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory
	// is true.
	Path string

	// InMemory enables in-memory mode for tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults for a given path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store archives completed runs.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open creates the run archive.
//
// Outputs:
//
//	*Store - The opened store. Caller must Close it.
//	error - Non-nil if the path is missing or the database fails to open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent archive")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create archive directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run archive: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ArchiveRun persists a terminal run and its timeline.
//
// Outputs:
//
//	error - Non-nil if the run is nil, has no id, or the write fails.
func (s *Store) ArchiveRun(state *agent.RunState, events []trace.Event) error {
	if state == nil {
		return errors.New("archive run: state must not be nil")
	}
	if state.ID == "" {
		return errors.New("archive run: state has no id")
	}

	payload, err := json.Marshal(ArchivedRun{State: state, Events: events})
	if err != nil {
		return fmt.Errorf("archive run %s: marshal: %w", state.ID, err)
	}

	key := []byte(runKeyPrefix + state.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	})
	if err != nil {
		return fmt.Errorf("archive run %s: %w", state.ID, err)
	}
	slog.Debug("Archived run", slog.String("run_id", state.ID), slog.Int("bytes", len(payload)))
	return nil
}

// GetRun loads one archived run by id.
//
// Outputs:
//
//	*ArchivedRun - The stored run.
//	error - ErrRunNotFound (wrapped) if the id is unknown.
func (s *Store) GetRun(id string) (*ArchivedRun, error) {
	if id == "" {
		return nil, errors.New("get run: id must not be empty")
	}

	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runKeyPrefix + id))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	var archived ArchivedRun
	if err := json.Unmarshal(payload, &archived); err != nil {
		return nil, fmt.Errorf("get run %s: unmarshal: %w", id, err)
	}
	return &archived, nil
}

// ListRuns returns the ids of all archived runs.
func (s *Store) ListRuns() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, runKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return ids, nil
}

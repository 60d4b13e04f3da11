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
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianAgent/services/agent/control"
)

// ErrToolNotFound is returned when a requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// Registry holds the tool catalog for a run.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds a tool to the catalog.
//
// Outputs:
//
//	error - Non-nil if the spec is incomplete or the name is taken.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("register tool: name must not be empty")
	}
	if spec.Handler == nil {
		return fmt.Errorf("register tool %q: handler must not be nil", spec.Name)
	}
	switch spec.Class {
	case ClassNumeric, ClassText:
	default:
		return fmt.Errorf("register tool %q: unknown output class %q", spec.Name, spec.Class)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("register tool %q: already registered", spec.Name)
	}
	r.specs[spec.Name] = spec
	return nil
}

// Get returns the spec for a tool name.
//
// Outputs:
//
//	Spec - The registered spec.
//	error - ErrToolNotFound (wrapped) if the name is unknown.
func (r *Registry) Get(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return spec, nil
}

// UpdateMetadata overwrites the descriptive metadata of a registered
// tool. Empty fields leave the current value in place; the handler,
// output class, and input schema are fixed at registration and cannot
// be changed here.
//
// Outputs:
//
//	error - ErrToolNotFound (wrapped) if the name is unknown.
func (r *Registry) UpdateMetadata(name string, meta Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec, ok := r.specs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	if meta.Description != "" {
		spec.Description = meta.Description
	}
	if meta.Cost != "" {
		spec.Cost = meta.Cost
	}
	if meta.Risk != "" {
		spec.Risk = meta.Risk
	}
	if meta.LatencyMS > 0 {
		spec.LatencyMS = meta.LatencyMS
	}
	r.specs[name] = spec
	return nil
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.specs[name]
	return ok
}

// List returns the handler-free catalog, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.specs))
	for _, spec := range r.specs {
		infos = append(infos, spec.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	infos := r.List()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// Allowed returns the catalog filtered to tools whose declared risk is
// within maxRisk, cheapest first.
//
// Description:
//
//	The sort order is the selection preference of the control plane:
//	ascending cost rank, then declared latency, then name. The name
//	tiebreak keeps routing deterministic across runs.
func (r *Registry) Allowed(maxRisk control.RiskLevel) []Info {
	infos := r.List()

	allowed := infos[:0]
	for _, info := range infos {
		if control.RiskAllowed(control.RiskLevel(info.Risk), maxRisk) {
			allowed = append(allowed, info)
		}
	}
	sort.Slice(allowed, func(i, j int) bool {
		ci, cj := control.CostRank(control.CostLevel(allowed[i].Cost)), control.CostRank(control.CostLevel(allowed[j].Cost))
		if ci != cj {
			return ci < cj
		}
		if allowed[i].LatencyMS != allowed[j].LatencyMS {
			return allowed[i].LatencyMS < allowed[j].LatencyMS
		}
		return allowed[i].Name < allowed[j].Name
	})
	return allowed
}

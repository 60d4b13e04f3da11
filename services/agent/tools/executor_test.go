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
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianAgent/services/agent/control"
)

func newBuiltinRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	return reg
}

func TestExecuteCalculatorSuccess(t *testing.T) {
	exec := NewExecutor(newBuiltinRegistry(t))
	res := exec.Execute(context.Background(), Request{
		Tool: ToolCalculator,
		Args: map[string]any{"expression": "2 + 2"},
	})
	if res.Failed {
		t.Fatalf("expected success, got failure: %s", res.Error)
	}
	if res.Output.Class != ClassNumeric || res.Output.Value != 4 {
		t.Errorf("unexpected output: %+v", res.Output)
	}
	if res.LatencyMS != 5 {
		t.Errorf("expected charged latency 5, got %d", res.LatencyMS)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	exec := NewExecutor(newBuiltinRegistry(t))
	res := exec.Execute(context.Background(), Request{Tool: "teleporter"})
	if !res.Failed {
		t.Fatal("unknown tool must fail")
	}
	if !strings.Contains(res.Error, "unknown tool") {
		t.Errorf("unexpected error text: %q", res.Error)
	}
	if res.LatencyMS != 0 {
		t.Errorf("failed attempt must charge zero latency, got %d", res.LatencyMS)
	}
}

func TestExecuteHandlerErrorIsFailure(t *testing.T) {
	exec := NewExecutor(newBuiltinRegistry(t))
	res := exec.Execute(context.Background(), Request{
		Tool: ToolCalculator,
		Args: map[string]any{"expression": "1 / 0"},
	})
	if !res.Failed {
		t.Fatal("division by zero must fail")
	}
	if !strings.Contains(res.Error, "division by zero") {
		t.Errorf("unexpected error text: %q", res.Error)
	}
	if res.LatencyMS != 0 {
		t.Errorf("failed attempt must charge zero latency, got %d", res.LatencyMS)
	}
}

func TestExecutePanicIsContained(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(Spec{
		Name:        "panicky",
		Description: "always panics",
		Cost:        "low",
		Risk:        "low",
		LatencyMS:   1,
		Class:       ClassText,
		Handler: func(context.Context, map[string]any) (Output, error) {
			panic("boom")
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	exec := NewExecutor(reg)
	res := exec.Execute(context.Background(), Request{Tool: "panicky"})
	if !res.Failed {
		t.Fatal("panicking handler must yield a failed result")
	}
	if !strings.Contains(res.Error, "panicked") {
		t.Errorf("unexpected error text: %q", res.Error)
	}
}

func TestExecuteRejectsNonFiniteNumeric(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		bad := bad
		reg := NewRegistry()
		err := reg.Register(Spec{
			Name:        "weird_math",
			Description: "returns a non-finite number",
			Cost:        "low",
			Risk:        "low",
			LatencyMS:   1,
			Class:       ClassNumeric,
			Handler: func(context.Context, map[string]any) (Output, error) {
				return Output{Class: ClassNumeric, Value: bad}, nil
			},
		})
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		res := NewExecutor(reg).Execute(context.Background(), Request{Tool: "weird_math"})
		if !res.Failed {
			t.Fatalf("non-finite value %v must be rejected", bad)
		}
	}
}

func TestExecuteRejectsClassMismatch(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(Spec{
		Name:        "liar",
		Description: "declares numeric, returns text",
		Cost:        "low",
		Risk:        "low",
		LatencyMS:   1,
		Class:       ClassNumeric,
		Handler: func(context.Context, map[string]any) (Output, error) {
			return Output{Class: ClassText, Text: "four"}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res := NewExecutor(reg).Execute(context.Background(), Request{Tool: "liar"})
	if !res.Failed {
		t.Fatal("class mismatch must be rejected")
	}
}

func TestListIsSortedAndHandlerFree(t *testing.T) {
	reg := newBuiltinRegistry(t)
	infos := reg.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 builtins, got %d", len(infos))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i-1].Name >= infos[i].Name {
			t.Fatalf("list not sorted: %q before %q", infos[i-1].Name, infos[i].Name)
		}
	}
}

func TestAllowedFiltersAndOrders(t *testing.T) {
	reg := newBuiltinRegistry(t)

	lowOnly := reg.Allowed(control.RiskLow)
	if len(lowOnly) != 1 || lowOnly[0].Name != ToolCalculator {
		t.Fatalf("low-risk policy should leave only the calculator, got %+v", lowOnly)
	}

	all := reg.Allowed(control.RiskHigh)
	if len(all) != 2 {
		t.Fatalf("high-risk policy should allow all builtins, got %d", len(all))
	}
	if all[0].Name != ToolCalculator {
		t.Errorf("cheapest tool must sort first, got %q", all[0].Name)
	}
}

func TestAllowedNameTiebreakIsDeterministic(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		err := reg.Register(Spec{
			Name:        name,
			Description: "same cost and latency",
			Cost:        "low",
			Risk:        "low",
			LatencyMS:   10,
			Class:       ClassText,
			Handler: func(context.Context, map[string]any) (Output, error) {
				return Output{Class: ClassText, Text: "ok"}, nil
			},
		})
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	got := reg.Allowed(control.RiskHigh)
	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d: got %q, want %q (full: %v)", i, got[i].Name, name, got)
		}
	}
}

func TestApplyCatalogOverridesMetadata(t *testing.T) {
	reg := newBuiltinRegistry(t)

	// Mutate in-memory metadata, then re-apply the embedded catalog and
	// confirm the declared values come back.
	if err := reg.UpdateMetadata(ToolCalculator, Info{LatencyMS: 999}); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}

	applied, err := ApplyCatalog(context.Background(), reg)
	if err != nil {
		t.Fatalf("ApplyCatalog: %v", err)
	}
	if applied != 2 {
		t.Errorf("expected 2 overrides from embedded catalog, got %d", applied)
	}
	spec, err := reg.Get(ToolCalculator)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if spec.LatencyMS != 5 {
		t.Errorf("catalog should restore latency 5, got %d", spec.LatencyMS)
	}
	if spec.Handler == nil {
		t.Error("catalog apply must not clear the handler")
	}
}

func TestUpdateMetadata(t *testing.T) {
	reg := newBuiltinRegistry(t)

	err := reg.UpdateMetadata(ToolCalculator, Info{
		Description: "adjusted",
		Cost:        "medium",
		LatencyMS:   42,
	})
	if err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}

	spec, err := reg.Get(ToolCalculator)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if spec.Description != "adjusted" || spec.Cost != "medium" || spec.LatencyMS != 42 {
		t.Errorf("metadata not applied: %+v", spec.Info())
	}
	if spec.Risk != "low" {
		t.Errorf("empty fields must be left alone, risk became %q", spec.Risk)
	}
	if spec.Handler == nil || spec.Class != ClassNumeric {
		t.Error("handler and class are fixed at registration")
	}

	if err := reg.UpdateMetadata("ghost", Info{Cost: "low"}); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("unknown tool must return ErrToolNotFound, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()
	handler := func(context.Context, map[string]any) (Output, error) {
		return Output{Class: ClassText, Text: "ok"}, nil
	}

	cases := []struct {
		name string
		spec Spec
	}{
		{"empty name", Spec{Class: ClassText, Handler: handler}},
		{"nil handler", Spec{Name: "x", Class: ClassText}},
		{"bad class", Spec{Name: "x", Class: "blob", Handler: handler}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := reg.Register(tc.spec); err == nil {
				t.Errorf("expected registration error for %s", tc.name)
			}
		})
	}

	good := Spec{Name: "x", Class: ClassText, Handler: handler}
	if err := reg.Register(good); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(good); err == nil {
		t.Error("duplicate registration must fail")
	}
	if _, err := reg.Get("missing"); err == nil {
		t.Error("Get on missing tool must fail")
	} else if !strings.Contains(fmt.Sprint(err), "not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

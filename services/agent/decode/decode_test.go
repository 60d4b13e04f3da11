// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package decode

import (
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading prose", `Sure! Here you go: {"a":1}`, `{"a":1}`},
		{"trailing prose", `{"a":1} Hope that helps!`, `{"a":1}`},
		{"nested braces", `{"a":{"b":2}}`, `{"a":{"b":2}}`},
		{"brace in string", `{"a":"}"}`, `{"a":"}"}`},
		{"array payload", `the plan: ["x","y"]`, `["x","y"]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.raw)
			if err != nil {
				t.Fatalf("ExtractJSON(%q) error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestExtractJSONErrors(t *testing.T) {
	for _, raw := range []string{"", "   ", "no json here", `{"a":1`} {
		if _, err := ExtractJSON(raw); err == nil {
			t.Errorf("ExtractJSON(%q) should fail", raw)
		}
	}
}

func TestDecodePlan(t *testing.T) {
	valid := map[string]bool{"retrieve": true, "tool": true, "answer": true}

	plan, err := DecodePlan(`{"plan":["RETRIEVE","tool","answer"]}`, valid, 3)
	if err != nil {
		t.Fatalf("DecodePlan: %v", err)
	}
	if len(plan) != 3 || plan[0] != "retrieve" || plan[1] != "tool" || plan[2] != "answer" {
		t.Errorf("unexpected plan: %v", plan)
	}
}

func TestDecodePlanFiltersAndTruncates(t *testing.T) {
	valid := map[string]bool{"retrieve": true, "answer": true}

	plan, err := DecodePlan(`{"plan":["dance","retrieve","","answer","retrieve","answer"]}`, valid, 3)
	if err != nil {
		t.Fatalf("DecodePlan: %v", err)
	}
	if len(plan) != 3 {
		t.Fatalf("plan must truncate to 3, got %v", plan)
	}
	if plan[0] != "retrieve" || plan[1] != "answer" || plan[2] != "retrieve" {
		t.Errorf("unexpected plan: %v", plan)
	}
}

func TestDecodePlanErrors(t *testing.T) {
	valid := map[string]bool{"answer": true}
	cases := []string{
		"total garbage",
		`{"plan":[]}`,
		`{"plan":["dance","sing"]}`,
		`{"steps":["answer"]}`,
	}
	for _, raw := range cases {
		if _, err := DecodePlan(raw, valid, 3); err == nil {
			t.Errorf("DecodePlan(%q) should fail", raw)
		}
	}
}

func TestDecodeToolChoice(t *testing.T) {
	known := map[string]bool{"calculator": true}

	choice, err := DecodeToolChoice("```json\n{\"tool\":\"calculator\",\"args\":{\"expression\":\"2+2\"}}\n```", known)
	if err != nil {
		t.Fatalf("DecodeToolChoice: %v", err)
	}
	if choice.Tool != "calculator" {
		t.Errorf("unexpected tool: %q", choice.Tool)
	}
	if choice.Args["expression"] != "2+2" {
		t.Errorf("unexpected args: %v", choice.Args)
	}
}

func TestDecodeToolChoiceErrors(t *testing.T) {
	known := map[string]bool{"calculator": true}
	cases := []string{
		`{"tool":"","args":{}}`,
		`{"tool":"teleporter","args":{}}`,
		"not json at all",
	}
	for _, raw := range cases {
		if _, err := DecodeToolChoice(raw, known); err == nil {
			t.Errorf("DecodeToolChoice(%q) should fail", raw)
		}
	}
}

func TestDecodeToolChoiceNilArgs(t *testing.T) {
	choice, err := DecodeToolChoice(`{"tool":"calculator"}`, nil)
	if err != nil {
		t.Fatalf("DecodeToolChoice: %v", err)
	}
	if choice.Args == nil {
		t.Error("nil args must be normalized to an empty map")
	}
}

func TestDecodeRouting(t *testing.T) {
	validNext := map[string]bool{"retrieve": true, "tool": true, "answer": true}
	knownTools := map[string]bool{"calculator": true}

	routing, err := DecodeRouting(`{"next":"TOOL","tool":"calculator","args":{"expression":"7*6"}}`, validNext, knownTools)
	if err != nil {
		t.Fatalf("DecodeRouting: %v", err)
	}
	if routing.Next != "tool" || routing.Tool != "calculator" {
		t.Errorf("unexpected routing: %+v", routing)
	}
}

func TestDecodeRoutingErrors(t *testing.T) {
	validNext := map[string]bool{"retrieve": true, "tool": true, "answer": true}
	knownTools := map[string]bool{"calculator": true}
	cases := []struct {
		name string
		raw  string
	}{
		{"empty next", `{"next":""}`},
		{"invalid next", `{"next":"fly"}`},
		{"tool without name", `{"next":"tool"}`},
		{"tool unknown", `{"next":"tool","tool":"teleporter"}`},
		{"garbage", "whatever"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeRouting(tc.raw, validNext, knownTools); err == nil {
				t.Errorf("DecodeRouting(%q) should fail", tc.raw)
			}
		})
	}
}

func TestDecodeRoutingNonToolSkipsToolCheck(t *testing.T) {
	validNext := map[string]bool{"retrieve": true}
	routing, err := DecodeRouting(`{"next":"retrieve","tool":"teleporter"}`, validNext, map[string]bool{})
	if err != nil {
		t.Fatalf("DecodeRouting: %v", err)
	}
	if routing.Next != "retrieve" {
		t.Errorf("unexpected next: %q", routing.Next)
	}
}

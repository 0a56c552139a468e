package claude

import (
	"strings"
	"testing"
)

func TestStripJSONFences_Clean(t *testing.T) {
	input := `{"edges": [], "summary": "no deps"}`
	got := stripJSONFences(input)
	if got != input {
		t.Errorf("expected unchanged, got %q", got)
	}
}

func TestStripJSONFences_WithJSONTag(t *testing.T) {
	input := "```json\n{\"edges\": []}\n```"
	got := stripJSONFences(input)
	if got != `{"edges": []}` {
		t.Errorf("expected clean JSON, got %q", got)
	}
}

func TestStripJSONFences_WithPlainFence(t *testing.T) {
	input := "```\n{\"edges\": []}\n```"
	got := stripJSONFences(input)
	if got != `{"edges": []}` {
		t.Errorf("expected clean JSON, got %q", got)
	}
}

func TestStripJSONFences_WithWhitespace(t *testing.T) {
	input := "  \n```json\n{\"edges\": []}\n```\n  "
	got := stripJSONFences(input)
	if got != `{"edges": []}` {
		t.Errorf("expected clean JSON, got %q", got)
	}
}

func TestBuildPrompt_ContainsTaskData(t *testing.T) {
	tasks := []TaskSummary{
		{ID: "a1b2c3d4", Title: "Setup DB", Priority: 1, Status: "pending"},
		{ID: "e5f6a7b8", Title: "Add API", Priority: 2, Status: "pending"},
	}
	prompt, err := buildPrompt(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "a1b2c3d4") || !strings.Contains(prompt, "Setup DB") {
		t.Error("prompt should contain task IDs and titles")
	}
	if !strings.Contains(prompt, "e5f6a7b8") || !strings.Contains(prompt, "Add API") {
		t.Error("prompt should contain all tasks")
	}
	if !strings.Contains(prompt, "strong causal reason") {
		t.Error("prompt should contain dependency rules")
	}
}

func TestParseInferDeps(t *testing.T) {
	known := map[string]bool{"t1": true, "t2": true}
	raw := "```json\n" + `{
		"edges": [
			{"blocked_id": "t2", "blocker_id": "t1", "reason": "API needs DB"}
		],
		"summary": "t2 depends on t1"
	}` + "\n```"

	result, err := parseInferDeps(raw, known)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(result.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(result.Edges))
	}
	if result.Edges[0].BlockedID != "t2" || result.Edges[0].BlockerID != "t1" {
		t.Errorf("unexpected edge: %+v", result.Edges[0])
	}
	if result.Summary != "t2 depends on t1" {
		t.Errorf("unexpected summary: %s", result.Summary)
	}
	if result.Skipped != 0 {
		t.Errorf("expected no skipped edges, got %d", result.Skipped)
	}
}

func TestParseInferDeps_FiltersBadEdges(t *testing.T) {
	known := map[string]bool{"t1": true, "t2": true}
	raw := `{
		"edges": [
			{"blocked_id": "t2", "blocker_id": "t1", "reason": "ok"},
			{"blocked_id": "t1", "blocker_id": "t1", "reason": "self loop"},
			{"blocked_id": "t2", "blocker_id": "ghost", "reason": "unknown id"},
			{"blocked_id": "", "blocker_id": "t1", "reason": "missing id"}
		],
		"summary": "mixed quality"
	}`

	result, err := parseInferDeps(raw, known)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(result.Edges) != 1 {
		t.Fatalf("expected 1 surviving edge, got %d", len(result.Edges))
	}
	if result.Skipped != 3 {
		t.Errorf("expected 3 skipped, got %d", result.Skipped)
	}
}

func TestParseInferDeps_InvalidJSON(t *testing.T) {
	if _, err := parseInferDeps("sure! here are the deps:", nil); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
}

package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/halcyon-ai/recall/internal/engine"
	"github.com/halcyon-ai/recall/internal/reconcile"
)

func TestRenderContextEmpty(t *testing.T) {
	if got := renderContext(&engine.Output{}); got != "" {
		t.Errorf("expected empty string for an empty Output, got %q", got)
	}
}

func TestRenderContextWrapsMemoryTags(t *testing.T) {
	out := &engine.Output{Context: "Dave Chen handles the Brightwell account"}
	got := renderContext(out)
	if !strings.HasPrefix(got, "<memory>\n") || !strings.HasSuffix(got, "</memory>") {
		t.Errorf("expected context wrapped in <memory> tags, got %q", got)
	}
	if !strings.Contains(got, out.Context) {
		t.Errorf("expected rendered context to contain the retrieved text, got %q", got)
	}
}

func TestRenderContextIncludesContradictionsAsAdvisoryNotes(t *testing.T) {
	out := &engine.Output{
		Contradictions: []reconcile.Contradiction{
			{NewContent: "prefers tabs", OldContent: "prefers spaces", OldID: "n1", Question: "Which indentation style is current?"},
		},
	}
	got := renderContext(out)
	if !strings.Contains(got, "prefers tabs") || !strings.Contains(got, "prefers spaces") {
		t.Errorf("expected both sides of the contradiction in the rendered context, got %q", got)
	}
	if !strings.Contains(got, "Which indentation style is current?") {
		t.Errorf("expected the reconciler's question surfaced as advisory text, got %q", got)
	}
}

func TestHookOutputJSONShape(t *testing.T) {
	out := hookOutput{HookSpecificOutput: hookSpecificOutput{
		HookEventName:     "UserPromptSubmit",
		AdditionalContext: "<memory>test</memory>",
	}}
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	hso, ok := decoded["hookSpecificOutput"].(map[string]any)
	if !ok {
		t.Fatalf("expected a hookSpecificOutput object, got %v", decoded)
	}
	if hso["hookEventName"] != "UserPromptSubmit" {
		t.Errorf("hookEventName = %v, want UserPromptSubmit", hso["hookEventName"])
	}
	if hso["additionalContext"] != "<memory>test</memory>" {
		t.Errorf("additionalContext = %v, want <memory>test</memory>", hso["additionalContext"])
	}
}

func TestHookInputJSONParsing(t *testing.T) {
	var in hookInput
	if err := json.Unmarshal([]byte(`{"prompt":"hello","session_id":"s1"}`), &in); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if in.Prompt != "hello" || in.SessionID != "s1" {
		t.Errorf("got %+v, want prompt=hello session_id=s1", in)
	}
}

// Package storewrite implements the write-side pipeline: the instruction
// extractor, the store filter, the storage tool-using agent, and the
// force-store coverage net that runs after it.
package storewrite

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/halcyon-ai/recall/pkg/provider/llm"
	"github.com/halcyon-ai/recall/pkg/types"
)

// Instruction is one extracted instruction candidate.
type Instruction struct {
	Content string  `json:"content"`
	Subtype string  `json:"subtype"`
	Scope   float64 `json:"scope"`
	Reason  string  `json:"reason"`
}

const scopeDefault = 0.5

type extractorOutput struct {
	Instructions []Instruction `json:"instructions"`
}

const extractorSystemPrompt = `Extract any standing instructions, rules, or process preferences from the
user's message — the kind of statement that should apply to future turns, not
just this one ("always", "never", "from now on", "when I ask about X, do Y").
Respond with JSON only:
{"instructions": [{"content": string, "subtype": "rule"|"tool_usage"|"process", "scope": number, "reason": string}]}
scope is 1.0 for universal instructions, 0.2 for instructions that only apply
to one named entity, 0.5 otherwise. If there are none, respond {"instructions": []}.`

// Extractor runs the instruction-extraction chat call.
type Extractor struct {
	chat llm.Provider
}

// NewExtractor creates an Extractor.
func NewExtractor(chat llm.Provider) *Extractor {
	return &Extractor{chat: chat}
}

// Extract runs the one chat call described in the instruction extractor
// component. On any parse failure it returns an empty list rather than an error.
func (e *Extractor) Extract(ctx context.Context, prompt string) ([]Instruction, error) {
	resp, err := e.chat.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: extractorSystemPrompt,
		Messages:     []types.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}

	var out extractorOutput
	text := stripCodeFence(resp.Content)
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, nil
	}
	for i := range out.Instructions {
		if out.Instructions[i].Scope == 0 {
			out.Instructions[i].Scope = scopeDefault
		}
	}
	return out.Instructions, nil
}

// stripCodeFence removes a surrounding ```json ... ``` or ``` ... ``` fence,
// if present, so a model's markdown habit doesn't break JSON parsing.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

package storewrite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/halcyon-ai/recall/pkg/provider/llm"
	"github.com/halcyon-ai/recall/pkg/types"
)

// StoreItem is one candidate to write, shared by the filter's output and the
// force-store net's merged list.
type StoreItem struct {
	Content    string   `json:"content"`
	Type       string   `json:"type"`
	Subtype    string   `json:"subtype,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	ValidFrom  string   `json:"valid_from,omitempty"`
	Scope      *float64 `json:"scope,omitempty"`
	Salience   *float64 `json:"salience,omitempty"`
	RelatedIDs []string `json:"related_ids,omitempty"`
}

type filterOutput struct {
	StoreItems []StoreItem `json:"store_items"`
	SkipReason string      `json:"skip_reason"`
}

const filterSystemPrompt = `Decide what from the user's message is worth writing to durable memory.
Standing instructions are already handled separately — do NOT propose
instruction-type items; they will be dropped. Propose facts, events,
opinions, or plans. Respond with JSON only:
{"store_items": [{"content": string, "type": "fact"|"event"|"opinion"|"plan", "subtype": string?, "reason": string?, "valid_from": "YYYY-MM-DD"?, "scope": number?, "salience": number?}], "skip_reason": string}
If nothing is worth storing, respond {"store_items": [], "skip_reason": "..."}.`

// Filter runs the store-filter chat call.
type Filter struct {
	chat llm.Provider
}

// NewFilter creates a Filter.
func NewFilter(chat llm.Provider) *Filter {
	return &Filter{chat: chat}
}

// Run executes the filter's one chat call. classifierSummary and
// alreadyExtracted (the instruction extractor's output) are passed as
// context so the filter does not duplicate instruction-type proposals; any
// instruction-type item it proposes anyway is dropped by the caller at merge
// time, per spec — the extractor is authoritative for instructions.
func (f *Filter) Run(ctx context.Context, prompt, classifierSummary string, alreadyExtracted []Instruction) ([]StoreItem, string, error) {
	userMsg := fmt.Sprintf("Message: %s\n\nClassifier summary: %s\n\nAlready handled as instructions (do NOT duplicate):\n%s",
		prompt, classifierSummary, formatAlreadyExtracted(alreadyExtracted))

	resp, err := f.chat.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: filterSystemPrompt,
		Messages:     []types.Message{{Role: "user", Content: userMsg}},
	})
	if err != nil {
		return nil, "", err
	}

	var out filterOutput
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &out); err != nil {
		return nil, "", nil
	}

	var items []StoreItem
	for _, it := range out.StoreItems {
		if it.Type == "instruction" {
			continue
		}
		items = append(items, it)
	}
	return items, out.SkipReason, nil
}

func formatAlreadyExtracted(instructions []Instruction) string {
	if len(instructions) == 0 {
		return "(none)"
	}
	s := ""
	for _, in := range instructions {
		s += fmt.Sprintf("- %s\n", in.Content)
	}
	return s
}

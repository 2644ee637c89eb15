// Package plan implements the Layer 1.5 planner: one chat call that turns
// the classifier's summary plus the raw query into a free-text search plan
// forwarded to the retrieve agent.
package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/halcyon-ai/recall/internal/classify"
	"github.com/halcyon-ai/recall/pkg/provider/llm"
	"github.com/halcyon-ai/recall/pkg/types"
)

// Planner produces a natural-language search plan from a classification.
type Planner struct {
	chat llm.Provider
}

// New creates a Planner backed by chat.
func New(chat llm.Provider) *Planner {
	return &Planner{chat: chat}
}

// Plan is forwarded verbatim to the retrieve agent as a "search plan from
// strategist" message; it is never parsed.
type Plan string

// Produce runs the one planner chat call. The output is not parsed; any
// non-empty response is accepted as-is.
func (p *Planner) Produce(ctx context.Context, query string, classification *classify.Result) (Plan, error) {
	resp, err := p.chat.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: buildUserMessage(query, classification)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("plan: produce: %w", err)
	}
	return Plan(strings.TrimSpace(resp.Content)), nil
}

func buildUserMessage(query string, c *classify.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	if c != nil {
		if len(c.Entities) > 0 {
			names := make([]string, len(c.Entities))
			for i, e := range c.Entities {
				names[i] = e.Name
			}
			fmt.Fprintf(&b, "Entities: %s\n", strings.Join(names, ", "))
		}
		if len(c.Concepts) > 0 {
			fmt.Fprintf(&b, "Concepts: %s\n", strings.Join(c.Concepts, ", "))
		}
		if len(c.Intents) > 0 {
			intents := make([]string, len(c.Intents))
			for i, in := range c.Intents {
				intents[i] = string(in)
			}
			fmt.Fprintf(&b, "Intents: %s\n", strings.Join(intents, ", "))
		}
	}
	return b.String()
}

// systemPrompt is the fixed system prompt for the planner call.
const systemPrompt = `You are the search-planning stage of a memory-retrieval pipeline. Given a
query and its classification summary, produce free text consisting of:

  1. A one-line complexity tag: one of SIMPLE FACT, ENTITY LOOKUP,
     RULE/PROCESS, or MULTI-PART.
  2. A one-sentence statement of what the retrieval agent needs to find.
  3. One or two proposed search steps, referencing retrieval tool names
     (search_entity, get_relationships, search_facts, search_events,
     search_processes, get_instructions).

Respond with plain text only, no JSON, no markdown fences.`

// Package followup implements the fast path taken when the current prompt
// continues a conversation the orchestrator has recent state for: instead of
// running the classifier and full retrieve/store pipelines, one chat call
// decides what (if anything) needs doing and the orchestrator executes that
// plan directly.
package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/halcyon-ai/recall/pkg/provider/llm"
	"github.com/halcyon-ai/recall/pkg/types"
)

const maxPriorTurns = 5

// PriorTurn is the caller's summary of one previous turn, as carried by
// conversation state.
type PriorTurn struct {
	Prompt         string
	Entities       []string
	ContextSummary string
}

// ResolvedEntity is an entity the planner resolved from the prompt, possibly
// via a pronoun or other reference to a prior turn.
type ResolvedEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// RetrieveCall is one retrieval tool invocation the planner selected to
// answer the current prompt, using the same tool vocabulary as the full
// retrieve pipeline.
type RetrieveCall struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Plan is the planner's decision for how to handle the current prompt.
type Plan struct {
	ResolvedEntities []ResolvedEntity `json:"resolved_entities"`
	RetrievalNeeded  bool             `json:"retrieval_needed"`
	RetrieveCalls    []RetrieveCall   `json:"retrieve_calls"`
	StorageNeeded    bool             `json:"storage_needed"`
	ResolvedPrompt   string           `json:"resolved_prompt"`
	Reasoning        string           `json:"reasoning"`
}

const plannerSystemPrompt = `You are the follow-up planner in a memory pipeline. You are given up to
five previous turns (each with its prompt, the entities resolved during it,
and a short context summary) followed by the new prompt. Decide:
- resolved_entities: entities the new prompt refers to, resolving any
  pronoun or shorthand reference against the prior turns.
- retrieval_needed: whether anything needs to be looked up to answer this
  prompt.
- retrieve_calls: the specific retrieval tool calls to make, each naming a
  tool from {search_entity, get_relationships, search_facts, search_events,
  search_processes, get_instructions} with its JSON arguments.
- storage_needed: whether this prompt contains anything worth writing to
  durable memory.
- resolved_prompt: the prompt rewritten with references resolved to their
  concrete entity names, for use by any downstream storage step.
- reasoning: a short explanation of the above.
Respond with JSON only:
{"resolved_entities": [{"name": string, "type": string}], "retrieval_needed": bool,
 "retrieve_calls": [{"tool": string, "args": object}], "storage_needed": bool,
 "resolved_prompt": string, "reasoning": string}`

// Planner issues the single follow-up planning chat call.
type Planner struct {
	chat llm.Provider
}

// NewPlanner creates a Planner.
func NewPlanner(chat llm.Provider) *Planner {
	return &Planner{chat: chat}
}

// Plan runs the planning chat call over up to the 5 most recent priorTurns
// and the new prompt. On invalid JSON it returns (nil, nil): the caller
// falls back to the full classify/retrieve/store pipeline, this is not an
// error condition.
func (p *Planner) Plan(ctx context.Context, priorTurns []PriorTurn, prompt string) (*Plan, error) {
	resp, err := p.chat.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: plannerSystemPrompt,
		Messages:     []types.Message{{Role: "user", Content: buildPlannerMessage(priorTurns, prompt)}},
	})
	if err != nil {
		return nil, fmt.Errorf("followup: planner chat call: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &plan); err != nil {
		return nil, nil
	}
	return &plan, nil
}

func buildPlannerMessage(priorTurns []PriorTurn, prompt string) string {
	if len(priorTurns) > maxPriorTurns {
		priorTurns = priorTurns[len(priorTurns)-maxPriorTurns:]
	}

	var b strings.Builder
	b.WriteString("Previous turns:\n")
	if len(priorTurns) == 0 {
		b.WriteString("(none)\n")
	}
	for i, t := range priorTurns {
		fmt.Fprintf(&b, "%d. prompt: %s\n   entities: %s\n", i+1, t.Prompt, strings.Join(t.Entities, ", "))
		if t.ContextSummary != "" {
			fmt.Fprintf(&b, "   context summary: %s\n", t.ContextSummary)
		}
	}
	b.WriteString("\nNew prompt: ")
	b.WriteString(prompt)
	return b.String()
}

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

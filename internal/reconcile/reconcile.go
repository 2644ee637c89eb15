// Package reconcile checks newly written instructions against the existing
// instruction set for supersession or contradiction, after the store
// pipeline completes.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/halcyon-ai/recall/pkg/graph"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
	"github.com/halcyon-ai/recall/pkg/provider/llm"
	"github.com/halcyon-ai/recall/pkg/types"
)

// Verdict is the chat model's judgment about one candidate instruction pair.
type Verdict string

const (
	VerdictNoConflict   Verdict = "NO_CONFLICT"
	VerdictSupersedes   Verdict = "SUPERSEDES"
	VerdictContradicts  Verdict = "CONTRADICTION"
)

// Contradiction is a surfaced conflict between a newly written instruction
// and an existing one, for the host to relay to the user as advisory context.
type Contradiction struct {
	NewContent string
	OldContent string
	OldID      string
	Question   string
}

type reconcileResult struct {
	ID      string  `json:"id"`
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}

type reconcileOutput struct {
	Results  []reconcileResult `json:"results"`
	Question *string           `json:"question"`
}

const reconcileSystemPrompt = `You compare a newly written instruction against numbered candidate
instructions already in memory. For each candidate, decide:
NO_CONFLICT — unrelated or compatible with the new instruction.
SUPERSEDES — the new instruction replaces the candidate outright.
CONTRADICTION — the two conflict and a human should be asked to resolve it.
Respond with JSON only:
{"results": [{"id": string, "verdict": "NO_CONFLICT"|"SUPERSEDES"|"CONTRADICTION", "reason": string}], "question": string|null}`

// Reconciler checks each newly written instruction node against its nearest
// existing instructions.
type Reconciler struct {
	chat      llm.Provider
	embed     embeddings.Provider
	store     graph.Store
	cosineBar float64
}

// New creates a Reconciler. cosineBar is the minimum cosine similarity for a
// candidate to be considered (spec default 0.45).
func New(chat llm.Provider, embed embeddings.Provider, store graph.Store, cosineBar float64) *Reconciler {
	return &Reconciler{chat: chat, embed: embed, store: store, cosineBar: cosineBar}
}

// Reconcile runs the reconciliation check for one newly written instruction
// node, applying any SUPERSEDES verdicts in place and returning any
// CONTRADICTIONs for the caller to surface.
func (r *Reconciler) Reconcile(ctx context.Context, nodeID, content string) ([]Contradiction, error) {
	vec, err := r.embed.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("reconcile: embed: %w", err)
	}

	candidates, err := r.store.SearchSimilar(ctx, vec, 10, graph.VectorFilter{NodeType: graph.NodeInstruction})
	if err != nil {
		return nil, fmt.Errorf("reconcile: search: %w", err)
	}

	var filtered []graph.ScoredNode
	for _, c := range candidates {
		if c.Node.ID == nodeID {
			continue
		}
		if c.Node.IsSuperseded() {
			continue
		}
		if c.Score < r.cosineBar {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) == 0 {
		return nil, nil
	}

	resp, err := r.chat.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: reconcileSystemPrompt,
		Messages:     []types.Message{{Role: "user", Content: buildReconcileMessage(content, filtered)}},
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile: chat call: %w", err)
	}

	var out reconcileOutput
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &out); err != nil {
		return nil, nil
	}

	byID := map[string]graph.Node{}
	for _, c := range filtered {
		byID[c.Node.ID] = c.Node
	}

	var contradictions []Contradiction
	for _, res := range out.Results {
		old, ok := byID[res.ID]
		if !ok {
			continue
		}
		switch res.Verdict {
		case VerdictSupersedes:
			fresh, err := r.store.GetNode(ctx, old.ID)
			if err != nil || fresh == nil || fresh.IsSuperseded() {
				continue
			}
			newID, err := r.store.SupersedeNode(ctx, old.ID, content)
			if err != nil {
				return contradictions, fmt.Errorf("reconcile: supersede %q: %w", old.ID, err)
			}
			newVec, err := r.embed.Embed(ctx, content)
			if err != nil {
				return contradictions, fmt.Errorf("reconcile: embed superseding content: %w", err)
			}
			if err := r.store.PutEmbedding(ctx, graph.Embedding{NodeID: newID, Type: graph.NodeInstruction, Vector: newVec}); err != nil {
				return contradictions, fmt.Errorf("reconcile: put embedding: %w", err)
			}
		case VerdictContradicts:
			question := ""
			if out.Question != nil {
				question = *out.Question
			}
			contradictions = append(contradictions, Contradiction{
				NewContent: content,
				OldContent: old.Content,
				OldID:      old.ID,
				Question:   question,
			})
		}
	}

	return contradictions, nil
}

func buildReconcileMessage(content string, candidates []graph.ScoredNode) string {
	var b strings.Builder
	b.WriteString("New instruction: ")
	b.WriteString(content)
	b.WriteString("\n\nCandidates:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. (id: %s) %s\n", i+1, c.Node.ID, c.Node.Content)
	}
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

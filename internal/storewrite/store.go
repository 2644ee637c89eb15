package storewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/halcyon-ai/recall/internal/agentloop"
	"github.com/halcyon-ai/recall/pkg/graph"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
	"github.com/halcyon-ai/recall/pkg/provider/llm"
)

const storeSystemPrompt = `You are the storage stage of a memory pipeline. You are given a list of
candidate items to write to durable memory. For each, use search_entity to
find ids to link, search_facts to check whether it supersedes an existing
memory (use supersede_memory in that case), and store_memory to write it.
Call done(stored_count) once every candidate has been handled.`

// Pipeline runs the instruction extractor, the store filter, the storage
// agent loop, and the force-store coverage net.
type Pipeline struct {
	chat    llm.Provider
	embed   embeddings.Provider
	store   graph.Store
	budgets agentloop.Budgets

	extractor *Extractor
	filter    *Filter
}

// New creates a storewrite Pipeline.
func New(chat llm.Provider, embed embeddings.Provider, store graph.Store, budgets agentloop.Budgets) *Pipeline {
	return &Pipeline{
		chat: chat, embed: embed, store: store, budgets: budgets,
		extractor: NewExtractor(chat), filter: NewFilter(chat),
	}
}

// Output is the final result of a storewrite run.
type Output struct {
	StoredCount  int
	Instructions []Instruction
	StoreItems   []StoreItem
	ForceStored  []string
	StoredNodes  []StoredNode
	Turns        []agentloop.Turn
}

// Extractor returns the pipeline's instruction extractor (K), so callers that
// need K to run independently of L (e.g. alongside the classifier) can invoke
// it directly instead of going through Run.
func (p *Pipeline) Extractor() *Extractor {
	return p.extractor
}

// Filter returns the pipeline's store filter (L).
func (p *Pipeline) Filter() *Filter {
	return p.filter
}

// Run executes the full K (extractor) -> L (filter) -> M (store agent) chain
// followed by the force-store coverage net.
func (p *Pipeline) Run(ctx context.Context, prompt, classifierSummary string) (*Output, error) {
	instructions, err := p.extractor.Extract(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("storewrite: extract: %w", err)
	}

	items, _, err := p.filter.Run(ctx, prompt, classifierSummary, instructions)
	if err != nil {
		return nil, fmt.Errorf("storewrite: filter: %w", err)
	}

	return p.RunStage(ctx, prompt, instructions, items)
}

// RunStage executes the M (store agent) chain and force-store coverage net
// given instructions and items already produced by K and L. Callers that need
// K -> L to run concurrently with something else (spec's "E in parallel with
// (K then L)" data flow, where L's classifierSummary input comes from the
// classifier) call Extractor/Filter directly and pass the results here,
// rather than going through Run (which always runs K and L itself).
func (p *Pipeline) RunStage(ctx context.Context, prompt string, instructions []Instruction, items []StoreItem) (*Output, error) {
	ts := newToolset(p.store, p.embed)
	userPrompt := buildCandidateList(prompt, instructions, items)

	loopResult, err := agentloop.Run(ctx, p.chat, toolDefinitions, ts.dispatch, storeSystemPrompt, userPrompt, p.budgets)
	if err != nil {
		return nil, fmt.Errorf("storewrite: agent loop: %w", err)
	}

	forceStored, err := runForceStoreNet(ctx, ts, instructions, items)
	if err != nil {
		return nil, fmt.Errorf("storewrite: force-store net: %w", err)
	}

	return &Output{
		StoredCount:  len(ts.storedContents),
		Instructions: instructions,
		StoreItems:   items,
		ForceStored:  forceStored,
		StoredNodes:  ts.storedNodes,
		Turns:        loopResult.Turns,
	}, nil
}

func buildCandidateList(prompt string, instructions []Instruction, items []StoreItem) string {
	var b strings.Builder
	b.WriteString("User message: ")
	b.WriteString(prompt)
	b.WriteString("\n\nCandidates to store:\n")
	for _, in := range instructions {
		fmt.Fprintf(&b, "- [instruction/%s] %s (scope: %g)\n", in.Subtype, in.Content, in.Scope)
	}
	for _, it := range items {
		fmt.Fprintf(&b, "- [%s] %s\n", it.Type, it.Content)
	}
	return b.String()
}

// runForceStoreNet checks coverage for the merged list (instructions first,
// then filter items, per spec's ordering guarantee) and writes any
// uncovered item directly through the toolset with deterministic defaults.
func runForceStoreNet(ctx context.Context, ts *toolset, instructions []Instruction, items []StoreItem) ([]string, error) {
	var forced []string

	for _, in := range instructions {
		if coverageCheck(ts.storedContents, in.Content) {
			continue
		}
		scope := in.Scope
		args := map[string]any{
			"type":       string(graph.NodeInstruction),
			"subtype":    in.Subtype,
			"content":    in.Content,
			"scope":      scope,
			"entity_ids": toAnySlice(linkedEntityIDs(ts.searchedNames, in.Content)),
		}
		if _, err := ts.dispatch(ctx, "store_memory", args); err != nil {
			return forced, err
		}
		forced = append(forced, in.Content)
	}

	for _, it := range items {
		if coverageCheck(ts.storedContents, it.Content) {
			continue
		}
		args := map[string]any{
			"type":       it.Type,
			"subtype":    it.Subtype,
			"content":    it.Content,
			"entity_ids": toAnySlice(linkedEntityIDs(ts.searchedNames, it.Content)),
		}
		if it.Salience != nil {
			args["salience"] = *it.Salience
		} else {
			args["salience"] = 1.0
		}
		switch it.Type {
		case "instruction":
			continue // the extractor is authoritative for instructions; already handled above
		case "plan":
			scope := 0.3
			if it.Scope != nil {
				scope = *it.Scope
			}
			args["scope"] = scope
		}
		if it.RelatedIDs != nil {
			args["related_ids"] = toAnySlice(it.RelatedIDs)
		}
		if _, err := ts.dispatch(ctx, "store_memory", args); err != nil {
			return forced, err
		}
		forced = append(forced, it.Content)
	}

	return forced, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

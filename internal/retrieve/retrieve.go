package retrieve

import (
	"context"
	"fmt"

	"github.com/halcyon-ai/recall/internal/agentloop"
	"github.com/halcyon-ai/recall/internal/plan"
	"github.com/halcyon-ai/recall/pkg/graph"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
	"github.com/halcyon-ai/recall/pkg/provider/llm"
)

const retrieveSystemPrompt = `You are the retrieval stage of a memory pipeline. Use the available tools to
find information relevant to the user's query, guided by the search plan
provided. Call done() once you have enough information, even if you have
turns remaining.`

// Pipeline runs the full retrieval pipeline: the bounded tool loop, the
// three deterministic safety nets, assembly into sections, and curation.
type Pipeline struct {
	chat    llm.Provider
	embed   embeddings.Provider
	store   graph.Store
	budgets agentloop.Budgets
}

// New creates a retrieval Pipeline.
func New(chat llm.Provider, embed embeddings.Provider, store graph.Store, budgets agentloop.Budgets) *Pipeline {
	return &Pipeline{chat: chat, embed: embed, store: store, budgets: budgets}
}

// Output is the final retrieval result handed to the orchestrator.
type Output struct {
	// Context is the raw assembled context string.
	Context string
	// CuratedContext is the curator's output; callers prefer this when non-empty.
	CuratedContext string
	// Done reports whether the agent loop terminated via the done() tool
	// call rather than exhausting its turn or timeout budget.
	Done  bool
	Turns []agentloop.Turn
}

// Run executes the retrieve agent loop over prompt using searchPlan as the
// "search plan from strategist" message, then always runs the three safety
// nets, assembles the combined candidate set into sections, and curates.
func (p *Pipeline) Run(ctx context.Context, prompt string, searchPlan plan.Plan) (*Output, error) {
	ts := &toolset{store: p.store, embed: p.embed}

	userPrompt := prompt
	if searchPlan != "" {
		userPrompt = fmt.Sprintf("%s\n\nSearch plan from strategist:\n%s", prompt, searchPlan)
	}

	loopResult, err := agentloop.Run(ctx, p.chat, toolDefinitions, ts.dispatch, retrieveSystemPrompt, userPrompt, p.budgets)
	if err != nil {
		return nil, fmt.Errorf("retrieve: agent loop: %w", err)
	}

	var candidates []graph.ScoredNode
	for _, t := range loopResult.Turns {
		candidates = append(candidates, parseResultLines(t.Result)...)
	}

	// Safety nets run AFTER real tool results so real results win ties
	// (max-score wins, and real results are already in the slice).
	topInstr, err := topInstructionsSafetyNet(ctx, p.store, p.embed, prompt)
	if err != nil {
		return nil, fmt.Errorf("retrieve: top instructions safety net: %w", err)
	}
	broad, err := broadSearchSafetyNet(ctx, p.store, p.embed, prompt)
	if err != nil {
		return nil, fmt.Errorf("retrieve: broad search safety net: %w", err)
	}
	global, err := globalScopeSafetyNet(ctx, p.store, p.embed, prompt)
	if err != nil {
		return nil, fmt.Errorf("retrieve: global scope safety net: %w", err)
	}
	candidates = append(candidates, topInstr...)
	candidates = append(candidates, broad...)
	candidates = append(candidates, global...)

	assembled, err := assemble(ctx, p.store, candidates)
	if err != nil {
		return nil, fmt.Errorf("retrieve: assemble: %w", err)
	}

	curatedContext, err := curate(ctx, p.chat, prompt, assembled.Sections)
	if err != nil {
		// The curator degrading to empty is handled below by falling back
		// to the raw context; an actual call failure here still degrades
		// the same way rather than aborting the pipeline.
		curatedContext = ""
	}

	return &Output{
		Context:        assembled.Context,
		CuratedContext: curatedContext,
		Done:           loopResult.Done,
		Turns:          loopResult.Turns,
	}, nil
}

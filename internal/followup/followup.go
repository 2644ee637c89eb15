package followup

import (
	"context"
	"fmt"
	"strings"

	"github.com/halcyon-ai/recall/internal/storewrite"
	"github.com/halcyon-ai/recall/pkg/graph"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
	"github.com/halcyon-ai/recall/pkg/provider/llm"
)

// broadeningBar is the minimum cosine similarity for the broadening search
// that covers any node-type bucket the planner's own calls left untouched.
const broadeningBar = 0.25

// broadeningTopK caps how many results the broadening search returns per
// untouched bucket.
const broadeningTopK = 5

// sixBuckets is every node type the broadening search may cover.
var sixBuckets = []graph.NodeType{
	graph.NodeEntity, graph.NodeFact, graph.NodeOpinion,
	graph.NodeEvent, graph.NodePlan, graph.NodeInstruction,
}

// Pipeline runs the follow-up fast path: the planning chat call, direct
// execution of the tools it selects plus an entity-resolution pass and a
// broadening safety net, and (if called for) the full store pipeline.
type Pipeline struct {
	planner    *Planner
	store      graph.Store
	embed      embeddings.Provider
	storewrite *storewrite.Pipeline
}

// New creates a follow-up Pipeline. sw is the already-constructed store
// pipeline (K -> L -> M -> force-store net) run when the plan calls for it.
func New(chat llm.Provider, embed embeddings.Provider, store graph.Store, sw *storewrite.Pipeline) *Pipeline {
	return &Pipeline{planner: NewPlanner(chat), store: store, embed: embed, storewrite: sw}
}

// Output is the result of a follow-up run.
type Output struct {
	// Plan is the planner's decision. Nil means the planner produced invalid
	// JSON and the caller should fall back to the full pipeline.
	Plan *Plan
	// Context is the concatenation of every kept tool result. There is no
	// curation step on the follow-up path.
	Context string
	// Store, if non-nil, is the result of running the full store pipeline.
	Store *storewrite.Output
}

// Run executes the follow-up fast path. classifierSummary is only used if
// the plan calls for storage; it is passed through to the store filter the
// same way the full pipeline would.
func (p *Pipeline) Run(ctx context.Context, priorTurns []PriorTurn, prompt, classifierSummary string) (*Output, error) {
	plan, err := p.planner.Plan(ctx, priorTurns, prompt)
	if err != nil {
		return nil, fmt.Errorf("followup: plan: %w", err)
	}
	if plan == nil {
		return &Output{Plan: nil}, nil
	}

	ts := &toolset{store: p.store, embed: p.embed}
	var results []string
	touched := map[graph.NodeType]bool{}

	seen := map[string]bool{}
	for _, e := range plan.ResolvedEntities {
		name := strings.ToLower(e.Name)
		if seen[name] {
			continue
		}
		seen[name] = true
		res, err := ts.dispatch(ctx, "search_entity", map[string]any{"name": e.Name})
		if err != nil {
			return nil, fmt.Errorf("followup: search_entity: %w", err)
		}
		if res != "" {
			results = append(results, res)
		}
		touched[graph.NodeEntity] = true
	}

	if plan.RetrievalNeeded {
		for _, call := range plan.RetrieveCalls {
			res, err := ts.dispatch(ctx, call.Tool, call.Args)
			if err != nil {
				return nil, fmt.Errorf("followup: %s: %w", call.Tool, err)
			}
			if res != "" {
				results = append(results, res)
			}
			for _, nt := range touchedBucketsFor(call.Tool) {
				touched[nt] = true
			}
		}
	}

	broad, err := p.broadenUntouched(ctx, prompt, touched)
	if err != nil {
		return nil, fmt.Errorf("followup: broadening search: %w", err)
	}
	results = append(results, broad...)

	out := &Output{Plan: plan, Context: strings.Join(results, "\n")}

	if plan.StorageNeeded {
		storePrompt := plan.ResolvedPrompt
		if storePrompt == "" {
			storePrompt = prompt
		}
		storeOut, err := p.storewrite.Run(ctx, storePrompt, classifierSummary)
		if err != nil {
			return nil, fmt.Errorf("followup: store: %w", err)
		}
		out.Store = storeOut
	}

	return out, nil
}

// touchedBucketsFor reports which node-type buckets a given retrieval tool
// call already covers, so the broadening search skips them.
func touchedBucketsFor(tool string) []graph.NodeType {
	switch tool {
	case "search_entity":
		return []graph.NodeType{graph.NodeEntity}
	case "search_facts":
		return []graph.NodeType{graph.NodeFact, graph.NodeOpinion}
	case "search_events":
		return []graph.NodeType{graph.NodeEvent}
	case "search_processes", "get_instructions":
		return []graph.NodeType{graph.NodeInstruction}
	default:
		return nil
	}
}

// broadenUntouched runs a cosine search over every node-type bucket the
// planner's own calls left untouched, at a low bar (0.25), so a follow-up
// plan that under-selects tools still surfaces loosely related memories.
func (p *Pipeline) broadenUntouched(ctx context.Context, prompt string, touched map[graph.NodeType]bool) ([]string, error) {
	var untouched []graph.NodeType
	for _, nt := range sixBuckets {
		if !touched[nt] {
			untouched = append(untouched, nt)
		}
	}
	if len(untouched) == 0 {
		return nil, nil
	}

	vec, err := p.embed.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	var out []string
	for _, nt := range untouched {
		scored, err := p.store.SearchSimilar(ctx, vec, broadeningTopK, graph.VectorFilter{NodeType: nt})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", nt, err)
		}
		for _, s := range scored {
			if s.Score < broadeningBar {
				continue
			}
			score := s.Score
			out = append(out, formatResultLine(s.Node, &score))
		}
	}
	return out, nil
}

// Package engine wires the classify, plan, retrieve, storewrite, reconcile,
// and followup pipelines into the per-turn orchestrator. One Engine
// processes exactly one turn at a time for a given caller, but multiple
// Engine instances may run concurrently (e.g. one per hook invocation) —
// each carries its own [observe.Metrics] and [observe.UsageTracker] so their
// token/turn accounting never mixes.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halcyon-ai/recall/internal/agentloop"
	"github.com/halcyon-ai/recall/internal/classify"
	"github.com/halcyon-ai/recall/internal/config"
	"github.com/halcyon-ai/recall/internal/convstate"
	"github.com/halcyon-ai/recall/internal/followup"
	"github.com/halcyon-ai/recall/internal/observe"
	"github.com/halcyon-ai/recall/internal/plan"
	"github.com/halcyon-ai/recall/internal/reconcile"
	"github.com/halcyon-ai/recall/internal/retrieve"
	"github.com/halcyon-ai/recall/internal/storewrite"
	"github.com/halcyon-ai/recall/pkg/graph"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
	"github.com/halcyon-ai/recall/pkg/provider/llm"

	"go.opentelemetry.io/otel/metric"
)

// Engine runs one turn of the memory pipeline end to end: the follow-up fast
// path when recent conversation state exists, otherwise the full
// classify/plan/retrieve/store/reconcile flow.
type Engine struct {
	store   graph.Store
	convo   *convstate.Store
	metrics *observe.Metrics

	classifier *classify.Classifier
	planner    *plan.Planner
	retrieve   *retrieve.Pipeline
	storewrite *storewrite.Pipeline
	reconciler *reconcile.Reconciler
	followup   *followup.Pipeline
}

// New builds an Engine from its provider and store dependencies plus the
// tunable budgets. mp is the meter provider this engine's private Metrics
// instance is scoped under; pass nil to record no metrics (tests).
func New(chat llm.Provider, embed embeddings.Provider, store graph.Store, convo *convstate.Store, mp metric.MeterProvider, budgets config.BudgetsConfig) (*Engine, error) {
	var metrics *observe.Metrics
	if mp != nil {
		m, err := observe.NewMetrics(mp)
		if err != nil {
			return nil, fmt.Errorf("engine: new metrics: %w", err)
		}
		metrics = m
	}

	chat = instrumentChat(chat, metrics)
	embed = instrumentEmbed(embed, metrics)

	agentBudgets := toAgentBudgets(budgets)
	sw := storewrite.New(chat, embed, store, agentBudgets)

	return &Engine{
		store:      store,
		convo:      convo,
		metrics:    metrics,
		classifier: classify.New(chat),
		planner:    plan.New(chat),
		retrieve:   retrieve.New(chat, embed, store, agentBudgets),
		storewrite: sw,
		reconciler: reconcile.New(chat, embed, store, budgets.ReconcileCosineBar),
		followup:   followup.New(chat, embed, store, sw),
	}, nil
}

func toAgentBudgets(b config.BudgetsConfig) agentloop.Budgets {
	return agentloop.Budgets{
		MaxTurns:           b.MaxLayer2Turns,
		Timeout:            b.Layer2Timeout,
		MaxConsecutiveErrs: b.MaxConsecutiveErrs,
		MaxResultChars:     b.MaxResultChars,
	}
}

// Output is the result of processing one turn, ready to be rendered as the
// hook's additionalContext.
type Output struct {
	// Context is the memory context to surface to the assistant. Empty
	// means nothing relevant was found or needed storing.
	Context string
	// Stored is how many memory items were written this turn, including any
	// the force-store coverage net wrote.
	Stored int
	// Contradictions lists any conflicts the reconciler surfaced between a
	// newly written instruction and one already in memory.
	Contradictions []reconcile.Contradiction
	// UsedFollowup reports whether the fast path ran (recent conversation
	// state existed and the follow-up planner returned a usable plan).
	UsedFollowup bool
	// entities is the set of entity names resolved this turn, kept for the
	// conversation-state turn record so a later follow-up plan has names to
	// work with.
	entities []string
}

// Process runs one full turn for prompt. sessionID, if non-empty, is used to
// detect a conversation reset (per [convstate.Store.Append]'s session-change
// rule) and is persisted alongside the new turn.
func (e *Engine) Process(ctx context.Context, prompt, sessionID string) (*Output, error) {
	if e.metrics != nil {
		e.metrics.ActiveEngines.Add(ctx, 1)
		defer e.metrics.ActiveEngines.Add(ctx, -1)
	}

	var recent *convstate.State
	if e.convo != nil {
		var err error
		recent, err = e.convo.Load()
		if err != nil {
			return nil, fmt.Errorf("engine: load conversation state: %w", err)
		}
	}

	var out *Output
	var err error
	if recent != nil && len(recent.Turns) > 0 {
		out, err = e.runFollowup(ctx, recent, prompt)
		if err != nil {
			return nil, err
		}
	}

	// Either there was no recent state, or the follow-up planner returned
	// invalid JSON and out is nil: fall through to the full pipeline.
	if out == nil {
		out, err = e.runFullPipeline(ctx, prompt)
		if err != nil {
			return nil, err
		}
	}

	if e.convo != nil {
		turn := convstate.Turn{
			Prompt:         prompt,
			Entities:       out.entities,
			ContextSummary: truncate(out.Context, 500),
			Timestamp:      time.Now(),
		}
		if err := e.convo.Append(sessionID, turn); err != nil {
			return nil, fmt.Errorf("engine: persist conversation state: %w", err)
		}
	}

	return out, nil
}

// runFollowup attempts the fast path (P in the data-flow diagram), which may
// internally invoke K/L/M (the store chain) through the embedded storewrite
// pipeline. Returns (nil, nil) if the planner's JSON was invalid, signalling
// the caller should fall back to the full pipeline.
func (e *Engine) runFollowup(ctx context.Context, recent *convstate.State, prompt string) (*Output, error) {
	priorTurns := make([]followup.PriorTurn, 0, len(recent.Turns))
	for _, t := range recent.Turns {
		priorTurns = append(priorTurns, followup.PriorTurn{
			Prompt:         t.Prompt,
			Entities:       t.Entities,
			ContextSummary: t.ContextSummary,
		})
	}

	result, err := e.followup.Run(ctx, priorTurns, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("engine: followup: %w", err)
	}
	if result.Plan == nil {
		return nil, nil
	}

	names := make([]string, 0, len(result.Plan.ResolvedEntities))
	for _, re := range result.Plan.ResolvedEntities {
		names = append(names, re.Name)
	}

	out := &Output{Context: result.Context, UsedFollowup: true, entities: names}
	if result.Store != nil {
		out.Stored = result.Store.StoredCount
		contradictions, err := e.reconcileWritten(ctx, result.Store.StoredNodes)
		if err != nil {
			return nil, err
		}
		out.Contradictions = contradictions
	}
	return out, nil
}

// runFullPipeline implements the non-follow-up branch of the data flow: the
// classifier (E) runs concurrently with the instruction extractor (K), the
// store filter (L) then runs once both complete (it needs the classifier's
// summary and the extractor's output), and the retrieve (F->G->H->I->J) and
// store (M->N) branches run concurrently once the classification's
// retrieve/store decision is known.
func (e *Engine) runFullPipeline(ctx context.Context, prompt string) (*Output, error) {
	var classification *classify.Result
	var instructions []storewrite.Instruction

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		res, err := e.classifier.Classify(egCtx, prompt)
		if err != nil {
			return fmt.Errorf("classify: %w", err)
		}
		classification = res
		return nil
	})
	eg.Go(func() error {
		res, err := e.storewrite.Extractor().Extract(egCtx, prompt)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		instructions = res
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	items, _, err := e.storewrite.Filter().Run(ctx, prompt, classification.Summary(), instructions)
	if err != nil {
		return nil, fmt.Errorf("engine: filter: %w", err)
	}

	shouldRetrieve := classification.Operations.Retrieve
	shouldStore := classification.Operations.Store

	var retrieveOut *retrieve.Output
	var storeOut *storewrite.Output

	eg2, egCtx2 := errgroup.WithContext(ctx)
	if shouldRetrieve {
		eg2.Go(func() error {
			searchPlan, err := e.planner.Produce(egCtx2, prompt, classification)
			if err != nil {
				return fmt.Errorf("plan: %w", err)
			}
			res, err := e.retrieve.Run(egCtx2, prompt, searchPlan)
			if err != nil {
				return fmt.Errorf("retrieve: %w", err)
			}
			retrieveOut = res
			return nil
		})
	}
	if shouldStore {
		eg2.Go(func() error {
			res, err := e.storewrite.RunStage(egCtx2, prompt, instructions, items)
			if err != nil {
				return fmt.Errorf("store: %w", err)
			}
			storeOut = res
			return nil
		})
	}
	if err := eg2.Wait(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	names := make([]string, 0, len(classification.Entities))
	for _, ent := range classification.Entities {
		names = append(names, ent.Name)
	}

	out := &Output{entities: names}
	if retrieveOut != nil {
		out.Context = retrieveOut.CuratedContext
		if out.Context == "" {
			out.Context = retrieveOut.Context
		}
	}
	if storeOut != nil {
		out.Stored = storeOut.StoredCount
		contradictions, err := e.reconcileWritten(ctx, storeOut.StoredNodes)
		if err != nil {
			return nil, err
		}
		out.Contradictions = contradictions
	}
	return out, nil
}

// reconcileWritten runs the reconciler (O) over every newly written
// instruction node, after the store side completes.
func (e *Engine) reconcileWritten(ctx context.Context, nodes []storewrite.StoredNode) ([]reconcile.Contradiction, error) {
	var contradictions []reconcile.Contradiction
	for _, n := range nodes {
		if n.Type != graph.NodeInstruction {
			continue
		}
		found, err := e.reconciler.Reconcile(ctx, n.ID, n.Content)
		if err != nil {
			return nil, fmt.Errorf("engine: reconcile: %w", err)
		}
		contradictions = append(contradictions, found...)
	}
	return contradictions, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}

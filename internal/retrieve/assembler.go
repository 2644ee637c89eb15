package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/halcyon-ai/recall/pkg/graph"
)

const (
	instructionTiebreaker = 0.05
	maxEntities           = 15
	maxRelationshipsPer   = 8
	maxInstructionsCap    = 15
	maxFacts              = 30
	maxEvents             = 15
	maxPlans              = 10
)

// AssembledContext is the sectioned, flattened context string plus the raw
// per-section node ids, ready for curation.
type AssembledContext struct {
	Sections []Section
	Context  string
}

// Section is one heading's worth of assembled content.
type Section struct {
	Heading string
	Lines   []string
}

// assemble bins scored candidates by node type, ranks and caps each section,
// promotes due plans to events, and flattens into a heading-delimited string.
func assemble(ctx context.Context, store graph.Store, candidates []graph.ScoredNode) (*AssembledContext, error) {
	byID := map[string]graph.ScoredNode{}
	for _, c := range candidates {
		existing, ok := byID[c.Node.ID]
		if !ok || c.Score > existing.Score {
			byID[c.Node.ID] = c
		}
	}

	var entities, instructions, facts, events, plans []graph.ScoredNode
	for _, c := range byID {
		n, err := store.GetNode(ctx, c.Node.ID)
		if err != nil {
			return nil, fmt.Errorf("assemble: get node %q: %w", c.Node.ID, err)
		}
		if n == nil || n.IsSuperseded() {
			continue
		}
		c.Node = *n
		switch n.Type {
		case graph.NodeEntity:
			entities = append(entities, c)
		case graph.NodeInstruction:
			instructions = append(instructions, c)
		case graph.NodeFact, graph.NodeOpinion:
			facts = append(facts, c)
		case graph.NodeEvent:
			events = append(events, c)
		case graph.NodePlan:
			plans = append(plans, c)
		}
	}

	sortByScore(entities)
	if len(entities) > maxEntities {
		entities = entities[:maxEntities]
	}

	sortInstructions(instructions)
	if len(instructions) > maxInstructionsCap {
		instructions = instructions[:maxInstructionsCap]
	}

	sortByScore(facts)
	if len(facts) > maxFacts {
		facts = facts[:maxFacts]
	}

	promoted, remainingPlans, err := promoteDuePlans(ctx, store, plans)
	if err != nil {
		return nil, err
	}
	events = append(events, promoted...)
	sortByScore(events)
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}

	sortPlansByValidFrom(remainingPlans)
	if len(remainingPlans) > maxPlans {
		remainingPlans = remainingPlans[:maxPlans]
	}

	alreadyPresent := map[string]bool{}
	for _, group := range [][]graph.ScoredNode{entities, instructions, facts, events, remainingPlans} {
		for _, c := range group {
			alreadyPresent[c.Node.ID] = true
		}
	}

	out := &AssembledContext{}
	if s, err := entitySection(ctx, store, entities, alreadyPresent); err != nil {
		return nil, err
	} else if s != nil {
		out.Sections = append(out.Sections, *s)
	}
	if s := plainSection("Instructions", instructions); s != nil {
		out.Sections = append(out.Sections, *s)
	}
	if s := plainSection("Facts", facts); s != nil {
		out.Sections = append(out.Sections, *s)
	}
	if s := plainSection("Events", events); s != nil {
		out.Sections = append(out.Sections, *s)
	}
	if s := plainSection("Upcoming plans", remainingPlans); s != nil {
		out.Sections = append(out.Sections, *s)
	}

	var parts []string
	for _, s := range out.Sections {
		parts = append(parts, s.Heading+"\n"+strings.Join(s.Lines, "\n"))
	}
	out.Context = strings.Join(parts, "\n\n")
	return out, nil
}

func sortByScore(nodes []graph.ScoredNode) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Score > nodes[j].Score })
}

// sortInstructions sorts by cosine score, using scope as a tiebreaker when
// the absolute score difference is within instructionTiebreaker.
func sortInstructions(nodes []graph.ScoredNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		diff := nodes[i].Score - nodes[j].Score
		if diff < 0 {
			diff = -diff
		}
		if diff <= instructionTiebreaker {
			si, sj := scopeOf(nodes[i].Node), scopeOf(nodes[j].Node)
			if si != sj {
				return si > sj
			}
		}
		return nodes[i].Score > nodes[j].Score
	})
}

func scopeOf(n graph.Node) float64 {
	if n.Scope == nil {
		return 0
	}
	return *n.Scope
}

func sortPlansByValidFrom(nodes []graph.ScoredNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		vi, vj := nodes[i].Node.ValidFrom, nodes[j].Node.ValidFrom
		if vi == nil || vj == nil {
			return vi != nil
		}
		return vi.Before(*vj)
	})
}

// promoteDuePlans promotes any plan whose valid_from has passed to an event,
// annotating it, and returns (promoted-as-events, remaining-plans).
func promoteDuePlans(ctx context.Context, store graph.Store, plans []graph.ScoredNode) ([]graph.ScoredNode, []graph.ScoredNode, error) {
	today := time.Now().UTC()
	var promoted, remaining []graph.ScoredNode
	for _, c := range plans {
		if c.Node.ValidFrom != nil && !c.Node.ValidFrom.After(today) {
			if err := store.PromotePlanToEvent(ctx, c.Node.ID); err != nil {
				return nil, nil, fmt.Errorf("assemble: promote plan %q: %w", c.Node.ID, err)
			}
			c.Node.Type = graph.NodeEvent
			c.Node.Subtype = graph.SubtypeCompletedPlan
			c.Node.Content = fmt.Sprintf("%s [Was scheduled for %s — now past]", c.Node.Content, c.Node.ValidFrom.Format("2006-01-02"))
			promoted = append(promoted, c)
			continue
		}
		remaining = append(remaining, c)
	}
	return promoted, remaining, nil
}

func plainSection(heading string, nodes []graph.ScoredNode) *Section {
	if len(nodes) == 0 {
		return nil
	}
	lines := make([]string, len(nodes))
	for i, c := range nodes {
		lines[i] = formatResultLine(c.Node, nil)
	}
	return &Section{Heading: heading, Lines: lines}
}

// entitySection expands each top entity with up to maxRelationshipsPer
// top-salience relationships whose targets do not already appear elsewhere.
func entitySection(ctx context.Context, store graph.Store, entities []graph.ScoredNode, alreadyPresent map[string]bool) (*Section, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	var lines []string
	for _, c := range entities {
		lines = append(lines, formatResultLine(c.Node, nil))
		rels, err := store.Relationships(ctx, c.Node.ID)
		if err != nil {
			return nil, fmt.Errorf("entity section: relationships of %q: %w", c.Node.ID, err)
		}
		sort.SliceStable(rels, func(i, j int) bool { return rels[i].Other.Salience > rels[j].Other.Salience })
		added := 0
		for _, r := range rels {
			if alreadyPresent[r.Other.ID] {
				continue
			}
			if added >= maxRelationshipsPer {
				break
			}
			lines = append(lines, "  "+formatResultLine(r.Other, nil))
			added++
		}
	}
	return &Section{Heading: "People & things", Lines: lines}, nil
}

package followup

import (
	"context"
	"fmt"
	"strings"

	"github.com/halcyon-ai/recall/pkg/graph"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
)

// toolset dispatches the same retrieval tool vocabulary the full retrieve
// pipeline offers, so the planner's retrieve_calls can name any of them.
type toolset struct {
	store graph.Store
	embed embeddings.Provider
}

// dispatch executes name with args and returns the formatted result text,
// or an "Error: ..."-prefixed string on failure — not a Go error, matching
// the retrieve pipeline's tool-handler convention.
func (t *toolset) dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "search_entity":
		n, _ := args["name"].(string)
		nodes, err := t.store.SearchEntityByName(ctx, n)
		if err != nil {
			return fmt.Sprintf("Error: search_entity: %v", err), nil
		}
		return formatNodes(nodes), nil

	case "get_relationships":
		entityID, _ := args["entity_id"].(string)
		rels, err := t.store.Relationships(ctx, entityID)
		if err != nil {
			return fmt.Sprintf("Error: get_relationships: %v", err), nil
		}
		var lines []string
		for _, r := range rels {
			lines = append(lines, formatResultLine(r.Other, nil))
		}
		return strings.Join(lines, "\n"), nil

	case "search_facts":
		return t.vectorSearch(ctx, args, []graph.NodeType{graph.NodeFact, graph.NodeOpinion})

	case "search_events":
		return t.vectorSearch(ctx, args, []graph.NodeType{graph.NodeEvent})

	case "search_processes":
		return t.vectorSearch(ctx, args, []graph.NodeType{graph.NodeInstruction})

	case "get_instructions":
		topic, _ := args["topic"].(string)
		entityID, _ := args["entity_id"].(string)
		var nodes []graph.Node
		var err error
		if entityID != "" {
			nodes, err = t.store.InstructionsByEntity(ctx, entityID)
		} else {
			nodes, err = t.store.Instructions(ctx, topic)
		}
		if err != nil {
			return fmt.Sprintf("Error: get_instructions: %v", err), nil
		}
		return formatNodes(nodes), nil

	default:
		return fmt.Sprintf("Error: unknown tool %q", name), nil
	}
}

func (t *toolset) vectorSearch(ctx context.Context, args map[string]any, types []graph.NodeType) (string, error) {
	query, _ := args["query"].(string)
	vec, err := t.embed.Embed(ctx, query)
	if err != nil {
		return fmt.Sprintf("Error: embed query: %v", err), nil
	}
	results, err := t.store.SearchSimilar(ctx, vec, 20, graph.VectorFilter{NodeTypes: types})
	if err != nil {
		return fmt.Sprintf("Error: search: %v", err), nil
	}
	if entityID, _ := args["entity_id"].(string); entityID != "" {
		results = filterByEntityLink(ctx, t.store, results, entityID)
	}
	var lines []string
	for _, r := range results {
		score := r.Score
		lines = append(lines, formatResultLine(r.Node, &score))
	}
	return strings.Join(lines, "\n"), nil
}

// filterByEntityLink narrows results to nodes with an edge to entityID.
func filterByEntityLink(ctx context.Context, store graph.Store, results []graph.ScoredNode, entityID string) []graph.ScoredNode {
	rels, err := store.Relationships(ctx, entityID)
	if err != nil {
		return results
	}
	linked := map[string]bool{}
	for _, r := range rels {
		linked[r.Other.ID] = true
	}
	var out []graph.ScoredNode
	for _, r := range results {
		if linked[r.Node.ID] {
			out = append(out, r)
		}
	}
	return out
}

func formatNodes(nodes []graph.Node) string {
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = formatResultLine(n, nil)
	}
	return strings.Join(lines, "\n")
}

// formatResultLine renders a node as a single tool-result line, mirroring
// the retrieve pipeline's format so downstream text handling stays uniform.
func formatResultLine(n graph.Node, score *float64) string {
	typeTag := string(n.Type)
	if n.Subtype != "" {
		typeTag += "/" + n.Subtype
	}
	line := fmt.Sprintf("[%s] %s (id: %s, salience: %g)", typeTag, n.Content, n.ID, n.Salience)
	if score != nil {
		line += fmt.Sprintf(" [score: %g]", *score)
	}
	return line
}

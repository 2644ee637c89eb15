package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/halcyon-ai/recall/pkg/graph"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
	"github.com/halcyon-ai/recall/pkg/types"
)

// toolDefinitions is the fixed retrieval tool vocabulary offered to the
// chat model on every loop iteration.
var toolDefinitions = []types.ToolDefinition{
	{
		Name:        "search_entity",
		Description: "Search for an entity node by name.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
	},
	{
		Name:        "get_relationships",
		Description: "Get all relationships (edges) for an entity id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"entity_id": map[string]any{"type": "string"}},
			"required":   []string{"entity_id"},
		},
	},
	{
		Name:        "search_facts",
		Description: "Search facts and opinions by query, optionally scoped to an entity.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":     map[string]any{"type": "string"},
				"entity_id": map[string]any{"type": "string"},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        "search_events",
		Description: "Search events by query, optionally scoped to an entity and a recency window in days.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":     map[string]any{"type": "string"},
				"entity_id": map[string]any{"type": "string"},
				"days":      map[string]any{"type": "integer"},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        "search_processes",
		Description: "Search process/instruction-like content by query, optionally scoped to an entity.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":     map[string]any{"type": "string"},
				"entity_id": map[string]any{"type": "string"},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        "get_instructions",
		Description: "Get instructions, optionally filtered by topic and/or entity.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"topic":     map[string]any{"type": "string"},
				"entity_id": map[string]any{"type": "string"},
			},
		},
	},
	{
		Name:        "done",
		Description: "Signal that retrieval is complete.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	},
}

// toolset dispatches retrieval tool calls against the graph store and
// embedding provider.
type toolset struct {
	store graph.Store
	embed embeddings.Provider
}

// dispatch executes name with args (already-parsed JSON) and returns the
// formatted result text, or an "Error: ..."-prefixed string on failure —
// per the spec's tool-handler error convention, this is not a Go error.
func (t *toolset) dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "done":
		return "", nil

	case "search_entity":
		name, _ := args["name"].(string)
		nodes, err := t.store.SearchEntityByName(ctx, name)
		if err != nil {
			return fmt.Sprintf("Error: search_entity: %v", err), nil
		}
		return formatNodes(nodes, nil), nil

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
		return formatNodes(nodes, nil), nil

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
	if days, _ := args["days"].(float64); days > 0 {
		ids, err := t.store.RecentEventIDs(ctx, int(days))
		if err != nil {
			return fmt.Sprintf("Error: recent events: %v", err), nil
		}
		recent := make(map[string]bool, len(ids))
		for _, id := range ids {
			recent[id] = true
		}
		var kept []graph.ScoredNode
		for _, r := range results {
			if recent[r.Node.ID] {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	return formatScored(results), nil
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

func formatNodes(nodes []graph.Node, score *float64) string {
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = formatResultLine(n, score)
	}
	return strings.Join(lines, "\n")
}

func formatScored(results []graph.ScoredNode) string {
	lines := make([]string, len(results))
	for i, r := range results {
		score := r.Score
		lines[i] = formatResultLine(r.Node, &score)
	}
	return strings.Join(lines, "\n")
}

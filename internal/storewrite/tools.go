package storewrite

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/halcyon-ai/recall/pkg/graph"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
	"github.com/halcyon-ai/recall/pkg/types"
)

// toolDefinitions is the fixed storage tool vocabulary.
var toolDefinitions = []types.ToolDefinition{
	{
		Name:        "search_entity",
		Description: "Search for an entity node by name, returning its id for linking.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
	},
	{
		Name:        "search_facts",
		Description: "Search facts by query, for finding supersession targets.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}, "entity_id": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
	},
	{
		Name:        "store_memory",
		Description: "Write a new memory node.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":        map[string]any{"type": "string"},
				"subtype":     map[string]any{"type": "string"},
				"content":     map[string]any{"type": "string"},
				"entity_ids":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"edge_type":   map[string]any{"type": "string"},
				"salience":    map[string]any{"type": "number"},
				"source":      map[string]any{"type": "string"},
				"scope":       map[string]any{"type": "number"},
				"related_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"type", "content"},
		},
	},
	{
		Name:        "supersede_memory",
		Description: "Replace an existing node's content, preserving its relationships.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"old_id":      map[string]any{"type": "string"},
				"new_content": map[string]any{"type": "string"},
			},
			"required": []string{"old_id", "new_content"},
		},
	},
	{
		Name:        "done",
		Description: "Signal that storage is complete.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"stored_count": map[string]any{"type": "integer"}},
		},
	},
}

// StoredNode records one node the toolset wrote this run, so the caller can
// find which ones are instructions without re-querying the store.
type StoredNode struct {
	ID      string
	Type    graph.NodeType
	Content string
}

// toolset dispatches storage tool calls against the graph store and
// embedding provider, recording every store_memory call's resolved content
// (for the force-store coverage check) and every search_entity result (for
// entity-linking).
type toolset struct {
	store graph.Store
	embed embeddings.Provider

	storedContents []string
	storedNodes    []StoredNode
	searchedNames  map[string]string // lowercased name -> entity id
}

func newToolset(store graph.Store, embed embeddings.Provider) *toolset {
	return &toolset{store: store, embed: embed, searchedNames: map[string]string{}}
}

// dispatch executes name with args and returns the tool-handler result text.
func (t *toolset) dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "done":
		return "", nil

	case "search_entity":
		n, _ := args["name"].(string)
		nodes, err := t.store.SearchEntityByName(ctx, n)
		if err != nil {
			return fmt.Sprintf("Error: search_entity: %v", err), nil
		}
		for _, node := range nodes {
			t.searchedNames[strings.ToLower(node.Content)] = node.ID
		}
		return formatEntities(nodes), nil

	case "search_facts":
		query, _ := args["query"].(string)
		vec, err := t.embed.Embed(ctx, query)
		if err != nil {
			return fmt.Sprintf("Error: embed query: %v", err), nil
		}
		results, err := t.store.SearchSimilar(ctx, vec, 10, graph.VectorFilter{NodeTypes: []graph.NodeType{graph.NodeFact, graph.NodeOpinion}})
		if err != nil {
			return fmt.Sprintf("Error: search: %v", err), nil
		}
		var lines []string
		for _, r := range results {
			lines = append(lines, fmt.Sprintf("[%s] %s (id: %s)", r.Node.Type, r.Node.Content, r.Node.ID))
		}
		return strings.Join(lines, "\n"), nil

	case "store_memory":
		return t.storeMemory(ctx, args)

	case "supersede_memory":
		oldID, _ := args["old_id"].(string)
		newContent, _ := args["new_content"].(string)
		newID, err := t.store.SupersedeNode(ctx, oldID, newContent)
		if err != nil {
			return fmt.Sprintf("Error: supersede_memory: %v", err), nil
		}
		vec, err := t.embed.Embed(ctx, newContent)
		if err != nil {
			return fmt.Sprintf("Error: embed superseding content: %v", err), nil
		}
		if err := t.store.PutEmbedding(ctx, graph.Embedding{NodeID: newID, Vector: vec}); err != nil {
			return fmt.Sprintf("Error: store embedding: %v", err), nil
		}
		t.storedContents = append(t.storedContents, newContent)
		t.storedNodes = append(t.storedNodes, StoredNode{ID: newID, Content: newContent})
		return fmt.Sprintf("superseded %s with %s", oldID, newID), nil

	default:
		return fmt.Sprintf("Error: unknown tool %q", name), nil
	}
}

// storeMemory rewrites the dispatch shim's type aliases, creates the node,
// links entity_ids/related_ids, and writes the embedding.
func (t *toolset) storeMemory(ctx context.Context, args map[string]any) (string, error) {
	typ, _ := args["type"].(string)
	subtype, _ := args["subtype"].(string)
	content, _ := args["content"].(string)

	typ, subtype = applyDispatchShim(typ, subtype)

	nodeType := graph.NodeType(typ)
	source := graph.SourceUser
	if s, _ := args["source"].(string); s == string(graph.SourceAssistant) {
		source = graph.SourceAssistant
	}

	n := graph.NewNode(nodeType, subtype, content, source)
	if sal, ok := numericArg(args["salience"]); ok {
		n.Salience = sal
	}
	if scope, ok := numericArg(args["scope"]); ok {
		n.Scope = &scope
	}

	id, err := t.store.CreateNode(ctx, n)
	if err != nil {
		return fmt.Sprintf("Error: store_memory: create node: %v", err), nil
	}

	vec, err := t.embed.Embed(ctx, content)
	if err != nil {
		return fmt.Sprintf("Error: store_memory: embed: %v", err), nil
	}
	if err := t.store.PutEmbedding(ctx, graph.Embedding{NodeID: id, Type: nodeType, Vector: vec}); err != nil {
		return fmt.Sprintf("Error: store_memory: put embedding: %v", err), nil
	}

	edgeType, _ := args["edge_type"].(string)
	if edgeType == "" {
		edgeType = graph.EdgeAbout
	}
	for _, entityID := range stringSliceArg(args["entity_ids"]) {
		if _, err := t.store.CreateEdge(ctx, graph.Edge{SourceID: id, TargetID: entityID, EdgeType: edgeType}); err != nil {
			return fmt.Sprintf("Error: store_memory: create edge: %v", err), nil
		}
	}
	for _, relatedID := range stringSliceArg(args["related_ids"]) {
		if _, err := t.store.CreateEdge(ctx, graph.Edge{SourceID: id, TargetID: relatedID, EdgeType: graph.EdgeSeeAlso}); err != nil {
			return fmt.Sprintf("Error: store_memory: create see_also edge: %v", err), nil
		}
	}

	t.storedContents = append(t.storedContents, content)
	t.storedNodes = append(t.storedNodes, StoredNode{ID: id, Type: nodeType, Content: content})
	return fmt.Sprintf("stored %s (id: %s)", typ, id), nil
}

// applyDispatchShim rewrites the storage tool's type/subtype vocabulary onto
// the graph's canonical node types: tool_usage/process become instruction
// with that subtype, preference becomes opinion, rule becomes
// instruction/rule.
func applyDispatchShim(typ, subtype string) (string, string) {
	switch typ {
	case "tool_usage", "process":
		return string(graph.NodeInstruction), typ
	case "preference":
		return string(graph.NodeOpinion), subtype
	case "rule":
		return string(graph.NodeInstruction), "rule"
	default:
		return typ, subtype
	}
}

func numericArg(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func stringSliceArg(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func formatEntities(nodes []graph.Node) string {
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = fmt.Sprintf("[%s/%s] %s (id: %s)", n.Type, n.Subtype, n.Content, n.ID)
	}
	return strings.Join(lines, "\n")
}

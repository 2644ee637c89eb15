package reconcile

import (
	"context"
	"sort"
	"strings"

	"github.com/halcyon-ai/recall/pkg/graph"
)

// fakeCosine is a small local cosine similarity helper for this package's
// tests only; the real implementations live in internal/store/sqlite and
// internal/retrieve.
func fakeCosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (sqrtApprox(na) * sqrtApprox(nb))
}

func sqrtApprox(f float64) float64 {
	if f == 0 {
		return 0
	}
	x := f
	for i := 0; i < 40; i++ {
		x = 0.5 * (x + f/x)
	}
	return x
}

// fakeStore is a minimal in-memory graph.Store double for reconcile package
// tests. It implements only the behavior exercised by this package's tests,
// not the full semantics (e.g. FactsByEntity always returns nothing).
type fakeStore struct {
	nodes      map[string]graph.Node
	edges      []graph.Edge
	embeddings map[string][]float32
}

func newFakeStore() *fakeStore {
	return &fakeStore{nodes: map[string]graph.Node{}, embeddings: map[string][]float32{}}
}

func (f *fakeStore) addNode(n graph.Node) graph.Node {
	f.nodes[n.ID] = n
	return n
}

func (f *fakeStore) addEdge(e graph.Edge) {
	f.edges = append(f.edges, e)
}

func (f *fakeStore) CreateNode(ctx context.Context, n graph.Node) (string, error) {
	f.nodes[n.ID] = n
	return n.ID, nil
}

func (f *fakeStore) CreateEdge(ctx context.Context, e graph.Edge) (string, error) {
	f.edges = append(f.edges, e)
	return e.ID, nil
}

func (f *fakeStore) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (f *fakeStore) DeleteNode(ctx context.Context, id string) error {
	delete(f.nodes, id)
	delete(f.embeddings, id)
	return nil
}

func (f *fakeStore) SupersedeNode(ctx context.Context, old string, newContent string) (string, error) {
	oldNode, ok := f.nodes[old]
	if !ok {
		return "", nil
	}
	newNode := graph.NewNode(oldNode.Type, oldNode.Subtype, newContent, oldNode.Source)
	newNode.ID = old + "-superseded"
	f.nodes[newNode.ID] = newNode
	oldNode.SupersededBy = &newNode.ID
	f.nodes[old] = oldNode
	return newNode.ID, nil
}

func (f *fakeStore) PromotePlanToEvent(ctx context.Context, id string) error {
	n := f.nodes[id]
	n.Type = graph.NodeEvent
	n.Subtype = graph.SubtypeCompletedPlan
	f.nodes[id] = n
	return nil
}

func (f *fakeStore) PutEmbedding(ctx context.Context, e graph.Embedding) error {
	f.embeddings[e.NodeID] = e.Vector
	return nil
}

func (f *fakeStore) GetEmbedding(ctx context.Context, nodeID string) ([]float32, error) {
	return f.embeddings[nodeID], nil
}

func (f *fakeStore) SearchSimilar(ctx context.Context, queryVec []float32, topK int, filter graph.VectorFilter) ([]graph.ScoredNode, error) {
	var out []graph.ScoredNode
	for id, n := range f.nodes {
		if n.IsSuperseded() {
			continue
		}
		if filter.NodeType != "" && n.Type != filter.NodeType {
			continue
		}
		if len(filter.NodeTypes) > 0 && !containsNodeType(filter.NodeTypes, n.Type) {
			continue
		}
		vec := f.embeddings[id]
		out = append(out, graph.ScoredNode{Node: n, Score: fakeCosine(queryVec, vec)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func containsNodeType(types []graph.NodeType, t graph.NodeType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func (f *fakeStore) Relationships(ctx context.Context, id string) ([]graph.Relationship, error) {
	var out []graph.Relationship
	for _, e := range f.edges {
		if e.SourceID == id {
			if other, ok := f.nodes[e.TargetID]; ok && !other.IsSuperseded() {
				out = append(out, graph.Relationship{Edge: e, Other: other, Outgoing: true})
			}
		} else if e.TargetID == id {
			if other, ok := f.nodes[e.SourceID]; ok && !other.IsSuperseded() {
				out = append(out, graph.Relationship{Edge: e, Other: other, Outgoing: false})
			}
		}
	}
	return out, nil
}

func (f *fakeStore) FactsByEntity(ctx context.Context, entityID string) ([]graph.Node, error) {
	return nil, nil
}

func (f *fakeStore) EventsByEntity(ctx context.Context, entityID string, days int) ([]graph.Node, error) {
	return nil, nil
}

func (f *fakeStore) RecentEventIDs(ctx context.Context, days int) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) Instructions(ctx context.Context, topic string) ([]graph.Node, error) {
	return nil, nil
}

func (f *fakeStore) GlobalInstructions(ctx context.Context) ([]graph.Node, error) {
	var out []graph.Node
	for _, n := range f.nodes {
		if n.Type == graph.NodeInstruction && n.Scope != nil && *n.Scope >= 0.8 && !n.IsSuperseded() {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) InstructionsByEntity(ctx context.Context, entityID string) ([]graph.Node, error) {
	return nil, nil
}

func (f *fakeStore) SearchEntityByName(ctx context.Context, name string) ([]graph.Node, error) {
	var out []graph.Node
	lname := strings.ToLower(name)
	for _, n := range f.nodes {
		if n.Type == graph.NodeEntity && strings.Contains(strings.ToLower(n.Content), lname) && !n.IsSuperseded() {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) Neighbors(ctx context.Context, id string, maxHops int, opts ...graph.TraverseOpt) ([]graph.Node, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

var _ graph.Store = (*fakeStore)(nil)

package graph

import "context"

// Store is the contract a durable graph backend must satisfy: a
// single-writer, multi-reader logical model persisted durably, exposing
// typed node/edge/embedding CRUD plus the fixed query set the retrieval and
// storage pipelines rely on.
//
// Implementations must exclude superseded nodes from every query result
// unless the method explicitly documents otherwise, and must delete a
// node's incident edges and embedding when the node itself is deleted.
type Store interface {
	// CreateNode inserts n and returns the id it was assigned (or n.ID if it
	// was already populated by the caller).
	CreateNode(ctx context.Context, n Node) (string, error)

	// CreateEdge inserts e and returns its assigned id.
	CreateEdge(ctx context.Context, e Edge) (string, error)

	// GetNode returns the node with the given id, or nil if it does not exist.
	// Unlike query methods, GetNode does not filter out superseded nodes —
	// callers that need the live view check IsSuperseded themselves.
	GetNode(ctx context.Context, id string) (*Node, error)

	// DeleteNode deletes id's incident edges, its embedding row, then the
	// node itself.
	DeleteNode(ctx context.Context, id string) error

	// SupersedeNode creates a new node carrying newContent in place of old,
	// copies old's incident edges to the new node (each original edge id
	// copied at most once), and sets old.SupersededBy to the new node's id.
	// Returns the new node's id.
	SupersedeNode(ctx context.Context, old string, newContent string) (string, error)

	// PromoteePlanToEvent rewrites a plan node to type event, subtype
	// completed_plan, in place: same id, updated node_type in both the node
	// row and its embedding row.
	PromotePlanToEvent(ctx context.Context, id string) error

	// PutEmbedding upserts the embedding for e.NodeID.
	PutEmbedding(ctx context.Context, e Embedding) error

	// GetEmbedding returns the raw vector stored for nodeID, or nil if none exists.
	GetEmbedding(ctx context.Context, nodeID string) ([]float32, error)

	// SearchSimilar returns the topK nodes by cosine similarity to queryVec,
	// honoring filter, always excluding superseded nodes.
	SearchSimilar(ctx context.Context, queryVec []float32, topK int, filter VectorFilter) ([]ScoredNode, error)

	// Relationships returns every edge where id is the source or the target,
	// joined with the node on the far side, excluding edges whose far-side
	// node is superseded.
	Relationships(ctx context.Context, id string) ([]Relationship, error)

	// FactsByEntity returns distinct fact and opinion nodes linked by any
	// edge to entityID, not superseded, sorted by salience descending.
	FactsByEntity(ctx context.Context, entityID string) ([]Node, error)

	// EventsByEntity returns event nodes linked to entityID, not superseded.
	// If days > 0, results are additionally restricted to the recency window.
	EventsByEntity(ctx context.Context, entityID string, days int) ([]Node, error)

	// RecentEventIDs returns event ids created within the last days days.
	RecentEventIDs(ctx context.Context, days int) ([]string, error)

	// Instructions returns non-superseded instruction nodes. When topic is
	// empty, results are sorted by salience descending. Otherwise topic is
	// split into stemmed words and results are filtered to at least one
	// match, sorted by match score descending then salience descending.
	Instructions(ctx context.Context, topic string) ([]Node, error)

	// GlobalInstructions returns non-superseded instructions with scope >= 0.8.
	GlobalInstructions(ctx context.Context) ([]Node, error)

	// InstructionsByEntity returns instructions linked by any edge to
	// entityID, sorted by scope descending then salience descending.
	InstructionsByEntity(ctx context.Context, entityID string) ([]Node, error)

	// SearchEntityByName returns non-superseded entity nodes whose content
	// matches name (case-insensitive substring), used by the tool-loop's
	// search_entity tool.
	SearchEntityByName(ctx context.Context, name string) ([]Node, error)

	// Neighbors returns the nodes reachable from id within maxHops hops,
	// honoring the supplied traversal options.
	Neighbors(ctx context.Context, id string, maxHops int, opts ...TraverseOpt) ([]Node, error)

	// Close releases the store's underlying resources.
	Close() error
}

// traversalOptions accumulates the effect of TraverseOpt values.
type traversalOptions struct {
	relTypes  []string
	nodeTypes []NodeType
	maxNodes  int
}

// TraverseOpt narrows a [Store.Neighbors] call.
type TraverseOpt func(*traversalOptions)

// TraverseRelTypes restricts traversal to edges of the given types.
func TraverseRelTypes(types ...string) TraverseOpt {
	return func(o *traversalOptions) { o.relTypes = types }
}

// TraverseNodeTypes restricts the returned nodes to the given node types.
func TraverseNodeTypes(types ...NodeType) TraverseOpt {
	return func(o *traversalOptions) { o.nodeTypes = types }
}

// TraverseMaxNodes caps the number of nodes Neighbors returns.
func TraverseMaxNodes(n int) TraverseOpt {
	return func(o *traversalOptions) { o.maxNodes = n }
}

// ResolveTraverseOpts applies opts to a zero-valued traversalOptions and
// returns it. Exported for use by Store implementations outside this package.
func ResolveTraverseOpts(opts ...TraverseOpt) (relTypes []string, nodeTypes []NodeType, maxNodes int) {
	var o traversalOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.relTypes, o.nodeTypes, o.maxNodes
}

// Package graph defines the typed memory graph: nodes, edges, and embeddings,
// plus the [Store] contract that the durable backend must satisfy.
package graph

import "time"

// NodeType enumerates the six kinds of node the graph store persists.
type NodeType string

const (
	NodeEntity      NodeType = "entity"
	NodeFact        NodeType = "fact"
	NodeEvent       NodeType = "event"
	NodeOpinion     NodeType = "opinion"
	NodeInstruction NodeType = "instruction"
	NodePlan        NodeType = "plan"
)

// Conventional subtypes, documented here for reference; the column itself is
// a free string so new subtypes need no migration.
const (
	SubtypePerson     = "person"
	SubtypeOrg        = "org"
	SubtypeProject    = "project"
	SubtypeTool       = "tool"
	SubtypePlace      = "place"
	SubtypeDocument   = "document"
	SubtypeConcept    = "concept"
	SubtypeAccount    = "account"
	SubtypeCompletedPlan = "completed_plan"
)

// Source identifies who uttered the content a node records.
type Source string

const (
	SourceUser      Source = "user"
	SourceAssistant Source = "assistant"
)

// Node is a single row in the typed memory graph.
type Node struct {
	ID      string
	Type    NodeType
	Subtype string
	Content string

	Salience   float64
	Confidence float64
	Source     Source

	CreatedAt time.Time
	ValidFrom *time.Time
	ValidUntil *time.Time

	// SupersededBy holds the id of the node that replaced this one, if any.
	// A non-nil value means the node is excluded from normal reads.
	SupersededBy *string

	Attributes map[string]any

	// CanSummarize is forced false for instruction nodes.
	CanSummarize bool

	// Scope is required for instructions (default 0.5), defaults to 0.3 for
	// plans, and is nil for every other node type.
	Scope *float64
}

// NewNode builds a Node with the defaults mandated by the data model:
// salience 1.0, confidence 1.0, can_summarize true unless it is an
// instruction, and the type-appropriate scope default.
func NewNode(typ NodeType, subtype, content string, source Source) Node {
	n := Node{
		Type:         typ,
		Subtype:      subtype,
		Content:      content,
		Salience:     1.0,
		Confidence:   1.0,
		Source:       source,
		CreatedAt:    time.Now().UTC(),
		Attributes:   map[string]any{},
		CanSummarize: typ != NodeInstruction,
	}
	switch typ {
	case NodeInstruction:
		s := 0.5
		n.Scope = &s
	case NodePlan:
		s := 0.3
		n.Scope = &s
	}
	return n
}

// IsSuperseded reports whether this node has been replaced and should be
// excluded from normal reads.
func (n Node) IsSuperseded() bool { return n.SupersededBy != nil }

// Edge is a typed, directed relationship between two nodes.
type Edge struct {
	ID         string
	SourceID   string
	TargetID   string
	EdgeType   string
	Attributes map[string]any
	CreatedAt  time.Time
}

// Conventional edge types.
const (
	EdgeAbout          = "about"
	EdgeHasRole        = "has_role"
	EdgeWorksFor       = "works_for"
	EdgeManages        = "manages"
	EdgeWritesFor      = "writes_for"
	EdgeClientOf       = "client_of"
	EdgeUsedBy         = "used_by"
	EdgeSeeAlso        = "see_also"
	EdgeHasInstruction = "has_instruction"
)

// Embedding is a fixed-dimension vector associated with exactly one node,
// stored as raw little-endian float32 bytes on disk.
type Embedding struct {
	NodeID string
	Type   NodeType
	Vector []float32
}

// ScoredNode pairs a node with a relevance score, typically a cosine
// similarity or a deterministic match score.
type ScoredNode struct {
	Node  Node
	Score float64
}

// Relationship is an edge joined with the node on the far side, as returned
// by [Store.Relationships].
type Relationship struct {
	Edge    Edge
	Other   Node
	// Outgoing is true when Node is the source of Edge (i.e. Other is the target).
	Outgoing bool
}

// VectorFilter narrows a similarity search to a subset of the graph.
type VectorFilter struct {
	NodeType  NodeType
	NodeTypes []NodeType
	NodeIDs   []string
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-ai/recall/pkg/graph"
)

// Store implements graph.Store on a single SQLite file.
type Store struct {
	db *sql.DB
}

// New wraps an already-migrated *sql.DB. Most callers should use [OpenStore]
// instead, which also runs migrations.
func New(db *sql.DB) *Store { return &Store{db: db} }

// OpenStore opens (creating if necessary) a graph store file at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func (s *Store) Close() error { return s.db.Close() }

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseOptionalDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s.String)
	if err != nil {
		// Also accept a full timestamp for forward compatibility.
		if t2, err2 := parseTime(s.String); err2 == nil {
			return &t2, nil
		}
		return nil, err
	}
	return &t, nil
}

func formatOptionalDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format("2006-01-02"), Valid: true}
}

// CreateNode implements [graph.Store].
func (s *Store) CreateNode(ctx context.Context, n graph.Node) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	attrs, err := json.Marshal(n.Attributes)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal attributes for node %q: %w", n.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO nodes (id, node_type, subtype, content, salience, confidence, source, created_at, valid_from, valid_until, superseded_by, attributes, can_summarize, scope)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Type), n.Subtype, n.Content, n.Salience, n.Confidence, string(n.Source),
		formatTime(n.CreatedAt), formatOptionalDate(n.ValidFrom), formatOptionalDate(n.ValidUntil),
		n.SupersededBy, string(attrs), boolToInt(n.CanSummarize), n.Scope,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: create node: %w", err)
	}
	return n.ID, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateEdge implements [graph.Store].
func (s *Store) CreateEdge(ctx context.Context, e graph.Edge) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal edge attributes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO edges (id, source_id, target_id, edge_type, attributes, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SourceID, e.TargetID, e.EdgeType, string(attrs), formatTime(e.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: create edge: %w", err)
	}
	return e.ID, nil
}

const nodeColumns = `id, node_type, subtype, content, salience, confidence, source, created_at, valid_from, valid_until, superseded_by, attributes, can_summarize, scope`

func scanNode(row interface{ Scan(...any) error }) (graph.Node, error) {
	var (
		n                              graph.Node
		typ, source                    string
		createdAt                      string
		validFrom, validUntil          sql.NullString
		supersededBy                   sql.NullString
		attrsRaw                       string
		canSummarize                   int
		scope                          sql.NullFloat64
	)
	if err := row.Scan(&n.ID, &typ, &n.Subtype, &n.Content, &n.Salience, &n.Confidence, &source,
		&createdAt, &validFrom, &validUntil, &supersededBy, &attrsRaw, &canSummarize, &scope); err != nil {
		return graph.Node{}, err
	}
	n.Type = graph.NodeType(typ)
	n.Source = graph.Source(source)
	ts, err := parseTime(createdAt)
	if err != nil {
		return graph.Node{}, fmt.Errorf("sqlite: parse created_at: %w", err)
	}
	n.CreatedAt = ts
	if vf, err := parseOptionalDate(validFrom); err == nil {
		n.ValidFrom = vf
	}
	if vu, err := parseOptionalDate(validUntil); err == nil {
		n.ValidUntil = vu
	}
	if supersededBy.Valid {
		v := supersededBy.String
		n.SupersededBy = &v
	}
	n.Attributes = map[string]any{}
	if attrsRaw != "" {
		_ = json.Unmarshal([]byte(attrsRaw), &n.Attributes)
	}
	n.CanSummarize = canSummarize != 0
	if scope.Valid {
		v := scope.Float64
		n.Scope = &v
	}
	return n, nil
}

// GetNode implements [graph.Store].
func (s *Store) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get node %q: %w", id, err)
	}
	return &n, nil
}

// DeleteNode implements [graph.Store]: deletes incident edges, the
// embedding row, then the node itself.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin delete node tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return fmt.Errorf("sqlite: delete edges for node %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE node_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete embedding for node %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete node %q: %w", id, err)
	}
	return tx.Commit()
}

// SupersedeNode implements [graph.Store]. It creates a new node carrying
// newContent, copies old's incident edges to the new node (deduplicated by
// original edge id, each copied once), writes the new node's embedding using
// old's vector as a placeholder if none is supplied later by the caller, and
// sets old.SupersededBy.
func (s *Store) SupersedeNode(ctx context.Context, old string, newContent string) (string, error) {
	oldNode, err := s.GetNode(ctx, old)
	if err != nil {
		return "", err
	}
	if oldNode == nil {
		return "", fmt.Errorf("sqlite: supersede: node %q not found", old)
	}

	newNode := graph.NewNode(oldNode.Type, oldNode.Subtype, newContent, oldNode.Source)
	newNode.Salience = oldNode.Salience
	newNode.Scope = oldNode.Scope

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite: begin supersede tx: %w", err)
	}
	defer tx.Rollback()

	newID := uuid.NewString()
	newNode.ID = newID
	attrs, _ := json.Marshal(newNode.Attributes)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO nodes (id, node_type, subtype, content, salience, confidence, source, created_at, valid_from, valid_until, superseded_by, attributes, can_summarize, scope)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
		newNode.ID, string(newNode.Type), newNode.Subtype, newNode.Content, newNode.Salience, newNode.Confidence,
		string(newNode.Source), formatTime(newNode.CreatedAt), formatOptionalDate(newNode.ValidFrom),
		formatOptionalDate(newNode.ValidUntil), string(attrs), boolToInt(newNode.CanSummarize), newNode.Scope,
	); err != nil {
		return "", fmt.Errorf("sqlite: insert superseding node: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, source_id, target_id, edge_type, attributes, created_at FROM edges WHERE source_id = ? OR target_id = ?`, old, old)
	if err != nil {
		return "", fmt.Errorf("sqlite: query edges of %q: %w", old, err)
	}
	type edgeCopy struct {
		sourceID, targetID, edgeType, attrs, createdAt string
	}
	var copies []edgeCopy
	seen := map[string]bool{}
	for rows.Next() {
		var id, srcID, tgtID, edgeType, attrsRaw, createdAt string
		if err := rows.Scan(&id, &srcID, &tgtID, &edgeType, &attrsRaw, &createdAt); err != nil {
			rows.Close()
			return "", fmt.Errorf("sqlite: scan edge: %w", err)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if srcID == old {
			srcID = newID
		}
		if tgtID == old {
			tgtID = newID
		}
		copies = append(copies, edgeCopy{srcID, tgtID, edgeType, attrsRaw, createdAt})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("sqlite: iterate edges of %q: %w", old, err)
	}

	for _, c := range copies {
		if _, err := tx.ExecContext(ctx, `INSERT INTO edges (id, source_id, target_id, edge_type, attributes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), c.sourceID, c.targetID, c.edgeType, c.attrs, c.createdAt); err != nil {
			return "", fmt.Errorf("sqlite: copy edge onto %q: %w", newID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE nodes SET superseded_by = ? WHERE id = ?`, newID, old); err != nil {
		return "", fmt.Errorf("sqlite: mark %q superseded: %w", old, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlite: commit supersede: %w", err)
	}
	return newID, nil
}

// PromotePlanToEvent implements [graph.Store]: rewrites a plan node to type
// event/completed_plan in place, keeping its id, and updates the embedding's
// node_type column to match.
func (s *Store) PromotePlanToEvent(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin promote tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE nodes SET node_type = ?, subtype = ? WHERE id = ? AND node_type = ?`,
		string(graph.NodeEvent), graph.SubtypeCompletedPlan, id, string(graph.NodePlan))
	if err != nil {
		return fmt.Errorf("sqlite: promote node %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: promote node %q rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: promote node %q: not found or not a plan", id)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE embeddings SET node_type = ? WHERE node_id = ?`, string(graph.NodeEvent), id); err != nil {
		return fmt.Errorf("sqlite: update embedding node_type for %q: %w", id, err)
	}
	return tx.Commit()
}

// PutEmbedding implements [graph.Store].
func (s *Store) PutEmbedding(ctx context.Context, e graph.Embedding) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO embeddings (node_id, node_type, vector) VALUES (?, ?, ?)
ON CONFLICT(node_id) DO UPDATE SET node_type = excluded.node_type, vector = excluded.vector`,
		e.NodeID, string(e.Type), encodeVector(e.Vector),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put embedding for %q: %w", e.NodeID, err)
	}
	return nil
}

// GetEmbedding implements [graph.Store].
func (s *Store) GetEmbedding(ctx context.Context, nodeID string) ([]float32, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT vector FROM embeddings WHERE node_id = ?`, nodeID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get embedding for %q: %w", nodeID, err)
	}
	return decodeVector(raw), nil
}

// SearchSimilar implements [graph.Store]. The index is a flat table scan by
// design at this scale, not an ANN structure.
func (s *Store) SearchSimilar(ctx context.Context, queryVec []float32, topK int, filter graph.VectorFilter) ([]graph.ScoredNode, error) {
	query := `SELECT e.node_id, e.vector FROM embeddings e JOIN nodes n ON n.id = e.node_id WHERE n.superseded_by IS NULL`
	var args []any

	switch {
	case filter.NodeType != "":
		query += ` AND e.node_type = ?`
		args = append(args, string(filter.NodeType))
	case len(filter.NodeTypes) > 0:
		query += ` AND e.node_type IN (` + placeholders(len(filter.NodeTypes)) + `)`
		for _, t := range filter.NodeTypes {
			args = append(args, string(t))
		}
	}
	if len(filter.NodeIDs) > 0 {
		query += ` AND e.node_id IN (` + placeholders(len(filter.NodeIDs)) + `)`
		for _, id := range filter.NodeIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search similar: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		id    string
		score float64
	}
	var candidates []candidate
	for rows.Next() {
		var nodeID string
		var raw []byte
		if err := rows.Scan(&nodeID, &raw); err != nil {
			return nil, fmt.Errorf("sqlite: scan embedding: %w", err)
		}
		candidates = append(candidates, candidate{nodeID, cosine(queryVec, decodeVector(raw))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate embeddings: %w", err)
	}

	sortByScoreDesc(candidates, func(c candidate) float64 { return c.score })
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]graph.ScoredNode, 0, len(candidates))
	for _, c := range candidates {
		n, err := s.GetNode(ctx, c.id)
		if err != nil || n == nil || n.IsSuperseded() {
			continue
		}
		out = append(out, graph.ScoredNode{Node: *n, Score: c.score})
	}
	return out, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// sortByScoreDesc is a tiny insertion-free helper kept local to avoid
// pulling in a generic sort dependency for a single call site.
func sortByScoreDesc[T any](items []T, score func(T) float64) {
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && score(items[j-1]) < score(items[j]) {
			items[j-1], items[j] = items[j], items[j-1]
			j--
		}
	}
}

// Relationships implements [graph.Store].
func (s *Store) Relationships(ctx context.Context, id string) ([]graph.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, source_id, target_id, edge_type, attributes, created_at
FROM edges WHERE source_id = ? OR target_id = ?`, id, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: relationships of %q: %w", id, err)
	}
	defer rows.Close()

	var out []graph.Relationship
	for rows.Next() {
		var e graph.Edge
		var attrsRaw, createdAt string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.EdgeType, &attrsRaw, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan relationship edge: %w", err)
		}
		e.Attributes = map[string]any{}
		_ = json.Unmarshal([]byte(attrsRaw), &e.Attributes)
		if ts, err := parseTime(createdAt); err == nil {
			e.CreatedAt = ts
		}

		outgoing := e.SourceID == id
		farSideID := e.TargetID
		if !outgoing {
			farSideID = e.SourceID
		}
		other, err := s.GetNode(ctx, farSideID)
		if err != nil || other == nil || other.IsSuperseded() {
			continue
		}
		out = append(out, graph.Relationship{Edge: e, Other: *other, Outgoing: outgoing})
	}
	return out, rows.Err()
}

// FactsByEntity implements [graph.Store].
func (s *Store) FactsByEntity(ctx context.Context, entityID string) ([]graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT `+prefixColumns("n")+`
FROM nodes n
JOIN edges e ON (e.source_id = n.id OR e.target_id = n.id)
WHERE (e.source_id = ? OR e.target_id = ?)
  AND n.id != ?
  AND n.node_type IN (?, ?)
  AND n.superseded_by IS NULL
ORDER BY n.salience DESC`,
		entityID, entityID, entityID, string(graph.NodeFact), string(graph.NodeOpinion))
	if err != nil {
		return nil, fmt.Errorf("sqlite: facts by entity %q: %w", entityID, err)
	}
	return scanNodes(rows)
}

// EventsByEntity implements [graph.Store].
func (s *Store) EventsByEntity(ctx context.Context, entityID string, days int) ([]graph.Node, error) {
	query := `
SELECT DISTINCT ` + prefixColumns("n") + `
FROM nodes n
JOIN edges e ON (e.source_id = n.id OR e.target_id = n.id)
WHERE (e.source_id = ? OR e.target_id = ?)
  AND n.id != ?
  AND n.node_type = ?
  AND n.superseded_by IS NULL`
	args := []any{entityID, entityID, entityID, string(graph.NodeEvent)}
	if days > 0 {
		query += ` AND n.created_at >= ?`
		args = append(args, formatTime(time.Now().UTC().AddDate(0, 0, -days)))
	}
	query += ` ORDER BY n.salience DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: events by entity %q: %w", entityID, err)
	}
	return scanNodes(rows)
}

// RecentEventIDs implements [graph.Store].
func (s *Store) RecentEventIDs(ctx context.Context, days int) ([]string, error) {
	cutoff := formatTime(time.Now().UTC().AddDate(0, 0, -days))
	rows, err := s.db.QueryContext(ctx, `
SELECT id FROM nodes WHERE node_type = ? AND superseded_by IS NULL AND created_at >= ?`,
		string(graph.NodeEvent), cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent event ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Instructions implements [graph.Store], including the stemmed-match-score
// ranking when topic is non-empty.
func (s *Store) Instructions(ctx context.Context, topic string) ([]graph.Node, error) {
	if topic == "" {
		rows, err := s.db.QueryContext(ctx, `
SELECT `+nodeColumns+` FROM nodes WHERE node_type = ? AND superseded_by IS NULL ORDER BY salience DESC`,
			string(graph.NodeInstruction))
		if err != nil {
			return nil, fmt.Errorf("sqlite: instructions: %w", err)
		}
		return scanNodes(rows)
	}

	stems := stemTopic(topic)
	if len(stems) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+nodeColumns+` FROM nodes WHERE node_type = ? AND superseded_by IS NULL`,
		string(graph.NodeInstruction))
	if err != nil {
		return nil, fmt.Errorf("sqlite: instructions scan: %w", err)
	}
	all, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}

	type scored struct {
		node  graph.Node
		score int
	}
	var matches []scored
	for _, n := range all {
		lower := strings.ToLower(n.Content)
		score := 0
		for _, stem := range stems {
			if strings.Contains(lower, stem) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{n, score})
		}
	}
	for i := 1; i < len(matches); i++ {
		j := i
		for j > 0 && (matches[j-1].score < matches[j].score ||
			(matches[j-1].score == matches[j].score && matches[j-1].node.Salience < matches[j].node.Salience)) {
			matches[j-1], matches[j] = matches[j], matches[j-1]
			j--
		}
	}
	out := make([]graph.Node, len(matches))
	for i, m := range matches {
		out[i] = m.node
	}
	return out, nil
}

// GlobalInstructions implements [graph.Store].
func (s *Store) GlobalInstructions(ctx context.Context) ([]graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+nodeColumns+` FROM nodes WHERE node_type = ? AND superseded_by IS NULL AND scope >= 0.8`,
		string(graph.NodeInstruction))
	if err != nil {
		return nil, fmt.Errorf("sqlite: global instructions: %w", err)
	}
	return scanNodes(rows)
}

// InstructionsByEntity implements [graph.Store].
func (s *Store) InstructionsByEntity(ctx context.Context, entityID string) ([]graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT `+prefixColumns("n")+`
FROM nodes n
JOIN edges e ON (e.source_id = n.id OR e.target_id = n.id)
WHERE (e.source_id = ? OR e.target_id = ?)
  AND n.id != ?
  AND n.node_type = ?
  AND n.superseded_by IS NULL
ORDER BY n.scope DESC, n.salience DESC`,
		entityID, entityID, entityID, string(graph.NodeInstruction))
	if err != nil {
		return nil, fmt.Errorf("sqlite: instructions by entity %q: %w", entityID, err)
	}
	return scanNodes(rows)
}

// SearchEntityByName implements [graph.Store].
func (s *Store) SearchEntityByName(ctx context.Context, name string) ([]graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+nodeColumns+` FROM nodes
WHERE node_type = ? AND superseded_by IS NULL AND content LIKE ? COLLATE NOCASE`,
		string(graph.NodeEntity), "%"+name+"%")
	if err != nil {
		return nil, fmt.Errorf("sqlite: search entity %q: %w", name, err)
	}
	return scanNodes(rows)
}

// Neighbors implements [graph.Store] with a breadth-first walk bounded by
// maxHops and the supplied traversal options.
func (s *Store) Neighbors(ctx context.Context, id string, maxHops int, opts ...graph.TraverseOpt) ([]graph.Node, error) {
	relTypes, nodeTypes, maxNodes := graph.ResolveTraverseOpts(opts...)

	visited := map[string]bool{id: true}
	frontier := []string{id}
	var out []graph.Node

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, cur := range frontier {
			rels, err := s.Relationships(ctx, cur)
			if err != nil {
				return nil, err
			}
			for _, r := range rels {
				if len(relTypes) > 0 && !contains(relTypes, r.Edge.EdgeType) {
					continue
				}
				if visited[r.Other.ID] {
					continue
				}
				visited[r.Other.ID] = true
				if len(nodeTypes) > 0 && !containsType(nodeTypes, r.Other.Type) {
					continue
				}
				out = append(out, r.Other)
				next = append(next, r.Other.ID)
				if maxNodes > 0 && len(out) >= maxNodes {
					return out, nil
				}
			}
		}
		frontier = next
	}
	return out, nil
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsType(s []graph.NodeType, v graph.NodeType) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func prefixColumns(alias string) string {
	cols := strings.Split(nodeColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func scanNodes(rows *sql.Rows) ([]graph.Node, error) {
	defer rows.Close()
	var out []graph.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan node row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Package sqlite implements graph.Store on top of a single SQLite file,
// chosen for its portability and WAL-friendly durability at this scale
// (spec mandates a single portable file, not a live ANN-indexed server).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type migration struct {
	version     int
	description string
	stmt        string
}

// migrations is the forward-only, additive migration log. Each entry is
// attempted once per startup and is tolerant of re-application so that
// concurrent startups racing on the same file do not fail.
var migrations = []migration{
	{1, "create nodes table", `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	node_type TEXT NOT NULL,
	subtype TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	salience REAL NOT NULL DEFAULT 1.0,
	confidence REAL NOT NULL DEFAULT 1.0,
	source TEXT NOT NULL,
	created_at TEXT NOT NULL,
	valid_from TEXT,
	valid_until TEXT,
	superseded_by TEXT,
	attributes TEXT NOT NULL DEFAULT '{}',
	can_summarize INTEGER NOT NULL DEFAULT 1,
	scope REAL
)`},
	{2, "create node indexes", `
CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type);
CREATE INDEX IF NOT EXISTS idx_nodes_superseded ON nodes(superseded_by);
CREATE INDEX IF NOT EXISTS idx_nodes_created_at ON nodes(created_at);
CREATE INDEX IF NOT EXISTS idx_nodes_scope ON nodes(scope);
`},
	{3, "create edges table", `
CREATE TABLE IF NOT EXISTS edges (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	edge_type TEXT NOT NULL,
	attributes TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	FOREIGN KEY (source_id) REFERENCES nodes(id),
	FOREIGN KEY (target_id) REFERENCES nodes(id)
)`},
	{4, "create edge indexes", `
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
`},
	{5, "create embeddings table", `
CREATE TABLE IF NOT EXISTS embeddings (
	node_id TEXT PRIMARY KEY,
	node_type TEXT NOT NULL,
	vector BLOB NOT NULL,
	FOREIGN KEY (node_id) REFERENCES nodes(id)
)`},
	{6, "create embeddings type index", `
CREATE INDEX IF NOT EXISTS idx_embeddings_type ON embeddings(node_type);
`},
}

// Migrate runs every migration not yet recorded in schema_migrations,
// recording each on success. Migrations are idempotent: a failure leaves
// schema_migrations unchanged so the same migration is retried next startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TEXT NOT NULL DEFAULT (datetime('now'))
)`); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, m.version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("sqlite: check migration %d: %w", m.version, err)
		}
		if applied > 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("sqlite: apply migration %d (%s): %w", m.version, m.description, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations(version, description) VALUES (?, ?)`, m.version, m.description); err != nil {
			return fmt.Errorf("sqlite: record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Open opens (creating if necessary) a SQLite database at path in WAL mode
// and runs every pending migration.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// SQLite permits only one writer; a single connection avoids
	// SQLITE_BUSY under the single-writer/multi-reader model the store
	// contract describes.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Package index provides an optional SQLite acceleration index over
// the derived log, with FTS5 full-text search behind a build tag and a
// LIKE fallback. The log stays the source of truth: the index is a
// rebuildable mirror keyed by content hash.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS atoms (
	hash  TEXT PRIMARY KEY,
	kind  TEXT NOT NULL DEFAULT '',
	scope TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	text  TEXT NOT NULL DEFAULT '',
	ts    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_atoms_scope ON atoms(scope);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

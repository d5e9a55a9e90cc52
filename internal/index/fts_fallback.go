//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses a LIKE fallback on atoms.text.
	return nil
}

func ftsInsert(_ *sql.Tx, _, _, _, _ string) error {
	// Text is already stored in the atoms table; nothing extra to do.
	return nil
}

// Search performs a LIKE-based search (fallback when FTS5 is not
// compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT hash, scope, source, substr(text, 1, 200)
		FROM atoms
		WHERE text LIKE ? OR source LIKE ? OR scope LIKE ?
		ORDER BY ts DESC
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Hash, &r.Scope, &r.Source, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

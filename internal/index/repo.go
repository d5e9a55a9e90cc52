package index

import (
	"fmt"

	"github.com/hyenadev/hyena/internal/notelog"
)

// SearchResult represents one index search hit.
type SearchResult struct {
	Hash    string
	Scope   string
	Source  string
	Snippet string
}

// InsertAtom mirrors one atom into the index. Atoms are immutable, so
// an existing hash is left untouched.
func (db *DB) InsertAtom(a notelog.Atom) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO atoms (hash, kind, scope, source, text, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.Hash, a.Kind, a.Scope, a.Source, a.Text, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("index: insert atom: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		if err := ftsInsert(tx, a.Hash, a.Scope, a.Source, a.Text); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AllHashes returns every mirrored content hash.
func (db *DB) AllHashes() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT hash FROM atoms`)
	if err != nil {
		return nil, fmt.Errorf("index: all hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out[h] = struct{}{}
	}
	return out, rows.Err()
}

// Count returns the number of mirrored atoms.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM atoms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

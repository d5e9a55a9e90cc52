// Package notelog is the derived log store: an ordered, append-only
// sequence of atoms at .notes/notes.ndjson. Atoms are immutable once
// appended; corrections are superseding appends, never edits.
package notelog

import (
	"context"
	"strings"
	"time"

	"github.com/hyenadev/hyena/internal/applog"
	"github.com/hyenadev/hyena/internal/workspace"
)

// Provenance locates an atom in its raw input.
type Provenance struct {
	SourceFile string `json:"source_file"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
}

// Atom is one derived-log record.
type Atom struct {
	CreatedAt  string     `json:"ts"`
	Kind       string     `json:"kind"`
	Scope      string     `json:"scope,omitempty"`
	Source     string     `json:"source"`
	Text       string     `json:"text"`
	Hash       string     `json:"hash"`
	DedupState string     `json:"dedup_state"`
	Provenance Provenance `json:"provenance"`
	Author     string     `json:"author,omitempty"`
}

// Now returns the timestamp format atoms carry.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Store wraps the append log with atom-level reads.
type Store struct {
	log        *applog.Log[Atom]
	defaultMax int
}

// Open returns the derived log store for a workspace.
func Open(ws *workspace.Workspace, opts applog.Options) *Store {
	max := opts.DefaultMax
	if max <= 0 {
		max = 200
	}
	return &Store{log: applog.New[Atom](ws.DerivedLogPath(), opts), defaultMax: max}
}

// Append commits one atom under the log's exclusive lock.
func (s *Store) Append(ctx context.Context, a Atom) error {
	return s.log.Append(ctx, a)
}

// Read returns up to max atoms whose scope contains the given substring
// (all scopes when empty), newest first. max <= 0 applies the default cap.
func (s *Store) Read(scopeContains string, max int) ([]Atom, error) {
	return s.readFiltered(max, func(a Atom) bool {
		return scopeContains == "" || strings.Contains(a.Scope, scopeContains)
	})
}

// ReadScope returns up to max atoms whose scope starts with prefix,
// newest first.
func (s *Store) ReadScope(prefix string, max int) ([]Atom, error) {
	return s.readFiltered(max, func(a Atom) bool {
		return prefix == "" || strings.HasPrefix(a.Scope, prefix)
	})
}

func (s *Store) readFiltered(max int, keep func(Atom) bool) ([]Atom, error) {
	// Filter over the full log, then bound: Read alone would cap before
	// filtering and starve narrow scopes.
	all, _, err := s.log.All()
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = s.defaultMax
	}
	var out []Atom
	for i := len(all) - 1; i >= 0 && len(out) < max; i-- {
		if keep(all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// All returns every atom in append order plus the count of malformed
// lines skipped.
func (s *Store) All() ([]Atom, int, error) {
	return s.log.All()
}

// Iterate traverses atoms in append order.
func (s *Store) Iterate(fn func(Atom) error) (int, error) {
	return s.log.Iterate(fn)
}

// SeenHashes snapshots the content hashes already in the log, used to
// seed the dedup engine.
func (s *Store) SeenHashes() (map[string]struct{}, error) {
	out := make(map[string]struct{})
	_, err := s.log.Iterate(func(a Atom) error {
		if a.Hash != "" {
			out[a.Hash] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

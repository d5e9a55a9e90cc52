// Package search runs case-insensitive substring queries over the
// derived log and, when requested, the scratch log. No ranking beyond
// recency: the corpus is a personal note log, not a general corpus.
package search

import (
	"strings"

	"github.com/hyenadev/hyena/internal/notelog"
	"github.com/hyenadev/hyena/internal/scratchlog"
)

// Match sources.
const (
	SourceDerived = "derived"
	SourceScratch = "scratch"
)

// Match is one search hit.
type Match struct {
	// Source is "derived" or "scratch".
	Source string
	// Offset is the byte index of the first case-folded occurrence.
	Offset int
	// Text is the matched record's text.
	Text string
	// Kind, Scope, SourcePath, CreatedAt carry the record's metadata;
	// Scope and SourcePath are empty for scratch hits.
	Kind       string
	Scope      string
	SourcePath string
	CreatedAt  string
}

// Engine queries the two stores.
type Engine struct {
	notes   *notelog.Store
	scratch *scratchlog.Log
}

// New builds a search engine over the given stores.
func New(notes *notelog.Store, scratch *scratchlog.Log) *Engine {
	return &Engine{notes: notes, scratch: scratch}
}

// Search returns all records whose text contains query, ignoring case:
// derived atoms newest first, then scratch entries newest first when
// includeScratch is set. An empty query matches nothing.
func (e *Engine) Search(query string, includeScratch bool) ([]Match, error) {
	if query == "" {
		return nil, nil
	}
	folded := strings.ToLower(query)

	var out []Match
	atoms, _, err := e.notes.All()
	if err != nil {
		return nil, err
	}
	for i := len(atoms) - 1; i >= 0; i-- {
		a := atoms[i]
		if off := strings.Index(strings.ToLower(a.Text), folded); off >= 0 {
			out = append(out, Match{
				Source:     SourceDerived,
				Offset:     off,
				Text:       a.Text,
				Kind:       a.Kind,
				Scope:      a.Scope,
				SourcePath: a.Source,
				CreatedAt:  a.CreatedAt,
			})
		}
	}

	if includeScratch && e.scratch != nil {
		entries, _, err := e.scratch.All()
		if err != nil {
			return nil, err
		}
		for i := len(entries) - 1; i >= 0; i-- {
			en := entries[i]
			if off := strings.Index(strings.ToLower(en.Text), folded); off >= 0 {
				out = append(out, Match{
					Source:    SourceScratch,
					Offset:    off,
					Text:      en.Text,
					Kind:      en.Kind,
					CreatedAt: en.CreatedAt,
				})
			}
		}
	}

	return out, nil
}

// Package cluster groups derived atoms by token-set similarity and
// writes one YAML file per group under .work/clusters/.
package cluster

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hyenadev/hyena/internal/dedup"
	"github.com/hyenadev/hyena/internal/notelog"
	"github.com/hyenadev/hyena/internal/workspace"
)

// Config tunes clustering.
type Config struct {
	// SimilarityThreshold is the Jaccard score at or above which two
	// atoms join the same cluster.
	SimilarityThreshold float64
	// MinAtoms drops clusters smaller than this (singletons are noise).
	MinAtoms int
}

// Note is one cluster member.
type Note struct {
	SourceFile string `yaml:"source_file"`
	LineStart  int    `yaml:"line_start"`
	LineEnd    int    `yaml:"line_end"`
	Text       string `yaml:"text"`
}

// File is the persisted cluster document.
type File struct {
	Notes []Note `yaml:"notes"`
}

// Run reads the derived log, groups atoms whose similarity meets the
// threshold, and writes cluster-<id>.yaml files. Returns the number of
// clusters written. Atoms sharing provenance are considered once.
func Run(ws *workspace.Workspace, notes *notelog.Store, cfg Config, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	atoms, skipped, err := notes.All()
	if err != nil {
		return 0, fmt.Errorf("cluster: read derived log: %w", err)
	}
	if skipped > 0 {
		logger.Warn("cluster: skipped malformed log lines", slog.Int("count", skipped))
	}

	type provKey struct {
		source     string
		start, end int
	}
	seen := make(map[provKey]struct{}, len(atoms))
	var members []notelog.Atom
	for _, a := range atoms {
		k := provKey{a.Provenance.SourceFile, a.Provenance.LineStart, a.Provenance.LineEnd}
		if k.source == "" {
			k.source = a.Source
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		members = append(members, a)
	}
	if len(members) < cfg.MinAtoms {
		return 0, nil
	}

	// Token reverse index: only pairs sharing a token get compared.
	tokens := make([]map[string]struct{}, len(members))
	index := make(map[string][]int)
	for i, a := range members {
		tokens[i] = dedup.Tokenize(a.Text)
		for tok := range tokens[i] {
			index[tok] = append(index[tok], i)
		}
	}

	uf := newUnionFind(len(members))
	type pair struct{ i, j int }
	compared := make(map[pair]struct{})
	for _, ids := range index {
		for pi, i := range ids {
			for _, j := range ids[pi+1:] {
				p := pair{i, j}
				if _, done := compared[p]; done {
					continue
				}
				compared[p] = struct{}{}
				if dedup.Jaccard(tokens[i], tokens[j]) >= cfg.SimilarityThreshold {
					uf.union(i, j)
				}
			}
		}
	}

	dir := ws.ClustersDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("cluster: create %s: %w", dir, err)
	}

	written := 0
	for _, group := range uf.groups() {
		if len(group) < cfg.MinAtoms {
			continue
		}
		doc := File{Notes: make([]Note, 0, len(group))}
		for _, idx := range group {
			a := members[idx]
			src := a.Provenance.SourceFile
			if src == "" {
				src = a.Source
			}
			doc.Notes = append(doc.Notes, Note{
				SourceFile: src,
				LineStart:  a.Provenance.LineStart,
				LineEnd:    a.Provenance.LineEnd,
				Text:       a.Text,
			})
		}
		data, err := yaml.Marshal(&doc)
		if err != nil {
			return written, fmt.Errorf("cluster: marshal: %w", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("cluster-%s.yaml", uuid.NewString()))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("cluster: write %s: %w", path, err)
		}
		written++
	}

	logger.Info("cluster: done", slog.Int("clusters", written), slog.Int("atoms", len(members)))
	return written, nil
}

// unionFind groups atom indices.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	if u.parent[i] != i {
		u.parent[i] = u.find(u.parent[i])
	}
	return u.parent[i]
}

func (u *unionFind) union(i, j int) {
	pi, pj := u.find(i), u.find(j)
	if pi != pj {
		u.parent[pi] = pj
	}
}

func (u *unionFind) groups() [][]int {
	byRoot := make(map[int][]int)
	for i := range u.parent {
		root := u.find(i)
		byRoot[root] = append(byRoot[root], i)
	}
	out := make([][]int, 0, len(byRoot))
	for _, g := range byRoot {
		out = append(out, g)
	}
	return out
}

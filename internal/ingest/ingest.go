// Package ingest orchestrates discovery, chunking, dedup, and derived
// log appends. Running ingest twice over unchanged inputs adds nothing
// the second time.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/hyenadev/hyena/internal/chunker"
	"github.com/hyenadev/hyena/internal/dedup"
	"github.com/hyenadev/hyena/internal/notelog"
	"github.com/hyenadev/hyena/internal/rawstore"
)

// Options is the structured per-run configuration.
type Options struct {
	// Only restricts discovery to exactly these workspace-relative
	// paths. Empty means full discovery.
	Only []string
	// SemanticDedupe enables near-duplicate suppression on top of the
	// always-on exact dedup.
	SemanticDedupe bool
	// Actor is recorded as the author of appended atoms.
	Actor string
}

// Summary reports one ingest run. Per-file failures are counted, not
// raised.
type Summary struct {
	AtomsAdded      int `json:"atoms_added"`
	ExactDuplicates int `json:"exact_duplicates_suppressed"`
	NearDuplicates  int `json:"near_duplicates_suppressed"`
	FilesProcessed  int `json:"files_processed"`
	FilesSkipped    int `json:"files_skipped_errors"`
}

// Config carries the pipeline's tuning knobs.
type Config struct {
	MaxChunkLines       int
	SimilarityThreshold float64
	RecentWindow        int
}

// Pipeline wires the raw store, chunker, dedup engine, and derived log.
type Pipeline struct {
	raws   *rawstore.Store
	notes  *notelog.Store
	cfg    Config
	logger *slog.Logger
}

// New builds a pipeline.
func New(raws *rawstore.Store, notes *notelog.Store, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{raws: raws, notes: notes, cfg: cfg, logger: logger}
}

// Run ingests the workspace. Discovery errors (bad only paths) fail the
// run; per-file read failures are logged, counted, and skipped.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary

	paths, err := p.raws.Discover(opts.Only)
	if err != nil {
		return sum, fmt.Errorf("ingest: discover: %w", err)
	}

	seen, err := p.notes.SeenHashes()
	if err != nil {
		return sum, fmt.Errorf("ingest: seed dedup: %w", err)
	}
	engine := dedup.NewEngine(seen, dedup.Config{
		Semantic:  opts.SemanticDedupe,
		Threshold: p.cfg.SimilarityThreshold,
		Window:    p.cfg.RecentWindow,
	})
	if opts.SemanticDedupe {
		// Preload the comparison window with the most recent atoms so a
		// lightly edited input is suppressed, not re-logged.
		recent, err := p.notes.Read("", p.cfg.RecentWindow)
		if err != nil {
			return sum, fmt.Errorf("ingest: seed window: %w", err)
		}
		for i := len(recent) - 1; i >= 0; i-- {
			engine.Seed(recent[i].Text)
		}
	}

	actor := opts.Actor
	if actor == "" {
		actor = "agent"
	}

	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		file, err := p.raws.ReadFile(rel)
		if err != nil {
			p.logger.Warn("ingest: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			sum.FilesSkipped++
			continue
		}
		if err := p.ingestFile(ctx, file, engine, actor, &sum); err != nil {
			return sum, err
		}
		sum.FilesProcessed++
	}

	p.logger.Info("ingest: done",
		slog.Int("atoms_added", sum.AtomsAdded),
		slog.Int("exact_duplicates", sum.ExactDuplicates),
		slog.Int("near_duplicates", sum.NearDuplicates),
		slog.Int("files_processed", sum.FilesProcessed),
		slog.Int("files_skipped", sum.FilesSkipped))
	return sum, nil
}

// ingestFile chunks one raw input and appends the surviving chunks.
// Append failures abort the run: a broken log is not a per-file matter.
func (p *Pipeline) ingestFile(ctx context.Context, file rawstore.File, engine *dedup.Engine, actor string, sum *Summary) error {
	scope := path.Dir(file.Path)

	for _, c := range chunker.Split(string(file.Content), p.cfg.MaxChunkLines) {
		d := engine.Decide(c.Text)
		switch d.State {
		case dedup.ExactDuplicate:
			sum.ExactDuplicates++
			continue
		case dedup.NearDuplicate:
			sum.NearDuplicates++
			p.logger.Debug("ingest: near-duplicate suppressed",
				slog.String("path", file.Path),
				slog.Float64("score", d.Score))
			continue
		}

		atom := notelog.Atom{
			CreatedAt:  notelog.Now(),
			Kind:       c.Kind,
			Scope:      scope,
			Source:     file.Path,
			Text:       c.Text,
			Hash:       d.Hash,
			DedupState: d.State.String(),
			Provenance: notelog.Provenance{
				SourceFile: file.Path,
				LineStart:  c.LineStart,
				LineEnd:    c.LineEnd,
			},
			Author: actor,
		}
		if err := p.notes.Append(ctx, atom); err != nil {
			return fmt.Errorf("ingest: append atom from %s: %w", file.Path, err)
		}
		sum.AtomsAdded++
	}
	return nil
}

// Package watch re-ingests raw inputs as they change on disk: a
// debounced fsnotify loop batches changed paths and runs a delta
// ingest restricted to them.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hyenadev/hyena/internal/ingest"
	"github.com/hyenadev/hyena/internal/rawstore"
	"github.com/hyenadev/hyena/internal/workspace"
)

// debounceInterval coalesces bursts of events (editors write several
// times per save) into one ingest run.
const debounceInterval = 500 * time.Millisecond

// IngestCallback is called after each watcher-driven ingest with the
// batch of changed paths and the run summary.
type IngestCallback func(paths []string, sum ingest.Summary)

// Watch processes file change events until ctx is cancelled. New
// directories created at runtime are added to the watch list. Only
// paths matching the raw-input patterns trigger ingestion; the
// engine-owned dot directories are ignored so the watcher never reacts
// to its own log appends.
func Watch(ctx context.Context, ws *workspace.Workspace, raws *rawstore.Store, pipeline *ingest.Pipeline, opts ingest.Options, logger *slog.Logger, cb IngestCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, ws.Root()); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", ws.Root()))

	pending := make(map[string]struct{})
	var debounce *time.Timer
	var debounceCh <-chan time.Time

	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(debounceInterval)
			debounceCh = debounce.C
		} else {
			debounce.Reset(debounceInterval)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-debounceCh:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				// A path may have vanished between the event and now.
				if abs, err := ws.Resolve(p); err == nil {
					if _, statErr := os.Stat(abs); statErr == nil {
						batch = append(batch, p)
					}
				}
			}
			pending = make(map[string]struct{})
			if len(batch) == 0 {
				continue
			}

			runOpts := opts
			runOpts.Only = batch
			sum, err := pipeline.Run(ctx, runOpts)
			if err != nil {
				logger.Warn("watcher: ingest failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("watcher: ingested batch",
				slog.Int("paths", len(batch)),
				slog.Int("atoms_added", sum.AtomsAdded))
			if cb != nil {
				cb(batch, sum)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			rel := ws.Rel(absPath)
			if engineOwned(rel) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Pick up raw inputs already inside the new directory.
					collectRawInputs(raws, absPath, ws, pending)
					if len(pending) > 0 {
						schedule()
					}
					continue
				}
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				// The derived log is append-only: removals and renames
				// of raw inputs do not retract atoms.
				continue
			}
			if !raws.Matches(rel) {
				continue
			}
			pending[rel] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// engineOwned reports whether rel lies in a directory the engine
// itself writes to.
func engineOwned(rel string) bool {
	for _, prefix := range []string{".notes", ".hyena", ".work", ".git"} {
		if rel == prefix || len(rel) > len(prefix) && rel[:len(prefix)+1] == prefix+"/" {
			return true
		}
	}
	return false
}

// collectRawInputs adds raw-input matches under dir to pending.
func collectRawInputs(raws *rawstore.Store, dir string, ws *workspace.Workspace, pending map[string]struct{}) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel := ws.Rel(p)
		if raws.Matches(rel) {
			pending[rel] = struct{}{}
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the
// watcher, skipping engine-owned directories.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		switch d.Name() {
		case ".notes", ".hyena", ".work", ".git":
			if path != root {
				return filepath.SkipDir
			}
		}
		return w.Add(path)
	})
}

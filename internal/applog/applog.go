// Package applog implements the shared append-only NDJSON log the
// derived and scratch stores are built on. One JSON record per line; a
// record is committed if and only if its terminating newline is on disk,
// so readers never see a partial record as data.
package applog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options tune a log's locking and read behavior.
type Options struct {
	// LockTimeout caps how long Append waits for the exclusive lock.
	LockTimeout time.Duration
	// DefaultMax caps Read results when the caller passes max <= 0.
	DefaultMax int
}

func (o Options) withDefaults() Options {
	if o.LockTimeout <= 0 {
		o.LockTimeout = 5 * time.Second
	}
	if o.DefaultMax <= 0 {
		o.DefaultMax = 200
	}
	return o
}

// Log is an append-only sequence of T persisted as NDJSON. It is safe
// for concurrent use by independent processes: every append holds an
// exclusive advisory lock on a sidecar lock file for the duration of
// the write.
type Log[T any] struct {
	path string
	opts Options
}

// New returns a log persisted at path. The file and its parent
// directories are created lazily on first append.
func New[T any](path string, opts Options) *Log[T] {
	return &Log[T]{path: path, opts: opts.withDefaults()}
}

// Path returns the log file location.
func (l *Log[T]) Path() string { return l.path }

// Append commits one record. The record either fully commits, newline
// included, or nothing is written.
func (l *Log[T]) Append(ctx context.Context, rec T) error {
	// Marshal before taking the lock so a bad record costs nothing.
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("applog: marshal record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("applog: mkdir: %w", err)
	}

	unlock, err := acquireLock(ctx, l.path+".lock", l.opts.LockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("applog: open %s: %w", l.path, err)
	}
	defer f.Close()

	// Single write call: line plus terminator commit together.
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("applog: append %s: %w", l.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("applog: sync %s: %w", l.path, err)
	}
	return nil
}

// All returns every committed record in append order plus the number of
// lines skipped as malformed. A missing log file is an empty log.
func (l *Log[T]) All() ([]T, int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("applog: read %s: %w", l.path, err)
	}

	var out []T
	skipped := 0
	lines := strings.Split(string(data), "\n")
	// A trailing element after the final newline is either empty
	// (complete log) or a record still being written; ignore it.
	if n := len(lines); n > 0 && !strings.HasSuffix(string(data), "\n") {
		lines = lines[:n-1]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec T
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// Iterate calls fn for each committed record in append order, stopping
// on the first error from fn. Malformed lines are skipped and counted.
func (l *Log[T]) Iterate(fn func(T) error) (int, error) {
	recs, skipped, err := l.All()
	if err != nil {
		return skipped, err
	}
	for _, rec := range recs {
		if err := fn(rec); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// Read returns up to max records, newest first. max <= 0 falls back to
// the configured default cap; the bound is never exceeded.
func (l *Log[T]) Read(max int) ([]T, error) {
	if max <= 0 {
		max = l.opts.DefaultMax
	}
	recs, _, err := l.All()
	if err != nil {
		return nil, err
	}
	// Reverse-chronological: append order reversed.
	out := make([]T, 0, min(max, len(recs)))
	for i := len(recs) - 1; i >= 0 && len(out) < max; i-- {
		out = append(out, recs[i])
	}
	return out, nil
}

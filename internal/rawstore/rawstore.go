// Package rawstore discovers and reads raw input files. It never
// transforms content and never writes: raw inputs belong to external
// editors.
package rawstore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/hyenadev/hyena/internal/apperr"
	"github.com/hyenadev/hyena/internal/workspace"
)

// File is one raw input tagged with its workspace-relative path.
type File struct {
	Path    string
	Content []byte
}

// Store discovers raw inputs by glob pattern and reads them by scope.
type Store struct {
	ws       *workspace.Workspace
	patterns []glob.Glob
}

// skipDirs are engine-owned directories never walked for raw inputs.
var skipDirs = map[string]struct{}{
	".git": {}, ".notes": {}, ".hyena": {}, ".work": {},
}

// New compiles the discovery patterns (matched against forward-slash
// relative paths) for a workspace.
func New(ws *workspace.Workspace, patterns []string) (*Store, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("rawstore: invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	return &Store{ws: ws, patterns: compiled}, nil
}

// Matches reports whether a workspace-relative path is a raw input.
func (s *Store) Matches(rel string) bool {
	for _, g := range s.patterns {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Discover returns the ordered list of raw input paths to process,
// relative to the workspace root.
//
// With an explicit only list, discovery is restricted to exactly those
// paths; each must resolve inside the root and exist, otherwise the
// whole call fails with an invalid-scope error. Without one, the
// workspace is walked recursively for pattern matches. Order is
// lexicographic so repeated runs over unchanged inputs are identical.
func (s *Store) Discover(only []string) ([]string, error) {
	if len(only) > 0 {
		out := make([]string, 0, len(only))
		for _, rel := range only {
			abs, err := s.ws.Resolve(rel)
			if err != nil {
				return nil, err
			}
			info, err := os.Stat(abs)
			if err != nil {
				return nil, fmt.Errorf("rawstore: %s: %w", rel, apperr.ErrInvalidScope)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("rawstore: %s is a directory: %w", rel, apperr.ErrInvalidScope)
			}
			out = append(out, s.ws.Rel(abs))
		}
		sort.Strings(out)
		return out, nil
	}
	return s.walk(s.ws.Root())
}

// walk enumerates pattern matches under base, lexicographic by
// relative path. Symlinks are not followed.
func (s *Store) walk(base string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && p != base {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel := s.ws.Rel(p)
		if s.Matches(rel) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rawstore: discover: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Read returns the full content of every raw input within scope (all
// raw inputs when scope is empty), each tagged with its path. A scope
// that does not exist yields no files; reads reflect the filesystem at
// call time.
func (s *Store) Read(scope string) ([]File, error) {
	base := s.ws.Root()
	if scope != "" {
		abs, err := s.ws.Resolve(scope)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, nil
		}
		base = abs
	}
	paths, err := s.walk(base)
	if err != nil {
		return nil, err
	}
	out := make([]File, 0, len(paths))
	for _, rel := range paths {
		f, err := s.ReadFile(rel)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// ReadFile reads a single raw input by relative path.
func (s *Store) ReadFile(rel string) (File, error) {
	abs, err := s.ws.Resolve(rel)
	if err != nil {
		return File{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return File{}, fmt.Errorf("rawstore: read %s: %w", rel, apperr.ErrIO)
	}
	return File{Path: s.ws.Rel(abs), Content: data}, nil
}

// Render formats files for the command surface: path, separator line,
// content, one block per file.
func Render(files []File) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f.Path)
		b.WriteString("\n---\n")
		b.Write(f.Content)
		if len(f.Content) > 0 && f.Content[len(f.Content)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

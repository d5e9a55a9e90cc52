// Package resolver finds the nearest ancestor notes file for a path
// and excerpts it.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyenadev/hyena/internal/apperr"
	"github.com/hyenadev/hyena/internal/workspace"
)

// Result is a resolved context file.
type Result struct {
	// Path is the notes file, relative to the workspace root.
	Path string
	// Excerpt is the first maxLines lines of the file.
	Excerpt string
}

// Resolve walks ancestor directories upward from rel (the workspace
// root when empty; a file path starts from its directory) until a
// NOTES.md is found. Ties resolve to the nearest ancestor. Reaching the
// root without a hit yields a not-found error.
func Resolve(ws *workspace.Workspace, rel string, maxLines int) (Result, error) {
	start, err := ws.Resolve(rel)
	if err != nil {
		return Result{}, err
	}
	dir := start
	if info, statErr := os.Stat(start); statErr == nil && !info.IsDir() {
		dir = filepath.Dir(start)
	} else if statErr != nil {
		// A path that does not exist yet still has ancestors to walk.
		dir = filepath.Dir(start)
		if !ws.Contains(dir) {
			dir = ws.Root()
		}
	}

	for ws.Contains(dir) {
		notes := filepath.Join(dir, workspace.NotesFile)
		if info, err := os.Stat(notes); err == nil && !info.IsDir() {
			excerpt, err := excerptFile(notes, maxLines)
			if err != nil {
				return Result{}, err
			}
			return Result{Path: ws.Rel(notes), Excerpt: excerpt}, nil
		}
		if dir == ws.Root() {
			break
		}
		dir = filepath.Dir(dir)
	}
	return Result{}, fmt.Errorf("resolver: no %s found from %q up to root: %w",
		workspace.NotesFile, rel, apperr.ErrNotFound)
}

// excerptFile returns the first maxLines lines of the file, or the
// whole file when maxLines <= 0.
func excerptFile(path string, maxLines int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("resolver: read %s: %w", path, apperr.ErrIO)
	}
	s := string(data)
	if maxLines <= 0 {
		return s, nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s, nil
	}
	return strings.Join(lines[:maxLines], "\n"), nil
}

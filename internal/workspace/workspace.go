// Package workspace anchors every engine operation to a single root
// directory and owns the conventional on-disk layout beneath it.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyenadev/hyena/internal/apperr"
)

// Conventional locations under the workspace root.
const (
	DerivedLogRel = ".notes/notes.ndjson"
	ScratchLogRel = ".hyena/agent/scratch.ndjson"
	AgentLogRel   = ".hyena/agent/agent_log.ndjson"
	IndexRel      = ".hyena/index.db"
	ClustersRel   = ".work/clusters"
	ConfigRel     = ".hyena/config.yaml"
)

// NotesFile is the conventional notes file name recognized by discovery
// and context resolution.
const NotesFile = "NOTES.md"

// Workspace is the explicit context value threaded through every
// operation; there is no process-wide root.
type Workspace struct {
	root string // absolute
}

// New resolves root to an absolute path and verifies it is a directory.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace: root is not a directory: %s", abs)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Resolve joins rel against the root and rejects any result that escapes
// it (directory traversal or absolute input).
func (w *Workspace) Resolve(rel string) (string, error) {
	if rel == "" || rel == "." {
		return w.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("workspace: absolute paths not allowed: %s: %w", rel, apperr.ErrInvalidScope)
	}
	joined := filepath.Join(w.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("workspace: resolve path: %w", err)
	}
	if !w.Contains(abs) {
		return "", fmt.Errorf("workspace: path escapes root: %s: %w", rel, apperr.ErrInvalidScope)
	}
	return abs, nil
}

// Contains reports whether abs is the root or lies beneath it.
func (w *Workspace) Contains(abs string) bool {
	return abs == w.root || strings.HasPrefix(abs, w.root+string(os.PathSeparator))
}

// Rel returns abs relative to the root, normalized to forward slashes.
func (w *Workspace) Rel(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// DerivedLogPath returns the absolute derived log location.
func (w *Workspace) DerivedLogPath() string {
	return filepath.Join(w.root, filepath.FromSlash(DerivedLogRel))
}

// ScratchLogPath returns the absolute scratch log location.
func (w *Workspace) ScratchLogPath() string {
	return filepath.Join(w.root, filepath.FromSlash(ScratchLogRel))
}

// AgentLogPath returns the absolute agent log location.
func (w *Workspace) AgentLogPath() string {
	return filepath.Join(w.root, filepath.FromSlash(AgentLogRel))
}

// IndexPath returns the absolute acceleration-index location.
func (w *Workspace) IndexPath() string {
	return filepath.Join(w.root, filepath.FromSlash(IndexRel))
}

// ClustersDir returns the absolute cluster output directory.
func (w *Workspace) ClustersDir() string {
	return filepath.Join(w.root, filepath.FromSlash(ClustersRel))
}

// ConfigPath returns the conventional config file location.
func (w *Workspace) ConfigPath() string {
	return filepath.Join(w.root, filepath.FromSlash(ConfigRel))
}

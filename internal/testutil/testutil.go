// Package testutil provides shared test helpers for setting up
// workspaces and loggers.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/hyenadev/hyena/internal/workspace"
)

// TestWorkspace creates a temporary workspace that is automatically
// cleaned up.
func TestWorkspace(t *testing.T) (*workspace.Workspace, string) {
	t.Helper()
	dir := t.TempDir()
	ws, err := workspace.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	return ws, dir
}

// TestLogger returns a logger that discards output.
func TestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

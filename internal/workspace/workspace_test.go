package workspace

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyenadev/hyena/internal/apperr"
)

func TestNew_RejectsMissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestResolve_Simple(t *testing.T) {
	dir := t.TempDir()
	ws, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	abs, err := ws.Resolve("a/b.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(ws.Root(), "a", "b.md"); abs != want {
		t.Errorf("abs = %q, want %q", abs, want)
	}
}

func TestResolve_RejectsEscape(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, rel := range []string{"../outside", "a/../../outside", "/etc/passwd"} {
		if _, err := ws.Resolve(rel); !errors.Is(err, apperr.ErrInvalidScope) {
			t.Errorf("Resolve(%q) err = %v, want ErrInvalidScope", rel, err)
		}
	}
}

func TestResolve_EmptyIsRoot(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	abs, err := ws.Resolve("")
	if err != nil || abs != ws.Root() {
		t.Errorf("Resolve(\"\") = %q, %v; want root", abs, err)
	}
}

func TestRel_ForwardSlashes(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	abs := filepath.Join(ws.Root(), "a", "b", "NOTES.md")
	if got := ws.Rel(abs); got != "a/b/NOTES.md" {
		t.Errorf("Rel = %q, want a/b/NOTES.md", got)
	}
}

func TestConventionalPaths(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got := ws.DerivedLogPath(); got != filepath.Join(ws.Root(), ".notes", "notes.ndjson") {
		t.Errorf("DerivedLogPath = %q", got)
	}
	if got := ws.ScratchLogPath(); got != filepath.Join(ws.Root(), ".hyena", "agent", "scratch.ndjson") {
		t.Errorf("ScratchLogPath = %q", got)
	}
}

package cluster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/hyenadev/hyena/internal/applog"
	"github.com/hyenadev/hyena/internal/checksum"
	"github.com/hyenadev/hyena/internal/notelog"
	"github.com/hyenadev/hyena/internal/testutil"
	"github.com/hyenadev/hyena/internal/workspace"
)

func addAtom(t *testing.T, s *notelog.Store, text string, line int) {
	t.Helper()
	err := s.Append(context.Background(), notelog.Atom{
		CreatedAt:  notelog.Now(),
		Kind:       "bullet",
		Scope:      ".",
		Source:     "NOTES.md",
		Text:       text,
		Hash:       checksum.SumText(text),
		DedupState: "new",
		Provenance: notelog.Provenance{SourceFile: "NOTES.md", LineStart: line, LineEnd: line},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, ws *workspace.Workspace, s *notelog.Store) int {
	t.Helper()
	n, err := Run(ws, s, Config{SimilarityThreshold: 0.65, MinAtoms: 2}, testutil.TestLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestRun_GroupsSimilarAtoms(t *testing.T) {
	ws, _ := testutil.TestWorkspace(t)
	s := notelog.Open(ws, applog.Options{})
	addAtom(t, s, "the chunker splits markdown on paragraph boundaries", 1)
	addAtom(t, s, "the chunker splits markdown on heading boundaries", 2)
	addAtom(t, s, "completely different topic about lock timeouts", 3)

	if n := run(t, ws, s); n != 1 {
		t.Fatalf("clusters written = %d, want 1", n)
	}

	entries, err := os.ReadDir(ws.ClustersDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "cluster-") {
		t.Fatalf("entries = %v", entries)
	}

	data, err := os.ReadFile(filepath.Join(ws.ClustersDir(), entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Notes) != 2 {
		t.Errorf("cluster members = %d, want 2", len(doc.Notes))
	}
	for _, n := range doc.Notes {
		if n.SourceFile != "NOTES.md" || n.LineStart == 0 {
			t.Errorf("member = %+v", n)
		}
	}
}

func TestRun_SingletonsDropped(t *testing.T) {
	ws, _ := testutil.TestWorkspace(t)
	s := notelog.Open(ws, applog.Options{})
	addAtom(t, s, "alpha beta gamma", 1)
	addAtom(t, s, "delta epsilon zeta", 2)

	if n := run(t, ws, s); n != 0 {
		t.Errorf("clusters = %d, want 0 for dissimilar atoms", n)
	}
}

func TestRun_EmptyLogWritesNothing(t *testing.T) {
	ws, _ := testutil.TestWorkspace(t)
	s := notelog.Open(ws, applog.Options{})
	if n := run(t, ws, s); n != 0 {
		t.Errorf("clusters = %d, want 0", n)
	}
	if _, err := os.Stat(ws.ClustersDir()); !os.IsNotExist(err) {
		t.Error("clusters dir created for empty log")
	}
}

func TestRun_DuplicateProvenanceCountedOnce(t *testing.T) {
	ws, _ := testutil.TestWorkspace(t)
	s := notelog.Open(ws, applog.Options{})
	addAtom(t, s, "same provenance entry", 5)
	addAtom(t, s, "same provenance entry again", 5)

	if n := run(t, ws, s); n != 0 {
		t.Errorf("clusters = %d, want 0 when duplicates collapse to one member", n)
	}
}

package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyenadev/hyena/internal/apperr"
	"github.com/hyenadev/hyena/internal/applog"
	"github.com/hyenadev/hyena/internal/checksum"
	"github.com/hyenadev/hyena/internal/notelog"
	"github.com/hyenadev/hyena/internal/rawstore"
	"github.com/hyenadev/hyena/internal/testutil"
)

func testPipeline(t *testing.T) (*Pipeline, *notelog.Store, string) {
	t.Helper()
	ws, dir := testutil.TestWorkspace(t)
	raws, err := rawstore.New(ws, []string{"NOTES.md", "**/NOTES.md", "inbox/**"})
	if err != nil {
		t.Fatal(err)
	}
	notes := notelog.Open(ws, applog.Options{})
	cfg := Config{MaxChunkLines: 40, SimilarityThreshold: 0.65, RecentWindow: 256}
	return New(raws, notes, cfg, testutil.TestLogger(t)), notes, dir
}

const threeParagraphs = `First paragraph about the module layout.
It continues on a second line.

Second paragraph about error handling and
how failures are accumulated.

Third paragraph about the search behavior.
` // 3 paragraphs, blank-line separated

func TestRun_ThreeParagraphsThreeAtoms(t *testing.T) {
	p, notes, dir := testPipeline(t)
	if err := os.WriteFile(filepath.Join(dir, "NOTES.md"), []byte(threeParagraphs), 0o644); err != nil {
		t.Fatal(err)
	}

	sum, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.AtomsAdded != 3 {
		t.Errorf("AtomsAdded = %d, want 3", sum.AtomsAdded)
	}
	if sum.FilesProcessed != 1 {
		t.Errorf("FilesProcessed = %d, want 1", sum.FilesProcessed)
	}

	atoms, _, err := notes.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(atoms) != 3 {
		t.Fatalf("log has %d atoms, want 3", len(atoms))
	}
	for _, a := range atoms {
		if a.Kind != "paragraph" || a.Source != "NOTES.md" || a.Scope != "." {
			t.Errorf("atom = %+v", a)
		}
		if a.Hash != checksum.SumText(a.Text) {
			t.Errorf("hash mismatch for %q", a.Text)
		}
	}
}

func TestRun_ReIngestIsIdempotent(t *testing.T) {
	p, _, dir := testPipeline(t)
	if err := os.WriteFile(filepath.Join(dir, "NOTES.md"), []byte(threeParagraphs), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	second, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if second.AtomsAdded != 0 {
		t.Errorf("second run AtomsAdded = %d, want 0", second.AtomsAdded)
	}
	if second.ExactDuplicates != 3 {
		t.Errorf("second run ExactDuplicates = %d, want 3", second.ExactDuplicates)
	}
}

func TestRun_HashesUniqueAcrossLog(t *testing.T) {
	p, notes, dir := testPipeline(t)
	if err := os.WriteFile(filepath.Join(dir, "NOTES.md"), []byte("- alpha\n- beta\n- alpha\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	atoms, _, err := notes.All()
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for _, a := range atoms {
		if seen[a.Hash] {
			t.Errorf("duplicate hash %s in log", a.Hash)
		}
		seen[a.Hash] = true
	}
}

func TestRun_SemanticDedupeSuppressesNearIdentical(t *testing.T) {
	p, _, dir := testPipeline(t)
	content := "- the parser handles nested brackets in expressions\n"
	if err := os.WriteFile(filepath.Join(dir, "NOTES.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), Options{SemanticDedupe: true}); err != nil {
		t.Fatal(err)
	}

	// A small edit: near-duplicate of the ingested bullet.
	edited := "- the parser handles nested brackets in most expressions\n"
	if err := os.WriteFile(filepath.Join(dir, "NOTES.md"), []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	sum, err := p.Run(context.Background(), Options{SemanticDedupe: true})
	if err != nil {
		t.Fatal(err)
	}
	if sum.AtomsAdded != 0 || sum.NearDuplicates != 1 {
		t.Errorf("sum = %+v, want the edited bullet suppressed as near-duplicate", sum)
	}
}

func TestRun_OnlyRestrictsDiscovery(t *testing.T) {
	p, notes, dir := testPipeline(t)
	for _, rel := range []string{"a", "b"} {
		if err := os.MkdirAll(filepath.Join(dir, rel), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, rel, "NOTES.md"), []byte("- note in "+rel+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := p.Run(context.Background(), Options{Only: []string{"a/NOTES.md"}})
	if err != nil {
		t.Fatal(err)
	}
	if sum.AtomsAdded != 1 {
		t.Errorf("AtomsAdded = %d, want 1", sum.AtomsAdded)
	}
	atoms, _, _ := notes.All()
	if len(atoms) != 1 || atoms[0].Scope != "a" {
		t.Errorf("atoms = %+v", atoms)
	}
}

func TestRun_OnlyMissingPathFailsRun(t *testing.T) {
	p, _, _ := testPipeline(t)
	_, err := p.Run(context.Background(), Options{Only: []string{"missing/NOTES.md"}})
	if !errors.Is(err, apperr.ErrInvalidScope) {
		t.Errorf("err = %v, want ErrInvalidScope", err)
	}
}

func TestRun_UnreadableFileCountedNotFatal(t *testing.T) {
	p, _, dir := testPipeline(t)
	if err := os.WriteFile(filepath.Join(dir, "NOTES.md"), []byte("- readable\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "locked")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(sub, "NOTES.md")
	if err := os.WriteFile(bad, []byte("- unreadable\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(bad, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(bad, 0o644) })
	if os.Getuid() == 0 {
		t.Skip("chmod 000 is not enforced for root")
	}

	sum, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.FilesSkipped != 1 || sum.FilesProcessed != 1 || sum.AtomsAdded != 1 {
		t.Errorf("sum = %+v", sum)
	}
}

func TestRun_RecordsAuthor(t *testing.T) {
	p, notes, dir := testPipeline(t)
	if err := os.WriteFile(filepath.Join(dir, "NOTES.md"), []byte("- one note\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), Options{Actor: "human"}); err != nil {
		t.Fatal(err)
	}
	atoms, _, _ := notes.All()
	if len(atoms) != 1 || atoms[0].Author != "human" {
		t.Errorf("atoms = %+v", atoms)
	}
}

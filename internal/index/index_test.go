package index

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/hyenadev/hyena/internal/applog"
	"github.com/hyenadev/hyena/internal/checksum"
	"github.com/hyenadev/hyena/internal/notelog"
	"github.com/hyenadev/hyena/internal/testutil"
)

// testDB creates a temporary SQLite database that is automatically
// cleaned up.
func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "hyena-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func atom(text, scope string) notelog.Atom {
	return notelog.Atom{
		CreatedAt:  notelog.Now(),
		Kind:       "paragraph",
		Scope:      scope,
		Source:     scope + "/NOTES.md",
		Text:       text,
		Hash:       checksum.SumText(text),
		DedupState: "new",
	}
}

func TestInsertAtom_IdempotentByHash(t *testing.T) {
	db := testDB(t)
	a := atom("indexed once", "docs")
	if err := db.InsertAtom(a); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertAtom(a); err != nil {
		t.Fatal(err)
	}
	n, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestSearch_FindsText(t *testing.T) {
	db := testDB(t)
	if err := db.InsertAtom(atom("notes about the chunker internals", "docs")); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertAtom(atom("unrelated entry", "other")); err != nil {
		t.Fatal(err)
	}

	got, err := db.Search("chunker", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Scope != "docs" || !strings.Contains(got[0].Snippet, "chunker") {
		t.Errorf("result = %+v", got[0])
	}
}

func TestSearch_RespectsLimit(t *testing.T) {
	db := testDB(t)
	for _, text := range []string{"limit alpha", "limit beta", "limit gamma"} {
		if err := db.InsertAtom(atom(text, "docs")); err != nil {
			t.Fatal(err)
		}
	}
	got, err := db.Search("limit", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > 2 {
		t.Errorf("len = %d, want <= 2", len(got))
	}
}

func TestSync_MirrorsLogAndIsIdempotent(t *testing.T) {
	db := testDB(t)
	ws, _ := testutil.TestWorkspace(t)
	notes := notelog.Open(ws, applog.Options{})

	for _, text := range []string{"first atom", "second atom"} {
		if err := notes.Append(context.Background(), atom(text, "docs")); err != nil {
			t.Fatal(err)
		}
	}

	added, err := Sync(db, notes, testutil.TestLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Errorf("first sync added = %d, want 2", added)
	}

	added, err = Sync(db, notes, testutil.TestLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 {
		t.Errorf("second sync added = %d, want 0", added)
	}
}

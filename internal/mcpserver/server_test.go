package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hyenadev/hyena/internal/applog"
	"github.com/hyenadev/hyena/internal/ingest"
	"github.com/hyenadev/hyena/internal/notelog"
	"github.com/hyenadev/hyena/internal/rawstore"
	"github.com/hyenadev/hyena/internal/scratchlog"
	"github.com/hyenadev/hyena/internal/search"
	"github.com/hyenadev/hyena/internal/testutil"
	"github.com/hyenadev/hyena/internal/workspace"
)

func testServer(t *testing.T) (*Server, *workspace.Workspace) {
	t.Helper()

	ws, _ := testutil.TestWorkspace(t)

	raws, err := rawstore.New(ws, []string{"NOTES.md", "**/NOTES.md", "inbox/**"})
	if err != nil {
		t.Fatal(err)
	}
	notes := notelog.Open(ws, applog.Options{})
	scratch := scratchlog.OpenScratch(ws, applog.Options{})
	searcher := search.New(notes, scratch)
	pipeline := ingest.New(raws, notes, ingest.Config{MaxChunkLines: 40}, testutil.TestLogger(t))

	return New(ws, notes, scratch, searcher, pipeline, 40), ws
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_context":
		result, err = srv.readContext(ctx, req)
	case "read_derived":
		result, err = srv.readDerived(ctx, req)
	case "read_scratch":
		result, err = srv.readScratch(ctx, req)
	case "write_scratch":
		result, err = srv.writeScratch(ctx, req)
	case "ingest_notes":
		result, err = srv.ingestNotes(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestIngestThenSearch(t *testing.T) {
	srv, ws := testServer(t)

	path := filepath.Join(ws.Root(), "NOTES.md")
	if err := os.WriteFile(path, []byte("The cache invalidation job runs hourly.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := callTool(t, srv, "ingest_notes", map[string]interface{}{})
	if res.IsError {
		t.Fatalf("ingest failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "\"atoms_added\": 1") {
		t.Errorf("unexpected ingest summary: %s", resultText(res))
	}

	res = callTool(t, srv, "search_notes", map[string]interface{}{"query": "cache invalidation"})
	if res.IsError {
		t.Fatalf("search failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "cache invalidation") {
		t.Errorf("expected match in search output, got: %s", resultText(res))
	}
}

func TestSearchNotes_MissingQuery(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "search_notes", map[string]interface{}{})
	if !res.IsError {
		t.Error("expected error for missing query")
	}
}

func TestWriteThenReadScratch(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "write_scratch", map[string]interface{}{"text": "trying the flag parser rewrite"})
	if res.IsError {
		t.Fatalf("write_scratch failed: %s", resultText(res))
	}

	res = callTool(t, srv, "read_scratch", map[string]interface{}{})
	if res.IsError {
		t.Fatalf("read_scratch failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "flag parser rewrite") {
		t.Errorf("expected scratch entry in output, got: %s", resultText(res))
	}
}

func TestReadContext_WalksUp(t *testing.T) {
	srv, ws := testServer(t)

	if err := os.MkdirAll(filepath.Join(ws.Root(), "pkg", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.Root(), "pkg", "NOTES.md"), []byte("pkg conventions\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := callTool(t, srv, "read_context", map[string]interface{}{"path": "pkg/deep"})
	if res.IsError {
		t.Fatalf("read_context failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "pkg conventions") {
		t.Errorf("expected ancestor notes content, got: %s", resultText(res))
	}
}

func TestReadContext_NoneFound(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "read_context", map[string]interface{}{"path": "nowhere"})
	if !res.IsError {
		t.Error("expected error when no NOTES.md exists anywhere above the path")
	}
}

func TestReadDerived_ScopeFilter(t *testing.T) {
	srv, ws := testServer(t)

	if err := os.MkdirAll(filepath.Join(ws.Root(), "api"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.Root(), "api", "NOTES.md"), []byte("handlers return json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.Root(), "NOTES.md"), []byte("top level fact\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	callTool(t, srv, "ingest_notes", map[string]interface{}{})

	res := callTool(t, srv, "read_derived", map[string]interface{}{"scope": "api"})
	if res.IsError {
		t.Fatalf("read_derived failed: %s", resultText(res))
	}
	out := resultText(res)
	if !strings.Contains(out, "handlers return json") {
		t.Errorf("expected scoped atom, got: %s", out)
	}
	if strings.Contains(out, "top level fact") {
		t.Errorf("scope filter leaked unrelated atom: %s", out)
	}
}

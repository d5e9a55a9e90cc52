// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note engine to coding agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hyenadev/hyena/internal/ingest"
	"github.com/hyenadev/hyena/internal/notelog"
	"github.com/hyenadev/hyena/internal/resolver"
	"github.com/hyenadev/hyena/internal/scratchlog"
	"github.com/hyenadev/hyena/internal/search"
	"github.com/hyenadev/hyena/internal/workspace"
)

// Server wraps the MCP server with the engine's tools.
type Server struct {
	mcp      *server.MCPServer
	ws       *workspace.Workspace
	notes    *notelog.Store
	scratch  *scratchlog.Log
	searcher *search.Engine
	pipeline *ingest.Pipeline

	contextMaxLines int
}

// New creates an MCP server with all engine tools registered.
func New(ws *workspace.Workspace, notes *notelog.Store, scratch *scratchlog.Log, searcher *search.Engine, pipeline *ingest.Pipeline, contextMaxLines int) *Server {
	s := &Server{
		ws:              ws,
		notes:           notes,
		scratch:         scratch,
		searcher:        searcher,
		pipeline:        pipeline,
		contextMaxLines: contextMaxLines,
	}

	s.mcp = server.NewMCPServer(
		"Hyena",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive substring search over the derived note log, "+
			"optionally including the agent scratch log."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithBoolean("include_scratch", mcp.Description("Also search the scratch log")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_context",
		mcp.WithDescription("Resolve the nearest NOTES.md at or above a workspace path and "+
			"return an excerpt of it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative path (file or directory)")),
	), s.readContext)

	s.mcp.AddTool(mcp.NewTool("read_derived",
		mcp.WithDescription("Read recent atoms from the derived note log, newest first."),
		mcp.WithString("scope", mcp.Description("Only atoms whose scope contains this substring")),
		mcp.WithNumber("max", mcp.Description("Maximum number of atoms to return")),
	), s.readDerived)

	s.mcp.AddTool(mcp.NewTool("read_scratch",
		mcp.WithDescription("Read recent entries from the agent scratch log, newest first."),
		mcp.WithNumber("max", mcp.Description("Maximum number of entries to return")),
	), s.readScratch)

	s.mcp.AddTool(mcp.NewTool("write_scratch",
		mcp.WithDescription("Append a free-form entry to the agent scratch log."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Entry text")),
		mcp.WithString("kind", mcp.Description("Entry kind (defaults to note)")),
	), s.writeScratch)

	s.mcp.AddTool(mcp.NewTool("ingest_notes",
		mcp.WithDescription("Discover raw note inputs, chunk them, and append new atoms to "+
			"the derived log. Exact duplicates are always suppressed."),
		mcp.WithBoolean("semantic_dedupe", mcp.Description("Also suppress near-duplicate chunks")),
	), s.ingestNotes)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	includeScratch := req.GetBool("include_scratch", false)

	matches, err := s.searcher.Search(query, includeScratch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	out, _ := json.MarshalIndent(matches, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := resolver.Resolve(s.ws, path, s.contextMaxLines)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no context found for: %s", path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n---\n%s", res.Path, res.Excerpt)), nil
}

func (s *Server) readDerived(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := req.GetString("scope", "")
	max := req.GetInt("max", 0)

	atoms, err := s.notes.Read(scope, max)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(atoms, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readScratch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	max := req.GetInt("max", 0)

	entries, err := s.scratch.Read(max)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) writeScratch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := req.GetString("kind", scratchlog.DefaultKind)

	if err := s.scratch.Append(ctx, "agent", kind, text); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("appended"), nil
}

func (s *Server) ingestNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	semantic := req.GetBool("semantic_dedupe", false)

	sum, err := s.pipeline.Run(ctx, ingest.Options{SemanticDedupe: semantic, Actor: "agent"})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(sum, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

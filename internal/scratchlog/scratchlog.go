// Package scratchlog holds the ephemeral agent logs: the scratch log
// for working memory and the agent log for actions and findings. Both
// share one entry shape and the append-log contract.
package scratchlog

import (
	"context"
	"time"

	"github.com/hyenadev/hyena/internal/applog"
	"github.com/hyenadev/hyena/internal/workspace"
)

// DefaultKind tags entries appended without an explicit kind.
const DefaultKind = "note"

// Entry is one line in a scratch or agent log.
type Entry struct {
	CreatedAt string `json:"ts"`
	Actor     string `json:"actor"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
}

// Log is an append-only entry log at a fixed workspace location.
type Log struct {
	log *applog.Log[Entry]
}

// OpenScratch returns the scratch log for a workspace.
func OpenScratch(ws *workspace.Workspace, opts applog.Options) *Log {
	return &Log{log: applog.New[Entry](ws.ScratchLogPath(), opts)}
}

// OpenAgent returns the agent log for a workspace.
func OpenAgent(ws *workspace.Workspace, opts applog.Options) *Log {
	return &Log{log: applog.New[Entry](ws.AgentLogPath(), opts)}
}

// Append commits one entry. An empty kind becomes DefaultKind.
func (l *Log) Append(ctx context.Context, actor, kind, text string) error {
	if kind == "" {
		kind = DefaultKind
	}
	return l.log.Append(ctx, Entry{
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Actor:     actor,
		Kind:      kind,
		Text:      text,
	})
}

// Read returns up to max entries, newest first. max <= 0 applies the
// default cap.
func (l *Log) Read(max int) ([]Entry, error) {
	return l.log.Read(max)
}

// All returns every entry in append order plus the malformed-line count.
func (l *Log) All() ([]Entry, int, error) {
	return l.log.All()
}

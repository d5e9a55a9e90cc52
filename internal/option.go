package internal

import (
	"github.com/hyenadev/hyena/internal/ingest"
	"github.com/hyenadev/hyena/internal/workspace"
)

type application struct {
	config        *Config
	workspace     *workspace.Workspace
	ingestOptions ingest.Options
}

// Option configures the watch runtime.
type Option func(*application)

// WithConfig sets the engine configuration.
func WithConfig(cfg *Config) Option {
	return func(app *application) {
		app.config = cfg
	}
}

// WithWorkspace sets the workspace root.
func WithWorkspace(ws *workspace.Workspace) Option {
	return func(app *application) {
		app.workspace = ws
	}
}

// WithIngestOptions sets the options used for the initial pass and for
// every re-ingest triggered by a filesystem change.
func WithIngestOptions(opts ingest.Options) Option {
	return func(app *application) {
		app.ingestOptions = opts
	}
}

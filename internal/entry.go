// Package internal provides the engine configuration and the
// long-running watch runtime.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hyenadev/hyena/internal/applog"
	"github.com/hyenadev/hyena/internal/ingest"
	"github.com/hyenadev/hyena/internal/notelog"
	"github.com/hyenadev/hyena/internal/rawstore"
	"github.com/hyenadev/hyena/internal/watch"
)

// Run starts watch mode with the given options and blocks until the
// context is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.workspace == nil {
		return fmt.Errorf("workspace is required")
	}

	cfg := app.config
	ws := app.workspace

	// Structured JSON logger for the long-running mode.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("root", ws.Root()),
		slog.Int("chunk_max_lines", cfg.Chunking.MaxLines),
		slog.String("log_level", cfg.App.LogLevel.String()))

	raws, err := rawstore.New(ws, cfg.Raw.Patterns)
	if err != nil {
		return fmt.Errorf("init raw store: %w", err)
	}

	logOpts := applog.Options{LockTimeout: cfg.Log.LockTimeout, DefaultMax: cfg.Log.DefaultMax}
	notes := notelog.Open(ws, logOpts)
	pipeline := ingest.New(raws, notes, ingest.Config{
		MaxChunkLines:       cfg.Chunking.MaxLines,
		SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
		RecentWindow:        cfg.Dedup.RecentWindow,
	}, logger)

	// Full pass before watching so the log reflects current inputs.
	sum, err := pipeline.Run(ctx, app.ingestOptions)
	if err != nil {
		logger.Warn("initial ingest failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial ingest done", slog.Int("atoms_added", sum.AtomsAdded))
	}

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gCtx)

	g.Go(func() error {
		return watch.Watch(watchCtx, ws, raws, pipeline, app.ingestOptions, logger, nil)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		stopWatch()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Watch mode error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watch mode stopped")
	return nil
}

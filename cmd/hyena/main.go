package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/hyenadev/hyena/internal"
	"github.com/hyenadev/hyena/internal/applog"
	"github.com/hyenadev/hyena/internal/cluster"
	"github.com/hyenadev/hyena/internal/index"
	"github.com/hyenadev/hyena/internal/ingest"
	"github.com/hyenadev/hyena/internal/mcpserver"
	"github.com/hyenadev/hyena/internal/notelog"
	"github.com/hyenadev/hyena/internal/rawstore"
	"github.com/hyenadev/hyena/internal/resolver"
	"github.com/hyenadev/hyena/internal/scratchlog"
	"github.com/hyenadev/hyena/internal/search"
	"github.com/hyenadev/hyena/internal/workspace"
	pkgconfig "github.com/hyenadev/hyena/pkg/config"
)

// env is the engine wired up for one command invocation.
type env struct {
	cfg    *internal.Config
	ws     *workspace.Workspace
	actor  string
	logger *slog.Logger

	raws    *rawstore.Store
	notes   *notelog.Store
	scratch *scratchlog.Log
	agent   *scratchlog.Log
}

func buildEnv(cmd *cli.Command) (*env, error) {
	ws, err := workspace.New(cmd.String("root"))
	if err != nil {
		return nil, err
	}

	cfg := internal.NewDefaultConfig()
	if configPath := cmd.String("config"); configPath != "" {
		err = pkgconfig.Load(configPath, cfg)
	} else {
		err = pkgconfig.LoadIfPresent(ws.ConfigPath(), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	actor := cmd.String("actor")
	if actor != "human" && actor != "agent" {
		return nil, fmt.Errorf("invalid actor %q (want human or agent)", actor)
	}

	// CLI commands log diagnostics to stderr; stdout is for results.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	raws, err := rawstore.New(ws, cfg.Raw.Patterns)
	if err != nil {
		return nil, err
	}

	logOpts := applog.Options{LockTimeout: cfg.Log.LockTimeout, DefaultMax: cfg.Log.DefaultMax}
	return &env{
		cfg:     cfg,
		ws:      ws,
		actor:   actor,
		logger:  logger,
		raws:    raws,
		notes:   notelog.Open(ws, logOpts),
		scratch: scratchlog.OpenScratch(ws, logOpts),
		agent:   scratchlog.OpenAgent(ws, logOpts),
	}, nil
}

func (e *env) pipeline() *ingest.Pipeline {
	return ingest.New(e.raws, e.notes, ingest.Config{
		MaxChunkLines:       e.cfg.Chunking.MaxLines,
		SimilarityThreshold: e.cfg.Dedup.SimilarityThreshold,
		RecentWindow:        e.cfg.Dedup.RecentWindow,
	}, e.logger)
}

func printAtoms(atoms []notelog.Atom) {
	for _, a := range atoms {
		fmt.Printf("%s  [%s] %s  (%s:%d-%d)\n  %s\n",
			a.CreatedAt, a.Kind, a.Scope,
			a.Provenance.SourceFile, a.Provenance.LineStart, a.Provenance.LineEnd,
			a.Text)
	}
}

func printEntries(entries []scratchlog.Entry) {
	for _, en := range entries {
		fmt.Printf("%s  %s/%s  %s\n", en.CreatedAt, en.Actor, en.Kind, en.Text)
	}
}

func readContextAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	res, err := resolver.Resolve(e.ws, cmd.Args().First(), int(cmd.Int("max-lines")))
	if err != nil {
		return err
	}
	fmt.Printf("%s\n---\n%s", res.Path, res.Excerpt)
	return nil
}

func readRawAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	files, err := e.raws.Read(cmd.Args().First())
	if err != nil {
		return err
	}
	fmt.Print(rawstore.Render(files))
	return nil
}

func readDerivedAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	atoms, err := e.notes.Read(cmd.String("scope"), int(cmd.Int("max")))
	if err != nil {
		return err
	}
	printAtoms(atoms)
	return nil
}

func readScratchAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	entries, err := e.scratch.Read(int(cmd.Int("max")))
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func readAgentLogAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	entries, err := e.agent.Read(int(cmd.Int("max")))
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func writeScratchAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	text := cmd.Args().First()
	if text == "" {
		return fmt.Errorf("text argument is required")
	}
	return e.scratch.Append(ctx, e.actor, cmd.String("kind"), text)
}

func writeAgentLogAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	text := cmd.Args().First()
	if text == "" {
		return fmt.Errorf("text argument is required")
	}
	return e.agent.Append(ctx, e.actor, cmd.String("kind"), text)
}

func searchAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("query argument is required")
	}
	matches, err := search.New(e.notes, e.scratch).Search(query, cmd.Bool("include-scratch"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		loc := m.Scope
		if loc == "" {
			loc = m.Source
		}
		fmt.Printf("%s  %s  %s\n  %s\n", m.CreatedAt, loc, m.Kind, m.Text)
	}
	if len(matches) == 0 {
		fmt.Println("no matches")
	}
	return nil
}

func ingestAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	sum, err := e.pipeline().Run(ctx, ingest.Options{
		Only:           cmd.StringSlice("only"),
		SemanticDedupe: cmd.Bool("semantic-dedupe"),
		Actor:          e.actor,
	})
	if err != nil {
		return err
	}
	fmt.Printf("files processed: %d (skipped %d)\n", sum.FilesProcessed, sum.FilesSkipped)
	fmt.Printf("atoms added: %d\n", sum.AtomsAdded)
	fmt.Printf("suppressed: %d exact, %d near\n", sum.ExactDuplicates, sum.NearDuplicates)
	return nil
}

func clusterAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	n, err := cluster.Run(e.ws, e.notes, cluster.Config{
		SimilarityThreshold: e.cfg.Cluster.SimilarityThreshold,
		MinAtoms:            e.cfg.Cluster.MinAtoms,
	}, e.logger)
	if err != nil {
		return err
	}
	fmt.Printf("clusters written: %d\n", n)
	return nil
}

func openIndex(e *env) (*index.DB, error) {
	if err := os.MkdirAll(filepath.Dir(e.ws.IndexPath()), 0o755); err != nil {
		return nil, err
	}
	return index.Open(e.ws.IndexPath())
}

func indexSyncAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	db, err := openIndex(e)
	if err != nil {
		return err
	}
	defer db.Close()

	added, err := index.Sync(db, e.notes, e.logger)
	if err != nil {
		return err
	}
	fmt.Printf("atoms indexed: %d\n", added)
	return nil
}

func indexSearchAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("query argument is required")
	}
	db, err := openIndex(e)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.Search(query, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%s  %s\n  %s\n", r.Scope, r.Source, r.Snippet)
	}
	if len(results) == 0 {
		fmt.Println("no matches")
	}
	return nil
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	return internal.Run(ctx,
		internal.WithConfig(e.cfg),
		internal.WithWorkspace(e.ws),
		internal.WithIngestOptions(ingest.Options{
			SemanticDedupe: cmd.Bool("semantic-dedupe"),
			Actor:          e.actor,
		}),
	)
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	e, err := buildEnv(cmd)
	if err != nil {
		return err
	}
	srv := mcpserver.New(e.ws, e.notes, e.scratch,
		search.New(e.notes, e.scratch), e.pipeline(), e.cfg.Chunking.MaxLines)
	return srv.ServeStdio()
}

// maxFlag is per-command: urfave flags hold parsed state.
func maxFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:  "max",
		Usage: "Maximum number of records to return (0 for the configured default)",
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "hyena",
		Usage: "Local note engine: ingest raw notes into an append-only derived log, search it, and keep agent scratch state",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Workspace root directory",
				Value:   ".",
				Sources: cli.EnvVars("HYENA_ROOT"),
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: ".hyena/config.yaml under the root",
				Sources:     cli.EnvVars("HYENA_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "actor",
				Usage:   "Who is writing: human or agent",
				Value:   "human",
				Sources: cli.EnvVars("HYENA_ACTOR"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "read",
				Usage: "Read from the workspace's stores",
				Commands: []*cli.Command{
					{
						Name:      "context",
						Usage:     "Resolve the nearest NOTES.md at or above a path",
						ArgsUsage: "PATH",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "max-lines", Usage: "Excerpt length in lines (0 for whole file)"},
						},
						Action: readContextAction,
					},
					{
						Name:      "raw",
						Usage:     "Print raw input files, optionally under one scope",
						ArgsUsage: "[SCOPE]",
						Action:    readRawAction,
					},
					{
						Name:  "derived",
						Usage: "Read atoms from the derived log, newest first",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "scope", Usage: "Only atoms whose scope contains this substring"},
							maxFlag(),
						},
						Action: readDerivedAction,
					},
					{
						Name:   "scratch",
						Usage:  "Read agent scratch entries, newest first",
						Flags:  []cli.Flag{maxFlag()},
						Action: readScratchAction,
					},
					{
						Name:   "agent-log",
						Usage:  "Read agent activity entries, newest first",
						Flags:  []cli.Flag{maxFlag()},
						Action: readAgentLogAction,
					},
				},
			},
			{
				Name:  "write",
				Usage: "Append to the agent logs",
				Commands: []*cli.Command{
					{
						Name:      "scratch",
						Usage:     "Append an entry to the scratch log",
						ArgsUsage: "TEXT",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "kind", Usage: "Entry kind", Value: scratchlog.DefaultKind},
						},
						Action: writeScratchAction,
					},
					{
						Name:      "agent-log",
						Usage:     "Append an entry to the agent activity log",
						ArgsUsage: "TEXT",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "kind", Usage: "Entry kind", Value: scratchlog.DefaultKind},
						},
						Action: writeAgentLogAction,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Case-insensitive substring search over the derived log",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "include-scratch", Usage: "Also search the scratch log"},
				},
				Action: searchAction,
			},
			{
				Name:  "ingest",
				Usage: "Chunk raw inputs and append new atoms to the derived log",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "semantic-dedupe", Usage: "Also suppress near-duplicate chunks"},
					&cli.StringSliceFlag{Name: "only", Usage: "Restrict ingestion to these relative paths"},
				},
				Action: ingestAction,
			},
			{
				Name:   "cluster",
				Usage:  "Group similar atoms into YAML cluster files under .work/clusters",
				Action: clusterAction,
			},
			{
				Name:  "index",
				Usage: "Optional SQLite acceleration index over the derived log",
				Commands: []*cli.Command{
					{
						Name:   "sync",
						Usage:  "Mirror new atoms into the index",
						Action: indexSyncAction,
					},
					{
						Name:      "search",
						Usage:     "Query the index",
						ArgsUsage: "QUERY",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Usage: "Maximum results", Value: 20},
						},
						Action: indexSearchAction,
					},
				},
			},
			{
				Name:  "watch",
				Usage: "Watch raw inputs and re-ingest on change until interrupted",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "semantic-dedupe", Usage: "Also suppress near-duplicate chunks"},
				},
				Action: watchAction,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the engine's tools over MCP stdio",
				Action: mcpAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "hyena: %v\n", err)
		os.Exit(1)
	}
}

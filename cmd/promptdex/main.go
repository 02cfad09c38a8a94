package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdevan/promptdex/internal/engine"
	"github.com/mdevan/promptdex/internal/library"
	"github.com/mdevan/promptdex/internal/storage"
	"github.com/mdevan/promptdex/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `promptdex - hybrid search over a prompt and snippet library

Usage:
  promptdex index   [flags]          index the library
  promptdex search  [flags] <query>  search the library
  promptdex status  [flags]          show index state
  promptdex rebuild [flags]          rebuild text index and embeddings
  promptdex --version

Common flags:
  -root DIR       data root (default ".")
  -builtin DIR    builtin items directory
  -user DIR       user items directory
  -local DIR      local items directory

Search flags:
  -strategy S     fuzzy | text | semantic | hybrid (default hybrid)
  -scope S        all | name | description | content (default all)
  -limit N        max results (default 20)
  -case           case-sensitive matching
  -regex          treat query as a regular expression
  -source S       filter by item source (builtin | user | local)
  -min-sim F      semantic similarity threshold in [0, 1], -1 for none
`)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("promptdex %s (built %s, sqlite driver %s)\n", version, buildTime, storage.DriverName)
		return
	}
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "index":
		err = runIndex(ctx, os.Args[2:], logger)
	case "search":
		err = runSearch(ctx, os.Args[2:], logger)
	case "status":
		err = runStatus(ctx, os.Args[2:], logger)
	case "rebuild":
		err = runRebuild(ctx, os.Args[2:], logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) (root, builtin, user, local *string) {
	root = fs.String("root", ".", "data root directory")
	builtin = fs.String("builtin", "", "builtin items directory")
	user = fs.String("user", "", "user items directory")
	local = fs.String("local", "", "local items directory")
	return
}

func openEngine(root, builtin, user, local string, logger *slog.Logger) (*engine.Engine, error) {
	var roots []library.Root
	if builtin != "" {
		roots = append(roots, library.Root{Path: builtin, Source: types.SourceBuiltin})
	}
	if user != "" {
		roots = append(roots, library.Root{Path: user, Source: types.SourceUser})
	}
	if local != "" {
		roots = append(roots, library.Root{Path: local, Source: types.SourceLocal})
	}

	return engine.New(engine.Config{
		RootDir:      root,
		LibraryRoots: roots,
		Logger:       logger,
	})
}

func runIndex(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	root, builtin, user, local := commonFlags(fs)
	_ = fs.Parse(args)

	e, err := openEngine(*root, *builtin, *user, *local, logger)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	stats, err := e.Sync(ctx)
	if err != nil {
		return err
	}
	for _, w := range stats.Warnings {
		logger.Warn("indexing warning", "warning", w)
	}
	fmt.Printf("indexed %d items (%d failed), %d chunks embedded, %d unchanged, in %s\n",
		stats.ItemsIndexed, stats.ItemsFailed, stats.ChunksEmbedded, stats.ChunksSkipped,
		stats.Duration.Round(time.Millisecond))
	return nil
}

func runSearch(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	root, builtin, user, local := commonFlags(fs)
	strategy := fs.String("strategy", "hybrid", "search strategy")
	scope := fs.String("scope", "all", "field scope")
	limit := fs.Int("limit", 20, "max results")
	caseSensitive := fs.Bool("case", false, "case-sensitive matching")
	regex := fs.Bool("regex", false, "treat query as a regular expression")
	source := fs.String("source", "", "filter by item source")
	minSim := fs.Float64("min-sim", 0, "semantic similarity threshold")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("search needs exactly one query argument")
	}

	e, err := openEngine(*root, *builtin, *user, *local, logger)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if _, err := e.Sync(ctx); err != nil {
		return err
	}

	resp, err := e.Search(ctx, fs.Arg(0), engine.Options{
		Strategy:      engine.Strategy(*strategy),
		Scope:         types.FieldScope(*scope),
		Limit:         *limit,
		CaseSensitive: *caseSensitive,
		Regex:         *regex,
		Source:        types.Source(*source),
		MinSimilarity: *minSim,
	})
	if err != nil {
		return err
	}

	if resp.Partial {
		for _, w := range resp.Warnings {
			logger.Warn("strategy dropped", "warning", w)
		}
	}
	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, r := range resp.Results {
		fmt.Printf("%2d. %-24s %.3f  [%s] %s\n", r.Rank, r.ItemName, r.Score,
			strategyList(r.Strategies), r.Title)
		if r.Excerpt != "" {
			fmt.Printf("      %s\n", r.Excerpt)
		}
	}
	return nil
}

func strategyList(strategies []types.Strategy) string {
	out := ""
	for i, s := range strategies {
		if i > 0 {
			out += ","
		}
		out += string(s)
	}
	return out
}

func runStatus(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	root, builtin, user, local := commonFlags(fs)
	_ = fs.Parse(args)

	e, err := openEngine(*root, *builtin, *user, *local, logger)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	status, err := e.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("library items:   %d\n", status.Items)
	fmt.Printf("indexed items:   %d\n", status.IndexedItems)
	fmt.Printf("stored chunks:   %d\n", status.StoredChunks)
	fmt.Printf("pending writes:  %d\n", status.PendingWrites)
	fmt.Printf("embedding model: %s/%s\n", status.Provider, status.Model)
	return nil
}

func runRebuild(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	root, builtin, user, local := commonFlags(fs)
	textOnly := fs.Bool("text-only", false, "rebuild only the text index")
	_ = fs.Parse(args)

	e, err := openEngine(*root, *builtin, *user, *local, logger)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if err := e.RebuildTextIndex(ctx); err != nil {
		return err
	}
	fmt.Println("text index rebuilt")

	if *textOnly {
		return nil
	}

	stats, err := e.RebuildEmbeddings(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("embeddings rebuilt: %d items, %d chunks, in %s\n",
		stats.ItemsIndexed, stats.ChunksEmbedded, stats.Duration.Round(time.Millisecond))
	return nil
}

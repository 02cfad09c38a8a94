package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mdevan/promptdex/internal/embedder"
	"github.com/mdevan/promptdex/internal/indexer"
	"github.com/mdevan/promptdex/internal/library"
	"github.com/mdevan/promptdex/internal/searcher"
	"github.com/mdevan/promptdex/internal/textindex"
	"github.com/mdevan/promptdex/internal/vectorstore"
	"github.com/mdevan/promptdex/pkg/types"
)

// DataDirName is the per-root directory holding the persisted indexes.
const DataDirName = ".promptdex"

// Strategy selects which backends a search dispatches to.
type Strategy string

const (
	StrategyFuzzy    Strategy = "fuzzy"
	StrategyText     Strategy = "text"
	StrategySemantic Strategy = "semantic"
	StrategyHybrid   Strategy = "hybrid"
)

// ErrUnknownStrategy is returned for a strategy outside the closed set.
var ErrUnknownStrategy = errors.New("unknown search strategy")

// NoMinSimilarity disables the semantic similarity threshold. A zero
// MinSimilarity means "use the default threshold".
const NoMinSimilarity = searcher.NoMinSimilarity

// Options controls one search call. The zero value means: hybrid strategy,
// all fields, case-insensitive plain query, no filters, default limit.
type Options struct {
	Strategy      Strategy
	Scope         types.FieldScope
	CaseSensitive bool
	Regex         bool
	Source        types.Source // Filter: only items from this source
	Category      string       // Filter: only items in this category
	Tag           string       // Filter: only items carrying this tag
	HasArgument   string       // Filter: only items declaring this argument
	NoArgs        bool         // Filter: only items without arguments
	MinSimilarity float64      // Semantic threshold override, NoMinSimilarity disables it
	Limit         int
	Timeout       time.Duration // Per-strategy budget
}

// Config configures an Engine.
type Config struct {
	// RootDir anchors the persisted state under RootDir/.promptdex/.
	RootDir string

	// LibraryRoots are loaded in order; later roots override earlier ones.
	LibraryRoots []library.Root

	// Embedder overrides the environment-driven provider selection.
	Embedder embedder.Embedder

	Logger *slog.Logger

	// IndexWorkers bounds indexing concurrency (default: NumCPU).
	IndexWorkers int
}

// Engine is the top-level facade: it owns the library, both indexes, the
// embedding service, and the query controller.
type Engine struct {
	library  *library.Library
	text     *textindex.Index
	vectors  *vectorstore.Store
	embedder *embedder.Service
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   *slog.Logger
}

// New opens the persisted state under cfg.RootDir, loads the library, and
// wires the search backends. It does not index; call Sync for that.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dataDir := filepath.Join(cfg.RootDir, DataDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	text, err := textindex.Open(filepath.Join(dataDir, "textindex.db"), textindex.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	vectors, err := vectorstore.Open(filepath.Join(dataDir, "vectors.db"), vectorstore.WithLogger(logger))
	if err != nil {
		_ = text.Close()
		return nil, err
	}

	emb := cfg.Embedder
	if emb == nil {
		emb, err = embedder.NewFromEnv()
		if err != nil {
			_ = text.Close()
			_ = vectors.Close()
			return nil, err
		}
	}
	svc := embedder.NewService(emb, logger)

	lib := library.New(logger)
	if err := lib.Load(cfg.LibraryRoots); err != nil {
		_ = text.Close()
		_ = vectors.Close()
		_ = svc.Close()
		return nil, err
	}

	var idxCfg *indexer.Config
	if cfg.IndexWorkers > 0 {
		idxCfg = &indexer.Config{Workers: cfg.IndexWorkers}
	}

	e := &Engine{
		library:  lib,
		text:     text,
		vectors:  vectors,
		embedder: svc,
		indexer:  indexer.New(text, vectors, svc, logger, idxCfg),
		logger:   logger,
	}
	e.searcher = searcher.New(lib, []searcher.Backend{
		searcher.NewFuzzyBackend(lib),
		searcher.NewTextBackend(text),
		searcher.NewSemanticBackend(svc, vectors),
	}, logger)

	return e, nil
}

// Close releases every resource. Buffered, uncommitted index writes are
// dropped.
func (e *Engine) Close() error {
	errs := []error{
		e.text.Close(),
		e.vectors.Close(),
		e.embedder.Close(),
	}
	return errors.Join(errs...)
}

// Library exposes the item collection.
func (e *Engine) Library() *library.Library {
	return e.library
}

// Search runs one query. Input errors (empty query, invalid regex, a
// threshold outside [0, 1], an unknown strategy) surface synchronously
// before any backend is dispatched.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*searcher.Response, error) {
	strategies, err := resolveStrategies(opts.Strategy)
	if err != nil {
		return nil, err
	}

	req := searcher.Request{
		Query:         query,
		Strategies:    strategies,
		Scope:         opts.Scope,
		Limit:         opts.Limit,
		CaseSensitive: opts.CaseSensitive,
		Regex:         opts.Regex,
		MinSimilarity: opts.MinSimilarity,
		Timeout:       opts.Timeout,
		UseCache:      true,
	}
	if opts.Source != "" || opts.Category != "" || opts.Tag != "" || opts.HasArgument != "" || opts.NoArgs {
		req.Filters = &searcher.Filters{
			Source:      opts.Source,
			Category:    opts.Category,
			Tag:         opts.Tag,
			HasArgument: opts.HasArgument,
			NoArgs:      opts.NoArgs,
		}
	}

	return e.searcher.Search(ctx, req)
}

// resolveStrategies maps the option onto the backend set. The set is closed.
func resolveStrategies(s Strategy) ([]types.Strategy, error) {
	switch s {
	case "", StrategyHybrid:
		return []types.Strategy{types.StrategyFuzzy, types.StrategyText, types.StrategySemantic}, nil
	case StrategyFuzzy:
		return []types.Strategy{types.StrategyFuzzy}, nil
	case StrategyText:
		return []types.Strategy{types.StrategyText}, nil
	case StrategySemantic:
		return []types.Strategy{types.StrategySemantic}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, s)
	}
}

// Sync indexes the current library contents into both stores and commits.
func (e *Engine) Sync(ctx context.Context) (*indexer.Stats, error) {
	stats, err := e.indexer.IndexAll(ctx, e.library.Items())
	if err != nil {
		return nil, err
	}
	e.searcher.InvalidateCache()
	return stats, nil
}

// AddItem adds an item to the library and indexes it. The text index write
// stays buffered until Commit.
func (e *Engine) AddItem(ctx context.Context, item *types.Item) error {
	if err := e.library.Add(item); err != nil {
		return err
	}
	if err := e.indexer.IndexItem(ctx, item); err != nil {
		return err
	}
	e.searcher.InvalidateCache()
	return nil
}

// RemoveItem removes an item from the library and both indexes.
func (e *Engine) RemoveItem(ctx context.Context, name string) error {
	if err := e.library.Remove(name); err != nil {
		return err
	}
	if err := e.indexer.RemoveItem(ctx, name); err != nil {
		return err
	}
	e.searcher.InvalidateCache()
	return nil
}

// Commit flushes buffered text index writes, making them searchable.
func (e *Engine) Commit(ctx context.Context) error {
	if err := e.indexer.Commit(ctx); err != nil {
		return err
	}
	e.searcher.InvalidateCache()
	return nil
}

// RebuildTextIndex rebuilds the text index from the library. Idempotent.
func (e *Engine) RebuildTextIndex(ctx context.Context) error {
	if err := e.indexer.RebuildTextIndex(ctx, e.library.Items()); err != nil {
		return err
	}
	e.searcher.InvalidateCache()
	return nil
}

// RebuildEmbeddings re-embeds the whole library under the current model.
// Idempotent.
func (e *Engine) RebuildEmbeddings(ctx context.Context) (*indexer.Stats, error) {
	stats, err := e.indexer.RebuildEmbeddings(ctx, e.library.Items())
	if err != nil {
		return nil, err
	}
	e.searcher.InvalidateCache()
	return stats, nil
}

// ReloadModel swaps the embedding provider. Stored vectors from the old
// model stop matching; call RebuildEmbeddings to re-embed under the new one.
func (e *Engine) ReloadModel(next embedder.Embedder) error {
	if err := e.embedder.Reload(next); err != nil {
		return err
	}
	e.searcher.InvalidateCache()
	return nil
}

// Status reports the engine's index state.
type Status struct {
	Items         int
	IndexedItems  int
	StoredChunks  int
	PendingWrites int
	Provider      string
	Model         string
}

// Status summarizes library and index state.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	indexed, err := e.text.Count(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := e.vectors.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Items:         e.library.Len(),
		IndexedItems:  indexed,
		StoredChunks:  chunks,
		PendingWrites: e.text.Pending(),
		Provider:      e.embedder.Provider(),
		Model:         e.embedder.Model(),
	}, nil
}

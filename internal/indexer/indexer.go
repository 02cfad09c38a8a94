package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mdevan/promptdex/internal/chunker"
	"github.com/mdevan/promptdex/internal/embedder"
	"github.com/mdevan/promptdex/internal/textindex"
	"github.com/mdevan/promptdex/internal/vectorstore"
	"github.com/mdevan/promptdex/pkg/types"
)

// ErrRebuildInProgress is returned when a rebuild is already running.
var ErrRebuildInProgress = errors.New("rebuild already in progress")

// Stats summarizes one indexing operation. Warnings carry per-item failures
// that did not abort the run.
type Stats struct {
	ItemsIndexed   int
	ItemsFailed    int
	ChunksCreated  int
	ChunksEmbedded int
	ChunksSkipped  int
	Duration       time.Duration
	Warnings       []string
}

// Indexer drives the pipeline from items to searchable state: every item
// goes into the text index whole, and its chunks are embedded into the
// vector store. One failing item is recorded and skipped, never fatal for
// the batch.
type Indexer struct {
	chunker  *chunker.Chunker
	text     *textindex.Index
	vectors  *vectorstore.Store
	embedder *embedder.Service
	logger   *slog.Logger
	workers  int

	rebuildLock IndexLock
}

// Config contains optional indexer tuning.
type Config struct {
	Workers int // Concurrent items in flight (default: runtime.NumCPU())
}

// New creates an Indexer over the given stores.
func New(text *textindex.Index, vectors *vectorstore.Store, svc *embedder.Service, logger *slog.Logger, cfg *Config) *Indexer {
	workers := runtime.NumCPU()
	if cfg != nil && cfg.Workers > 0 {
		workers = cfg.Workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		chunker:  chunker.New(),
		text:     text,
		vectors:  vectors,
		embedder: svc,
		logger:   logger,
		workers:  workers,
	}
}

// IndexItem indexes one item into both stores. The text index write stays
// buffered until Commit.
func (idx *Indexer) IndexItem(ctx context.Context, item *types.Item) error {
	if err := idx.text.Index(ctx, item); err != nil {
		return fmt.Errorf("failed to index item %s: %w", item.Name, err)
	}
	if _, _, err := idx.embedItem(ctx, item); err != nil {
		return fmt.Errorf("failed to embed item %s: %w", item.Name, err)
	}
	return nil
}

// IndexAll indexes every item concurrently and commits the text index once
// at the end. Per-item failures are recorded in Stats.Warnings.
func (idx *Indexer) IndexAll(ctx context.Context, items []*types.Item) (*Stats, error) {
	startTime := time.Now()
	stats := &Stats{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			err := idx.text.Index(gctx, item)
			var embedded, skipped int
			if err == nil {
				embedded, skipped, err = idx.embedItem(gctx, item)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				stats.ItemsFailed++
				stats.Warnings = append(stats.Warnings, fmt.Sprintf("item %s: %v", item.Name, err))
				idx.logger.Warn("item failed to index", "item", item.Name, "error", err)
				return nil
			}
			stats.ItemsIndexed++
			stats.ChunksEmbedded += embedded
			stats.ChunksSkipped += skipped
			stats.ChunksCreated += embedded + skipped
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := idx.text.Commit(ctx); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("indexing complete",
		"items", stats.ItemsIndexed, "failed", stats.ItemsFailed,
		"embedded", stats.ChunksEmbedded, "skipped", stats.ChunksSkipped,
		"duration", stats.Duration)
	return stats, nil
}

// embedItem chunks the item, embeds new or changed chunks, and prunes chunks
// the item no longer produces. Chunks whose content hash and model match a
// stored row are skipped.
func (idx *Indexer) embedItem(ctx context.Context, item *types.Item) (embedded, skipped int, err error) {
	chunks := idx.chunker.Chunk(item)

	existing, err := idx.vectors.ChunkHashes(ctx, item.Name)
	if err != nil {
		return 0, 0, err
	}

	model := idx.embedder.Model()
	desired := make(map[string]struct{}, len(chunks))
	var toEmbed []*types.Chunk
	for _, chunk := range chunks {
		desired[chunk.ID] = struct{}{}
		if fp, ok := existing[chunk.ID]; ok && fp.ContentHash == chunk.ContentHash && fp.Model == model {
			skipped++
			continue
		}
		toEmbed = append(toEmbed, chunk)
	}

	var stale []string
	for id := range existing {
		if _, ok := desired[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := idx.vectors.DeleteChunks(ctx, stale); err != nil {
			return 0, 0, err
		}
	}

	for start := 0; start < len(toEmbed); start += embedder.DefaultBatchSize {
		end := start + embedder.DefaultBatchSize
		if end > len(toEmbed) {
			end = len(toEmbed)
		}
		batch := toEmbed[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}
		resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return embedded, skipped, err
		}

		for i, chunk := range batch {
			emb := resp.Embeddings[i]
			if emb.Truncated {
				idx.logger.Warn("chunk content truncated for embedding", "chunk", chunk.ID)
			}
			err := idx.vectors.Upsert(ctx, chunk, vectorstore.Embedding{
				Provider:  emb.Provider,
				Model:     emb.Model,
				Dimension: emb.Dimension,
				Vector:    emb.Vector,
			})
			if err != nil {
				return embedded, skipped, err
			}
			embedded++
		}
	}

	return embedded, skipped, nil
}

// RemoveItem deletes the item from both stores. The text index delete stays
// buffered until Commit; the vector delete is immediate. Removing an item
// that was never indexed is a no-op.
func (idx *Indexer) RemoveItem(ctx context.Context, name string) error {
	if err := idx.text.Remove(ctx, name); err != nil {
		return err
	}
	return idx.vectors.DeleteItem(ctx, name)
}

// Commit flushes buffered text index writes.
func (idx *Indexer) Commit(ctx context.Context) error {
	return idx.text.Commit(ctx)
}

// RebuildTextIndex replaces the text index contents with the given items.
// Idempotent; concurrent searches keep seeing the previous snapshot until
// the rebuild transaction commits.
func (idx *Indexer) RebuildTextIndex(ctx context.Context, items []*types.Item) error {
	if !idx.rebuildLock.TryAcquire() {
		return ErrRebuildInProgress
	}
	defer idx.rebuildLock.Release()

	return idx.text.Rebuild(ctx, items)
}

// RebuildEmbeddings re-chunks and re-embeds every item from scratch under
// the current model. Idempotent.
func (idx *Indexer) RebuildEmbeddings(ctx context.Context, items []*types.Item) (*Stats, error) {
	if !idx.rebuildLock.TryAcquire() {
		return nil, ErrRebuildInProgress
	}
	defer idx.rebuildLock.Release()

	startTime := time.Now()
	if err := idx.vectors.Clear(ctx); err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, item := range items {
		embedded, skipped, err := idx.embedItem(ctx, item)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			stats.ItemsFailed++
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("item %s: %v", item.Name, err))
			continue
		}
		stats.ItemsIndexed++
		stats.ChunksEmbedded += embedded
		stats.ChunksSkipped += skipped
		stats.ChunksCreated += embedded + skipped
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("embeddings rebuilt",
		"items", stats.ItemsIndexed, "failed", stats.ItemsFailed,
		"chunks", stats.ChunksEmbedded, "duration", stats.Duration)
	return stats, nil
}

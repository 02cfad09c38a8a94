package embedder

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Pool fans batch embedding work out over a bounded worker pool. Results are
// returned in input order and are value-identical to calling GenerateBatch
// serially on each slice of DefaultBatchSize texts.
type Pool struct {
	embedder Embedder
	pool     *ants.Pool
}

// NewPool creates a pool with the given worker count. Non-positive counts
// fall back to a single worker.
func NewPool(e Embedder, workers int) (*Pool, error) {
	if workers <= 0 {
		workers = 1
	}
	p, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}
	return &Pool{embedder: e, pool: p}, nil
}

// EmbedAll embeds every text, splitting the input into batches of
// DefaultBatchSize and running them concurrently. The first batch error
// aborts the whole call.
func (p *Pool) EmbedAll(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([]*Embedding, len(texts))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(texts); start += DefaultBatchSize {
		end := start + DefaultBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()

			mu.Lock()
			aborted := firstErr != nil
			mu.Unlock()
			if aborted || ctx.Err() != nil {
				return
			}

			resp, err := p.embedder.GenerateBatch(ctx, BatchEmbeddingRequest{
				Texts: texts[start:end],
				Model: model,
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("batch %d-%d: %w", start, end, err)
				}
				mu.Unlock()
				return
			}
			copy(out[start:end], resp.Embeddings)
		})
		if err != nil {
			wg.Done()
			return nil, fmt.Errorf("failed to submit embedding batch: %w", err)
		}
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Release shuts the worker pool down.
func (p *Pool) Release() {
	p.pool.Release()
}

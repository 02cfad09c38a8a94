package searcher

import (
	"context"
	"fmt"

	"github.com/mdevan/promptdex/internal/embedder"
	"github.com/mdevan/promptdex/internal/fuzzy"
	"github.com/mdevan/promptdex/internal/textindex"
	"github.com/mdevan/promptdex/internal/vectorstore"
	"github.com/mdevan/promptdex/pkg/types"
)

// DefaultMinSimilarity filters semantic hits when the request sets no
// threshold. NoMinSimilarity disables the threshold entirely; a zero
// request value means "use the default".
const (
	DefaultMinSimilarity = 0.55
	NoMinSimilarity      = -1
)

// FuzzyBackend serves approximate string matching over the live item
// collection. It holds no index, so it is always ready.
type FuzzyBackend struct {
	matcher  *fuzzy.Matcher
	resolver Resolver
}

// NewFuzzyBackend creates the fuzzy strategy backend.
func NewFuzzyBackend(resolver Resolver) *FuzzyBackend {
	return &FuzzyBackend{matcher: fuzzy.New(), resolver: resolver}
}

func (b *FuzzyBackend) Strategy() types.Strategy { return types.StrategyFuzzy }

func (b *FuzzyBackend) Ready() bool { return true }

func (b *FuzzyBackend) Search(ctx context.Context, req Request) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := b.matcher.Search(req.Query, b.resolver.Items())
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{ItemName: r.ItemName, Score: r.Score})
	}
	return hits, nil
}

// TextBackend serves field-weighted full-text queries from the committed
// text index snapshot.
type TextBackend struct {
	index *textindex.Index
}

// NewTextBackend creates the inverted-text strategy backend.
func NewTextBackend(index *textindex.Index) *TextBackend {
	return &TextBackend{index: index}
}

func (b *TextBackend) Strategy() types.Strategy { return types.StrategyText }

func (b *TextBackend) Ready() bool { return b.index != nil }

func (b *TextBackend) Search(ctx context.Context, req Request) ([]Hit, error) {
	q := textindex.Query{
		Text:          req.Query,
		Scope:         req.Scope,
		Limit:         req.Limit * 2,
		CaseSensitive: req.CaseSensitive,
		Regex:         req.Regex,
	}
	// Source and category restrict candidates inside the index; the filters
	// the index cannot evaluate get wider oversampling instead, so the
	// controller's post-merge filtering does not starve the result set.
	if f := req.Filters; f != nil {
		q.Source = f.Source
		q.Category = f.Category
		if f.Tag != "" || f.HasArgument != "" || f.NoArgs {
			q.Limit = req.Limit * 10
		}
	}

	results, err := b.index.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{ItemName: r.ItemName, Score: r.Score, Excerpt: r.Excerpt})
	}
	return hits, nil
}

// SemanticBackend embeds the query and ranks stored chunk vectors by cosine
// similarity, reducing chunk hits to the best score per item.
type SemanticBackend struct {
	embedder *embedder.Service
	store    *vectorstore.Store
}

// NewSemanticBackend creates the semantic strategy backend.
func NewSemanticBackend(svc *embedder.Service, store *vectorstore.Store) *SemanticBackend {
	return &SemanticBackend{embedder: svc, store: store}
}

func (b *SemanticBackend) Strategy() types.Strategy { return types.StrategySemantic }

func (b *SemanticBackend) Ready() bool { return b.embedder != nil && b.store != nil }

func (b *SemanticBackend) Search(ctx context.Context, req Request) ([]Hit, error) {
	emb, err := b.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	minSim := req.MinSimilarity
	switch {
	case minSim == NoMinSimilarity:
		minSim = 0
	case minSim == 0:
		minSim = DefaultMinSimilarity
	}

	// The vector store carries no item metadata, so filtered requests
	// oversample and leave the filtering to the controller.
	overfetch := req.Limit * 4
	if req.Filters != nil {
		overfetch = req.Limit * 10
	}

	matches, err := b.store.Nearest(ctx, emb.Vector, overfetch, minSim, b.embedder.Model())
	if err != nil {
		return nil, err
	}

	// Best chunk per item wins; the excerpt is the matched chunk's opening.
	hits := make([]Hit, 0, len(matches))
	seen := make(map[string]int)
	for _, m := range matches {
		if i, ok := seen[m.ItemName]; ok {
			if m.Similarity > hits[i].Score {
				hits[i].Score = m.Similarity
				hits[i].Excerpt = textindex.Excerpt(m.Content, req.Query, req.CaseSensitive)
			}
			continue
		}
		seen[m.ItemName] = len(hits)
		hits = append(hits, Hit{
			ItemName: m.ItemName,
			Score:    m.Similarity,
			Excerpt:  textindex.Excerpt(m.Content, req.Query, req.CaseSensitive),
		})
	}
	return hits, nil
}

package searcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdevan/promptdex/pkg/types"
)

// stubResolver serves a fixed item set.
type stubResolver struct {
	items map[string]*types.Item
}

func newStubResolver(items ...*types.Item) *stubResolver {
	r := &stubResolver{items: make(map[string]*types.Item)}
	for _, item := range items {
		r.items[item.Name] = item
	}
	return r
}

func (r *stubResolver) Get(name string) (*types.Item, error) {
	item, ok := r.items[name]
	if !ok {
		return nil, fmt.Errorf("item not found: %s", name)
	}
	return item, nil
}

func (r *stubResolver) Items() []*types.Item {
	items := make([]*types.Item, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	return items
}

// stubBackend returns canned hits, an error, or blocks until cancelled.
type stubBackend struct {
	strategy types.Strategy
	hits     []Hit
	err      error
	delay    time.Duration
	ready    bool
}

func (b *stubBackend) Strategy() types.Strategy { return b.strategy }
func (b *stubBackend) Ready() bool              { return b.ready }

func (b *stubBackend) Search(ctx context.Context, req Request) ([]Hit, error) {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.hits, nil
}

func simpleItem(name string) *types.Item {
	return &types.Item{Name: name, Title: "Title " + name, Source: types.SourceBuiltin}
}

func TestSearchMergesByItemName(t *testing.T) {
	resolver := newStubResolver(simpleItem("shared"), simpleItem("text-only"))
	s := New(resolver, []Backend{
		&stubBackend{strategy: types.StrategyFuzzy, ready: true, hits: []Hit{
			{ItemName: "shared", Score: 0.8},
		}},
		&stubBackend{strategy: types.StrategyText, ready: true, hits: []Hit{
			{ItemName: "shared", Score: 0.6, Excerpt: "shared excerpt"},
			{ItemName: "text-only", Score: 0.9},
		}},
	}, nil)

	resp, err := s.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.False(t, resp.Partial)

	byName := make(map[string]types.SearchResult)
	for _, r := range resp.Results {
		byName[r.ItemName] = r
	}

	shared := byName["shared"]
	assert.ElementsMatch(t, []types.Strategy{types.StrategyFuzzy, types.StrategyText}, shared.Strategies)
	// Max score 0.8 boosted by one extra agreeing strategy.
	assert.InDelta(t, 0.8*1.1, shared.Score, 1e-9)
	assert.Equal(t, "shared excerpt", shared.Excerpt)

	textOnly := byName["text-only"]
	assert.Equal(t, []types.Strategy{types.StrategyText}, textOnly.Strategies)
	assert.InDelta(t, 0.9, textOnly.Score, 1e-9)
}

func TestFuseScoreClampedToOne(t *testing.T) {
	cfg := DefaultFusionConfig()
	assert.Equal(t, 1.0, fuseScore(1.0, 3, cfg))
	assert.InDelta(t, 0.55, fuseScore(0.5, 2, cfg), 1e-9)
	assert.Equal(t, 0.0, fuseScore(0.9, 0, cfg))
}

func TestSearchRanksAndLimits(t *testing.T) {
	items := make([]*types.Item, 0, 10)
	hits := make([]Hit, 0, 10)
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("item-%d", i)
		items = append(items, simpleItem(name))
		hits = append(hits, Hit{ItemName: name, Score: float64(i) / 10})
	}
	s := New(newStubResolver(items...), []Backend{
		&stubBackend{strategy: types.StrategyText, ready: true, hits: hits},
	}, nil)

	resp, err := s.Search(context.Background(), Request{Query: "q", Limit: 3})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "item-9", resp.Results[0].ItemName)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 3, resp.Results[2].Rank)
	assert.True(t, resp.Results[0].Score >= resp.Results[1].Score)
}

func TestSearchDegradesToPartial(t *testing.T) {
	resolver := newStubResolver(simpleItem("found"))
	s := New(resolver, []Backend{
		&stubBackend{strategy: types.StrategyFuzzy, ready: true, hits: []Hit{{ItemName: "found", Score: 0.7}}},
		&stubBackend{strategy: types.StrategySemantic, ready: true, err: errors.New("provider down")},
	}, nil)

	resp, err := s.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "provider down")
	require.Len(t, resp.Results, 1)
}

func TestSearchSlowBackendDropped(t *testing.T) {
	resolver := newStubResolver(simpleItem("fast-hit"))
	s := New(resolver, []Backend{
		&stubBackend{strategy: types.StrategyFuzzy, ready: true, hits: []Hit{{ItemName: "fast-hit", Score: 0.9}}},
		&stubBackend{strategy: types.StrategyText, ready: true, delay: time.Second},
	}, nil)

	resp, err := s.Search(context.Background(), Request{Query: "q", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "timed out")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "fast-hit", resp.Results[0].ItemName)
}

func TestSearchAllBackendsFailed(t *testing.T) {
	s := New(newStubResolver(), []Backend{
		&stubBackend{strategy: types.StrategyText, ready: true, err: errors.New("index corrupt")},
		&stubBackend{strategy: types.StrategySemantic, ready: false},
	}, nil)

	_, err := s.Search(context.Background(), Request{Query: "q"})
	require.ErrorIs(t, err, ErrNoBackendAvailable)
	assert.Contains(t, err.Error(), "index corrupt")
}

func TestSearchUnregisteredStrategy(t *testing.T) {
	resolver := newStubResolver(simpleItem("x"))
	s := New(resolver, []Backend{
		&stubBackend{strategy: types.StrategyFuzzy, ready: true, hits: []Hit{{ItemName: "x", Score: 1}}},
	}, nil)

	resp, err := s.Search(context.Background(), Request{
		Query:      "q",
		Strategies: []types.Strategy{types.StrategyFuzzy, types.StrategySemantic},
	})
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	assert.Contains(t, resp.Warnings[0], "not registered")
}

func TestSearchCancellationDiscardsResults(t *testing.T) {
	resolver := newStubResolver(simpleItem("x"))
	s := New(resolver, []Backend{
		&stubBackend{strategy: types.StrategyFuzzy, ready: true, delay: 200 * time.Millisecond, hits: []Hit{{ItemName: "x", Score: 1}}},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Search(ctx, Request{Query: "q"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchFilters(t *testing.T) {
	withTag := simpleItem("tagged")
	withTag.Tags = []string{"special"}
	withTag.Source = types.SourceLocal
	withArgs := simpleItem("parametrized")
	withArgs.Arguments = []types.Argument{{Name: "target"}}
	plain := simpleItem("plain")

	resolver := newStubResolver(withTag, withArgs, plain)
	allHits := []Hit{
		{ItemName: "tagged", Score: 0.9},
		{ItemName: "parametrized", Score: 0.8},
		{ItemName: "plain", Score: 0.7},
	}
	s := New(resolver, []Backend{
		&stubBackend{strategy: types.StrategyText, ready: true, hits: allHits},
	}, nil)
	ctx := context.Background()

	resp, err := s.Search(ctx, Request{Query: "q", Filters: &Filters{Tag: "special"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "tagged", resp.Results[0].ItemName)

	resp, err = s.Search(ctx, Request{Query: "q", Filters: &Filters{HasArgument: "target"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "parametrized", resp.Results[0].ItemName)

	resp, err = s.Search(ctx, Request{Query: "q", Filters: &Filters{NoArgs: true}})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)

	resp, err = s.Search(ctx, Request{Query: "q", Filters: &Filters{Source: types.SourceLocal}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "tagged", resp.Results[0].ItemName)
}

func TestSearchSkipsStaleIndexEntries(t *testing.T) {
	// The backend knows an item the library no longer has.
	resolver := newStubResolver(simpleItem("alive"))
	s := New(resolver, []Backend{
		&stubBackend{strategy: types.StrategyText, ready: true, hits: []Hit{
			{ItemName: "alive", Score: 0.5},
			{ItemName: "deleted", Score: 0.9},
		}},
	}, nil)

	resp, err := s.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "alive", resp.Results[0].ItemName)
}

func TestSearchValidation(t *testing.T) {
	s := New(newStubResolver(), []Backend{
		&stubBackend{strategy: types.StrategyFuzzy, ready: true},
	}, nil)
	ctx := context.Background()

	_, err := s.Search(ctx, Request{Query: "  "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Search(ctx, Request{Query: "a(b", Regex: true})
	assert.ErrorIs(t, err, ErrInvalidRegex)

	_, err = s.Search(ctx, Request{Query: "q", MinSimilarity: 1.5})
	assert.Error(t, err)

	_, err = s.Search(ctx, Request{Query: "q", MinSimilarity: -0.5})
	assert.Error(t, err)

	// The no-threshold sentinel is valid input.
	_, err = s.Search(ctx, Request{Query: "q", MinSimilarity: NoMinSimilarity})
	assert.NoError(t, err)
}

func TestSearchCache(t *testing.T) {
	resolver := newStubResolver(simpleItem("cached"))
	backend := &stubBackend{strategy: types.StrategyFuzzy, ready: true, hits: []Hit{{ItemName: "cached", Score: 0.8}}}
	s := New(resolver, []Backend{backend}, nil)
	ctx := context.Background()

	first, err := s.Search(ctx, Request{Query: "q", UseCache: true})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(ctx, Request{Query: "q", UseCache: true})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	// A different request shape misses.
	third, err := s.Search(ctx, Request{Query: "q", Limit: 5, UseCache: true})
	require.NoError(t, err)
	assert.False(t, third.CacheHit)

	s.InvalidateCache()
	fourth, err := s.Search(ctx, Request{Query: "q", UseCache: true})
	require.NoError(t, err)
	assert.False(t, fourth.CacheHit)
}

func TestDeterministicTieBreak(t *testing.T) {
	resolver := newStubResolver(simpleItem("bravo"), simpleItem("alpha"))
	s := New(resolver, []Backend{
		&stubBackend{strategy: types.StrategyText, ready: true, hits: []Hit{
			{ItemName: "bravo", Score: 0.5},
			{ItemName: "alpha", Score: 0.5},
		}},
	}, nil)

	for i := 0; i < 5; i++ {
		resp, err := s.Search(context.Background(), Request{Query: "q"})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, "alpha", resp.Results[0].ItemName)
	}
}

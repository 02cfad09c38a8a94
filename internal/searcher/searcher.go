package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mdevan/promptdex/pkg/types"
)

// Defaults for request fields left unset.
const (
	DefaultLimit           = 20
	MaxLimit               = 100
	DefaultStrategyTimeout = 2 * time.Second
	DefaultCacheTTL        = time.Hour
)

var (
	// ErrEmptyQuery is returned for a blank query string
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrInvalidRegex is returned when a regex query fails to compile
	ErrInvalidRegex = errors.New("invalid regex")
	// ErrNoBackendAvailable is returned when every requested strategy failed
	ErrNoBackendAvailable = errors.New("no search backend available")
)

// Hit is one raw result from a single backend, scored in [0, 1].
type Hit struct {
	ItemName string
	Score    float64
	Excerpt  string
}

// Backend is one search strategy the controller can dispatch to.
type Backend interface {
	// Strategy identifies the backend
	Strategy() types.Strategy

	// Search runs the query and returns item-level hits
	Search(ctx context.Context, req Request) ([]Hit, error)

	// Ready reports whether the backend can serve queries right now
	Ready() bool
}

// Resolver supplies item metadata for result assembly and pre-rank filters.
type Resolver interface {
	Get(name string) (*types.Item, error)
	Items() []*types.Item
}

// Filters restrict results before ranking.
type Filters struct {
	Source      types.Source // Only items from this source
	Category    string       // Only items in this category
	Tag         string       // Only items carrying this tag
	HasArgument string       // Only items declaring this argument
	NoArgs      bool         // Only items with no arguments at all
}

// Request contains parameters for one search operation.
type Request struct {
	Query         string
	Strategies    []types.Strategy // Empty means all registered backends
	Scope         types.FieldScope
	Limit         int
	CaseSensitive bool
	Regex         bool
	MinSimilarity float64 // Semantic threshold: 0 uses the backend default, NoMinSimilarity disables it
	Filters       *Filters
	UseCache      bool
	CacheTTL      time.Duration
	Timeout       time.Duration // Per-strategy budget
}

// Response contains merged search results and dispatch metadata.
type Response struct {
	Results  []types.SearchResult
	Partial  bool     // One or more strategies were dropped
	Warnings []string // Why they were dropped
	Counts   map[types.Strategy]int
	Duration time.Duration
	CacheHit bool
}

// cacheEntry is a cached response with its expiration time.
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// FusionConfig tunes how per-strategy scores merge into one ranking.
type FusionConfig struct {
	// AgreementBoost is added per extra agreeing strategy:
	// fused = max * (1 + AgreementBoost*(n-1)), clamped to 1.
	AgreementBoost float64
}

// DefaultFusionConfig returns the standard fusion tuning.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{AgreementBoost: 0.1}
}

// Searcher dispatches a query across the registered strategy backends
// concurrently and fuses their results into one ranked list keyed by item
// name. A slow or failing backend is dropped with a warning rather than
// failing the whole query.
type Searcher struct {
	backends map[types.Strategy]Backend
	resolver Resolver
	fusion   FusionConfig
	logger   *slog.Logger

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a Searcher over the given backends.
func New(resolver Resolver, backends []Backend, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[[32]byte, *cacheEntry](1000)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	byStrategy := make(map[types.Strategy]Backend, len(backends))
	for _, b := range backends {
		byStrategy[b.Strategy()] = b
	}

	return &Searcher{
		backends: byStrategy,
		resolver: resolver,
		fusion:   DefaultFusionConfig(),
		logger:   logger,
		cache:    cache,
	}
}

// SetFusion replaces the fusion tuning.
func (s *Searcher) SetFusion(cfg FusionConfig) {
	if cfg.AgreementBoost < 0 {
		cfg.AgreementBoost = 0
	}
	s.fusion = cfg
}

// Search dispatches the request and returns the fused ranking.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	outcomes := s.dispatch(ctx, req)
	if err := ctx.Err(); err != nil {
		// Cancellation discards whatever arrived.
		return nil, err
	}

	response, err := s.assemble(req, outcomes)
	if err != nil {
		return nil, err
	}
	response.Duration = time.Since(startTime)

	if req.UseCache {
		s.storeInCache(req, response)
	}
	return response, nil
}

// outcome is one backend's dispatch result.
type outcome struct {
	strategy types.Strategy
	hits     []Hit
	err      error
}

// dispatch fans the query out to every requested backend with a per-strategy
// timeout.
func (s *Searcher) dispatch(ctx context.Context, req Request) []outcome {
	strategies := req.Strategies

	outcomes := make([]outcome, len(strategies))
	var wg sync.WaitGroup
	for i, strategy := range strategies {
		backend, ok := s.backends[strategy]
		if !ok {
			outcomes[i] = outcome{strategy: strategy, err: fmt.Errorf("strategy %s not registered", strategy)}
			continue
		}
		if !backend.Ready() {
			outcomes[i] = outcome{strategy: strategy, err: fmt.Errorf("strategy %s not ready", strategy)}
			continue
		}

		wg.Add(1)
		go func(i int, backend Backend) {
			defer wg.Done()

			searchCtx, cancel := context.WithTimeout(ctx, req.Timeout)
			defer cancel()

			hits, err := backend.Search(searchCtx, req)
			if err != nil && searchCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				err = fmt.Errorf("strategy %s timed out after %s", backend.Strategy(), req.Timeout)
			}
			outcomes[i] = outcome{strategy: backend.Strategy(), hits: hits, err: err}
		}(i, backend)
	}
	wg.Wait()
	return outcomes
}

// merged accumulates per-strategy evidence for one item.
type merged struct {
	scores  map[types.Strategy]float64
	excerpt string
}

// assemble fuses per-backend hits into the final ranked response.
func (s *Searcher) assemble(req Request, outcomes []outcome) (*Response, error) {
	response := &Response{Counts: make(map[types.Strategy]int)}

	byName := make(map[string]*merged)
	failed := 0
	for _, out := range outcomes {
		if out.err != nil {
			failed++
			response.Partial = true
			response.Warnings = append(response.Warnings, out.err.Error())
			s.logger.Warn("search strategy dropped", "strategy", string(out.strategy), "error", out.err)
			continue
		}
		response.Counts[out.strategy] = len(out.hits)

		for _, hit := range out.hits {
			m, ok := byName[hit.ItemName]
			if !ok {
				m = &merged{scores: make(map[types.Strategy]float64)}
				byName[hit.ItemName] = m
			}
			if hit.Score > m.scores[out.strategy] {
				m.scores[out.strategy] = hit.Score
			}
			if m.excerpt == "" {
				m.excerpt = hit.Excerpt
			}
		}
	}

	if failed == len(outcomes) {
		return nil, fmt.Errorf("%w: %s", ErrNoBackendAvailable, strings.Join(response.Warnings, "; "))
	}

	results := make([]types.SearchResult, 0, len(byName))
	for name, m := range byName {
		item, err := s.resolver.Get(name)
		if err != nil {
			// Index entry for an item the library no longer has.
			continue
		}
		if !matchesFilters(item, req.Filters) {
			continue
		}

		strategies := make([]types.Strategy, 0, len(m.scores))
		maxScore := 0.0
		for strategy, score := range m.scores {
			strategies = append(strategies, strategy)
			if score > maxScore {
				maxScore = score
			}
		}
		sort.Slice(strategies, func(i, j int) bool { return strategies[i] < strategies[j] })

		results = append(results, types.SearchResult{
			ItemName:    name,
			Score:       fuseScore(maxScore, len(strategies), s.fusion),
			Strategies:  strategies,
			Title:       item.Title,
			Description: item.Description,
			Excerpt:     m.excerpt,
			Source:      item.Source,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ItemName < results[j].ItemName
	})
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	response.Results = results
	return response, nil
}

// fuseScore combines the best per-strategy score with an agreement boost for
// each additional strategy that found the item.
func fuseScore(maxScore float64, strategies int, cfg FusionConfig) float64 {
	if strategies < 1 {
		return 0
	}
	fused := maxScore * (1 + cfg.AgreementBoost*float64(strategies-1))
	if fused > 1 {
		return 1
	}
	return fused
}

// matchesFilters applies the pre-rank item filters.
func matchesFilters(item *types.Item, f *Filters) bool {
	if f == nil {
		return true
	}
	if f.Source != "" && item.Source != f.Source {
		return false
	}
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.Tag != "" && !item.HasTag(f.Tag) {
		return false
	}
	if f.HasArgument != "" && !item.HasArgument(f.HasArgument) {
		return false
	}
	if f.NoArgs && len(item.Arguments) > 0 {
		return false
	}
	return true
}

// validateRequest checks and defaults the request in place. Input errors
// surface synchronously, before any backend runs.
func (s *Searcher) validateRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	if req.Regex {
		if _, err := regexp.Compile(req.Query); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRegex, err)
		}
	}
	if req.MinSimilarity != NoMinSimilarity && (req.MinSimilarity < 0 || req.MinSimilarity > 1) {
		return fmt.Errorf("min similarity %v outside [0, 1]", req.MinSimilarity)
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultStrategyTimeout
	}
	if req.CacheTTL <= 0 {
		req.CacheTTL = DefaultCacheTTL
	}

	if len(req.Strategies) == 0 {
		req.Strategies = make([]types.Strategy, 0, len(s.backends))
		for strategy := range s.backends {
			req.Strategies = append(req.Strategies, strategy)
		}
		sort.Slice(req.Strategies, func(i, j int) bool { return req.Strategies[i] < req.Strategies[j] })
	}
	return nil
}

// checkCache returns a copy of a live cached response, or nil.
func (s *Searcher) checkCache(req Request) *Response {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeInCache(req Request, response *Response) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Called after index mutations.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// copyResponse deep-copies a response so cached entries never alias caller
// slices.
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}

	dst := &Response{
		Partial:  src.Partial,
		Duration: src.Duration,
		CacheHit: src.CacheHit,
		Results:  make([]types.SearchResult, len(src.Results)),
		Counts:   make(map[types.Strategy]int, len(src.Counts)),
	}
	dst.Warnings = append(dst.Warnings, src.Warnings...)
	for k, v := range src.Counts {
		dst.Counts[k] = v
	}
	for i, r := range src.Results {
		dst.Results[i] = r
		dst.Results[i].Strategies = append([]types.Strategy(nil), r.Strategies...)
	}
	return dst
}

// computeQueryHash builds a stable cache key for a request.
func computeQueryHash(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	fmt.Fprintf(&data, "|%v|%d|%t|%t|%.3f|%s", req.Strategies, req.Limit,
		req.CaseSensitive, req.Regex, req.MinSimilarity, string(req.Scope))
	if req.Filters != nil {
		fmt.Fprintf(&data, "|%s|%s|%s|%s|%t", string(req.Filters.Source),
			req.Filters.Category, req.Filters.Tag, req.Filters.HasArgument, req.Filters.NoArgs)
	}
	return sha256.Sum256([]byte(data.String()))
}

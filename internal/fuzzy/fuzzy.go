package fuzzy

import (
	"sort"

	"github.com/sahilm/fuzzy"

	"github.com/mdevan/promptdex/pkg/types"
)

// Field weights. Name matches dominate; the other fields contribute at half
// weight, matching how the text index orders field contributions.
const (
	nameWeight      = 1.0
	secondaryWeight = 0.5
)

// Matcher scores items against a query with approximate string matching.
// It is stateless and holds no index: every call scans the item slice it is
// given, which keeps it always available regardless of backend state.
type Matcher struct{}

// New creates a new Matcher.
func New() *Matcher {
	return &Matcher{}
}

// Search ranks items by fuzzy relevance to query. Items that match none of
// their fields are omitted. Scores are normalized to (0, 1] against the best
// raw score in the result set; ties are broken by shorter item name.
func (m *Matcher) Search(query string, items []*types.Item) []types.SearchResult {
	if query == "" || len(items) == 0 {
		return nil
	}

	type scored struct {
		item  *types.Item
		score float64
	}

	candidates := make([]scored, 0, len(items))
	best := 0.0
	for _, item := range items {
		score, ok := m.scoreItem(query, item)
		if !ok {
			continue
		}
		if score > best {
			best = score
		}
		candidates = append(candidates, scored{item: item, score: score})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if len(candidates[i].item.Name) != len(candidates[j].item.Name) {
			return len(candidates[i].item.Name) < len(candidates[j].item.Name)
		}
		return candidates[i].item.Name < candidates[j].item.Name
	})

	results := make([]types.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = types.SearchResult{
			ItemName:    c.item.Name,
			Rank:        i + 1,
			Score:       normalize(c.score, best),
			Strategies:  []types.Strategy{types.StrategyFuzzy},
			Title:       c.item.Title,
			Description: c.item.Description,
			Source:      c.item.Source,
		}
	}
	return results
}

// scoreItem returns the best weighted field score for the item, and whether
// any field matched at all.
func (m *Matcher) scoreItem(query string, item *types.Item) (float64, bool) {
	best := 0.0
	matched := false

	if score, ok := matchField(query, item.Name); ok {
		matched = true
		best = maxScore(best, score*nameWeight)
	}
	for _, field := range []string{item.Title, item.Description, item.Category} {
		if score, ok := matchField(query, field); ok {
			matched = true
			best = maxScore(best, score*secondaryWeight)
		}
	}
	for _, tag := range item.Tags {
		if score, ok := matchField(query, tag); ok {
			matched = true
			best = maxScore(best, score*secondaryWeight)
		}
	}

	return best, matched
}

// matchField fuzzy-matches query against one field value. The underlying
// matcher rewards contiguous runs and prefix positions over scattered
// character matches, which is exactly the ranking the engine wants for
// typo-tolerant lookups.
func matchField(query, value string) (float64, bool) {
	if value == "" {
		return 0, false
	}
	matches := fuzzy.Find(query, []string{value})
	if len(matches) == 0 {
		return 0, false
	}
	score := float64(matches[0].Score)
	if score < 1 {
		// Weak matches (heavy gap penalties) still count as matches but
		// contribute a floor score so normalization keeps them above zero.
		score = 1
	}
	return score, true
}

// normalize maps a raw score into (0, 1] against the best score in the set.
func normalize(score, best float64) float64 {
	if best <= 0 {
		return 1
	}
	n := score / best
	if n <= 0 {
		n = 1 / best
	}
	if n > 1 {
		n = 1
	}
	return n
}

func maxScore(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

package types

// Strategy identifies one of the retrieval backends. The set is closed:
// every backend the engine dispatches to is one of these.
type Strategy string

const (
	StrategyFuzzy    Strategy = "fuzzy"
	StrategyText     Strategy = "text"
	StrategySemantic Strategy = "semantic"
)

// FieldScope restricts which item fields a query matches against.
type FieldScope string

const (
	ScopeAll         FieldScope = "all"
	ScopeName        FieldScope = "name"
	ScopeDescription FieldScope = "description"
	ScopeContent     FieldScope = "content"
)

// SearchResult represents a single ranked hit. Results are unique by item
// name within one response; hits from multiple strategies are merged before
// ranking.
type SearchResult struct {
	// Identification
	ItemName string
	Rank     int // Position in result set (1-based)

	// Scoring
	Score float64 // Normalized to [0, 1]

	// Which backend(s) contributed this result
	Strategies []Strategy

	// Display metadata, sufficient for the host to render a ranked list
	Title       string
	Description string
	Excerpt     string
	Source      Source
}

// HasStrategy reports whether the given backend contributed to this result.
func (sr *SearchResult) HasStrategy(s Strategy) bool {
	for _, st := range sr.Strategies {
		if st == s {
			return true
		}
	}
	return false
}

// Validate checks if the search result is valid.
func (sr *SearchResult) Validate() error {
	if sr.ItemName == "" {
		return ErrInvalidItemName
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.Score < 0 || sr.Score > 1 {
		return ErrInvalidScore
	}
	if len(sr.Strategies) == 0 {
		return ErrMissingStrategy
	}
	return nil
}

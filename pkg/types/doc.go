// Package types provides shared type definitions for the promptdex engine.
//
// This package defines the domain types used across the engine's components:
// library items, chunks, search strategies, and search results.
//
// # Core Types
//
// Item is one unit of library content, a prompt template or a code fragment:
//
//	item := &types.Item{
//	    Name:        "code-review",
//	    Description: "A prompt for reviewing code",
//	    Body:        "Review the following code: {{code}}",
//	    Source:      types.SourceBuiltin,
//	}
//
// Chunk represents a contiguous span of an item's body, the unit of semantic
// embedding:
//
//	chunk := &types.Chunk{
//	    ItemName:  "code-review",
//	    Content:   body,
//	    StartLine: 1,
//	    EndLine:   12,
//	    Kind:      types.ChunkWholeItem,
//	}
//
// # Search Results
//
// SearchResult carries an item reference, a normalized score, and the set of
// strategies that contributed:
//
//	result := &types.SearchResult{
//	    ItemName:   "code-review",
//	    Rank:       1,
//	    Score:      0.92,
//	    Strategies: []types.Strategy{types.StrategyText, types.StrategySemantic},
//	}
//
// Scores are normalized to [0, 1], with higher values indicating better
// matches. Results are unique by item name within one response.
package types

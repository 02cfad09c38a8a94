// Package chunker splits library items into retrievable chunks for
// embedding and semantic search.
//
// # Chunking Strategy
//
// Plain-text items (prompt templates, notes) produce exactly one whole-item
// chunk. Source-code items in a recognized language are split into
// declaration-level spans via the parser package, one chunk per function,
// method, or declaration group. Unrecognized languages and parse failures
// degrade to whole-item chunking; chunking never fails indexing.
//
// # Determinism
//
// Re-chunking unchanged content yields byte-identical boundaries and chunk
// IDs, which is what lets the indexer recognize unchanged chunks and skip
// re-embedding them.
package chunker

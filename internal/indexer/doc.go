// Package indexer coordinates the indexing pipeline: item -> text index,
// and item -> chunks -> embeddings -> vector store. Items index concurrently
// under a bounded worker count; a failing item is recorded as a warning and
// skipped so one bad item never sinks a batch. Chunks whose content hash and
// embedding model match what is already stored skip re-embedding, which
// makes repeated runs over an unchanged library cheap. Full rebuilds of
// either store are idempotent and mutually exclusive.
package indexer

// Package embedder generates vector embeddings for chunk and query text.
//
// Three providers implement the Embedder interface:
//
//   - openai: the OpenAI embeddings API (requires OPENAI_API_KEY)
//   - ollama: a local Ollama server (PROMPTDEX_OLLAMA_URL, defaults to
//     localhost)
//   - local: deterministic hash-derived vectors with no network dependency
//
// Provider selection happens through NewFromEnv, which honors
// PROMPTDEX_EMBEDDING_PROVIDER and otherwise auto-detects from available
// configuration, falling back to local.
//
// All providers share an LRU cache keyed by content hash, retry transient
// API failures with exponential backoff, and truncate over-long input
// deterministically at MaxInputRunes so re-embedding the same content always
// yields the same vector. Every embedding is tagged with the model that
// produced it; storage uses the tag to keep vectors from different models
// out of the same similarity ranking.
//
// Service wraps an Embedder to allow hot model swaps: Reload drains in-flight
// requests before replacing the provider. Pool runs large batch jobs over a
// bounded worker pool while preserving input order.
package embedder

// Package engine is the top-level facade over the whole search stack. It
// owns the item library, the persisted text index and vector store under
// <root>/.promptdex/, the embedding service, and the query controller, and
// exposes search plus the maintenance operations (sync, commit, rebuilds,
// model reload) as one API for a host program to embed.
package engine

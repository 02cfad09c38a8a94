// Package storage provides the shared SQLite plumbing for the engine's two
// persistent stores: open-time integrity checking, driver selection via
// build tags, and a semver-ordered migration runner.
//
// Both the text index and the vector store are caches of state derived from
// the item collection. Corruption detected at open time is therefore a
// terminal condition for the file, not for the library: the caller is told
// to rebuild.
package storage

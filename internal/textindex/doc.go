// Package textindex provides the persistent inverted text index over the
// item library. It stores every item's searchable fields in SQLite and
// queries them through the FTS5 engine with per-field weights, so a term hit
// in an item's name outranks the same hit buried in its body.
//
// Writes are buffered and only become visible after an explicit Commit (or
// when the buffer crosses its auto-commit threshold); readers always see the
// last committed snapshot. Regex and case-sensitive queries bypass the
// full-text engine and scan stored field values directly, since FTS5
// tokenization is case-insensitive.
package textindex

// Package parser extracts declaration-level spans from source-code item
// bodies using the go/ast standard library.
//
// The parser is intentionally narrow: it recognizes Go and reports line
// ranges for top-level functions, methods, and declaration groups. The
// chunker uses these spans to produce function-level chunks; any language
// the parser does not support degrades to whole-item chunking.
//
// Parse failures are non-fatal. A partial AST still yields spans, and the
// syntax error is surfaced to the caller so indexing can record a warning
// without aborting.
package parser

// Package searcher coordinates the strategy backends behind one query API.
//
// A request names the strategies to run (fuzzy, text, semantic, or any
// subset); the Searcher dispatches them concurrently, each under its own
// timeout. Backends that fail or run out of time are dropped with a warning
// and the response is marked partial; the query only fails outright when
// every requested backend is unavailable.
//
// Results merge by item name. An item found by several strategies keeps its
// best single-strategy score, boosted slightly per extra agreeing strategy
// and clamped to 1, so corroborated hits rise without ever out-scoring a
// perfect single-strategy match by more than the clamp allows. Responses can
// be cached per request shape; index mutations invalidate the cache.
package searcher

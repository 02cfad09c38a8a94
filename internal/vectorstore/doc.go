// Package vectorstore persists embedded chunks and answers nearest-neighbor
// queries over them. Vectors are stored as little-endian float32 blobs
// alongside the chunk text and its provenance (item, line span, content hash,
// embedding model). Similarity ranking happens in Go with cosine similarity
// mapped onto [0, 1], and queries only consider rows embedded by the model
// currently in use, so swapping models never mixes incompatible vector
// spaces.
package vectorstore

package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// ChunkKind represents the kind of retrievable unit a chunk is
type ChunkKind string

const (
	ChunkWholeItem ChunkKind = "whole_item"
	ChunkFunction  ChunkKind = "function"
	ChunkBlock     ChunkKind = "block"
)

// Chunk represents a contiguous span of an item's body used as the unit of
// embedding and semantic retrieval. Chunks are regenerated wholesale whenever
// the parent item's body changes; they are never mutated in place.
type Chunk struct {
	// Identification. ID is derived deterministically from the parent item
	// name and the span, so re-chunking unchanged content yields identical IDs.
	ID       string
	ItemName string // Back-reference by name, resolved through the library

	// Content
	Content     string
	ContentHash [32]byte // SHA-256 for change detection and embedding reuse

	// Location
	StartLine int
	EndLine   int

	// Metadata
	Language string // Detected source language, "" for plain text
	Kind     ChunkKind
}

// ChunkID derives the deterministic identifier for a span of an item's body.
func ChunkID(itemName string, startLine, endLine int) string {
	return fmt.Sprintf("%s:%d-%d", itemName, startLine, endLine)
}

// ComputeContentHash computes the SHA-256 hash of the chunk content.
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// Validate performs comprehensive validation of the chunk.
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}
	if c.ItemName == "" {
		return errors.New("chunk must reference a parent item")
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	switch c.Kind {
	case ChunkWholeItem, ChunkFunction, ChunkBlock:
	default:
		return errors.New("invalid chunk kind")
	}
	var zeroHash [32]byte
	if c.ContentHash == zeroHash {
		return errors.New("content hash must be computed")
	}
	return nil
}

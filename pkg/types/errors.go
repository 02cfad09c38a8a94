package types

import "errors"

// Domain errors for type validation
var (
	// Search result errors
	ErrInvalidItemName = errors.New("invalid item name")
	ErrInvalidRank     = errors.New("rank must be >= 1")
	ErrInvalidScore    = errors.New("score must be between 0 and 1")
	ErrMissingStrategy = errors.New("at least one strategy must contribute")
)

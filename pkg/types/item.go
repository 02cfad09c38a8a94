package types

import "errors"

// Source identifies where an item was loaded from. Later sources override
// earlier ones when two items share a name: builtin < user < local.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceUser    Source = "user"
	SourceLocal   Source = "local"
)

// Argument describes a named placeholder an item's body expects.
type Argument struct {
	Name        string
	Description string
	Required    bool
	Default     string
}

// Item is one unit of library content: a prompt template or a source-code
// fragment. The library owns Items; every index holds derived, rebuildable
// state only.
type Item struct {
	// Identification
	Name        string // Unique across the library
	Title       string
	Description string

	// Classification
	Category string
	Tags     []string

	// Content
	Body     string
	Language string // Detected or declared language of the body, "" for plain text

	// Provenance
	Source Source
	Path   string // File the item was loaded from, if any

	// Declared or inferred placeholders
	Arguments []Argument
}

// HasArgument reports whether the item declares an argument with the given name.
func (it *Item) HasArgument(name string) bool {
	for _, arg := range it.Arguments {
		if arg.Name == name {
			return true
		}
	}
	return false
}

// HasTag reports whether the item carries the given tag.
func (it *Item) HasTag(tag string) bool {
	for _, t := range it.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Validate checks structural invariants of the item.
func (it *Item) Validate() error {
	if it.Name == "" {
		return errors.New("item name cannot be empty")
	}
	switch it.Source {
	case SourceBuiltin, SourceUser, SourceLocal:
	default:
		return errors.New("invalid item source")
	}
	return nil
}

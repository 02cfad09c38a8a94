// Package library loads and holds the item collection the search engine
// serves. Items are markdown files with a YAML front matter header carrying
// name, title, description, category, tags, and arguments. Files load from
// an ordered list of roots; an item name appearing in a later root replaces
// the earlier one, giving local definitions precedence over user ones and
// user ones precedence over builtins.
package library

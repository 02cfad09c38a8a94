package textindex

import (
	"strings"
	"unicode/utf8"
)

// excerptRadius is how many runes of context surround the first match.
const excerptRadius = 60

// Excerpt returns a short fragment of body centered on the first occurrence
// of any query term, with ellipses marking truncated edges. When no term
// occurs in the body it falls back to the body's opening.
func Excerpt(body, query string, caseSensitive bool) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}

	pos := -1
	for _, term := range excerptTerms(query) {
		var idx int
		if caseSensitive {
			idx = strings.Index(body, term)
		} else {
			idx = strings.Index(strings.ToLower(body), strings.ToLower(term))
		}
		if idx >= 0 && (pos < 0 || idx < pos) {
			pos = idx
		}
	}
	if pos < 0 {
		pos = 0
	}

	return window(body, pos)
}

// excerptTerms extracts the bare terms from a query, dropping operators and
// phrase quotes.
func excerptTerms(query string) []string {
	raw := strings.FieldsFunc(query, func(r rune) bool {
		return !isTermRune(r)
	})
	terms := make([]string, 0, len(raw))
	for _, t := range raw {
		switch strings.ToUpper(t) {
		case "AND", "OR", "NOT":
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

// window cuts a rune-boundary-safe span around pos.
func window(body string, pos int) string {
	start := pos
	for i := 0; i < excerptRadius && start > 0; i++ {
		r, size := utf8.DecodeLastRuneInString(body[:start])
		if r == '\n' {
			break
		}
		start -= size
	}
	end := pos
	for i := 0; i < 2*excerptRadius && end < len(body); i++ {
		r, size := utf8.DecodeRuneInString(body[end:])
		if r == '\n' && end > pos {
			break
		}
		end += size
	}

	out := strings.TrimSpace(body[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(body) {
		out += "…"
	}
	return out
}

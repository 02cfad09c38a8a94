package textindex

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/mdevan/promptdex/pkg/types"
)

// DefaultLimit caps result count when the caller does not specify one.
const DefaultLimit = 20

// Query describes one text search. Source and Category restrict candidates
// inside the index itself, so a selective filter cannot starve the result
// set below Limit.
type Query struct {
	Text          string
	Scope         types.FieldScope
	Limit         int
	CaseSensitive bool
	Regex         bool
	Source        types.Source
	Category      string
}

// Result is one text index hit with its normalized relevance score.
type Result struct {
	ItemName    string
	Title       string
	Description string
	Source      types.Source
	Score       float64
	Excerpt     string
}

// Search runs a query against the last committed snapshot. Buffered writes
// are invisible. Regex and case-sensitive queries scan stored field values
// directly; everything else goes through the full-text engine, which matches
// case-insensitively and supports AND, OR, NOT, and quoted phrases.
func (ix *Index) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	if q.Regex || q.CaseSensitive {
		return ix.scanSearch(ctx, q)
	}
	return ix.ftsSearch(ctx, q)
}

// ftsColumns maps a field scope to the full-text column filter. Empty means
// all columns.
func ftsColumns(scope types.FieldScope) string {
	switch scope {
	case types.ScopeName:
		return "name"
	case types.ScopeDescription:
		return "title description"
	case types.ScopeContent:
		return "body"
	default:
		return ""
	}
}

func (ix *Index) ftsSearch(ctx context.Context, q Query) ([]Result, error) {
	rows, err := ix.queryFTS(ctx, q, q.Text)
	if err != nil {
		// Operator-looking input that is not valid query syntax gets one
		// retry as a sanitized bag of terms.
		sanitized := sanitizeFTSQuery(q.Text)
		if sanitized == "" {
			return nil, fmt.Errorf("unusable search query %q", q.Text)
		}
		rows, err = ix.queryFTS(ctx, q, sanitized)
		if err != nil {
			return nil, fmt.Errorf("text search failed: %w", err)
		}
	}
	defer rows.Close()

	return collectResults(rows, q.Text, q)
}

func (ix *Index) queryFTS(ctx context.Context, q Query, match string) (*sql.Rows, error) {
	if cols := ftsColumns(q.Scope); cols != "" {
		match = fmt.Sprintf("{%s} : (%s)", cols, match)
	}

	// Column weights put name first, then title and description, then
	// category and tags, then body.
	query := `
		SELECT i.name, i.title, i.description, i.source, i.body,
		       bm25(items_fts, 10.0, 8.0, 8.0, 4.0, 4.0, 1.0) AS score
		FROM items_fts f
		JOIN items i ON i.rowid = f.rowid
		WHERE items_fts MATCH ?`
	args := []interface{}{match}
	if q.Source != "" {
		query += " AND i.source = ?"
		args = append(args, string(q.Source))
	}
	if q.Category != "" {
		query += " AND i.category = ?"
		args = append(args, q.Category)
	}
	query += " ORDER BY score LIMIT ?"
	args = append(args, q.Limit)

	return ix.db.QueryContext(ctx, query, args...)
}

// sanitizeFTSQuery strips query syntax down to quoted bare terms joined by
// implicit AND.
func sanitizeFTSQuery(text string) string {
	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !isTermRune(r)
	})
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " ")
}

func isTermRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		r > 127
}

func collectResults(rows *sql.Rows, queryText string, q Query) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		var source, body string
		var bm25 float64
		if err := rows.Scan(&r.ItemName, &r.Title, &r.Description, &source, &body, &bm25); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		r.Source = types.Source(source)
		r.Score = normalizeBM25(bm25)
		r.Excerpt = Excerpt(body, queryText, q.CaseSensitive)
		results = append(results, r)
	}
	return results, rows.Err()
}

// normalizeBM25 maps a raw bm25 rank (more negative is better) into (0, 1]
// with better matches scoring higher.
func normalizeBM25(score float64) float64 {
	abs := math.Abs(score)
	return abs / (abs + 5.0)
}

// scanSearch evaluates regex and case-sensitive queries against the stored
// field values. It trades the full-text engine's speed for exact semantics.
func (ix *Index) scanSearch(ctx context.Context, q Query) ([]Result, error) {
	match, err := compileMatcher(q)
	if err != nil {
		return nil, err
	}

	query := `SELECT name, title, description, category, tags, body, source FROM items`
	var conds []string
	var args []interface{}
	if q.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(q.Source))
	}
	if q.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, q.Category)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var name, title, description, category, tags, body, source string
		if err := rows.Scan(&name, &title, &description, &category, &tags, &body, &source); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}

		score := 0.0
		switch q.Scope {
		case types.ScopeName:
			score = scanScore(match, fieldHit{name, 1.0})
		case types.ScopeDescription:
			score = scanScore(match, fieldHit{title, 0.8}, fieldHit{description, 0.8})
		case types.ScopeContent:
			score = scanScore(match, fieldHit{body, 0.5})
		default:
			score = scanScore(match,
				fieldHit{name, 1.0},
				fieldHit{title, 0.8},
				fieldHit{description, 0.8},
				fieldHit{category, 0.6},
				fieldHit{tags, 0.6},
				fieldHit{body, 0.5})
		}
		if score == 0 {
			continue
		}

		results = append(results, Result{
			ItemName:    name,
			Title:       title,
			Description: description,
			Source:      types.Source(source),
			Score:       score,
			Excerpt:     Excerpt(body, q.Text, q.CaseSensitive),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortResults(results)
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

type fieldHit struct {
	value  string
	weight float64
}

// scanScore returns the best field weight where the matcher hits.
func scanScore(match func(string) bool, fields ...fieldHit) float64 {
	best := 0.0
	for _, f := range fields {
		if f.weight > best && match(f.value) {
			best = f.weight
		}
	}
	return best
}

func compileMatcher(q Query) (func(string) bool, error) {
	if q.Regex {
		pattern := q.Text
		if !q.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegex, err)
		}
		return re.MatchString, nil
	}
	if q.CaseSensitive {
		needle := q.Text
		return func(s string) bool { return strings.Contains(s, needle) }, nil
	}
	needle := strings.ToLower(q.Text)
	return func(s string) bool { return strings.Contains(strings.ToLower(s), needle) }, nil
}

func sortResults(results []Result) {
	// Score desc, then name asc for determinism.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ItemName < results[j].ItemName
	})
}

package textindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mdevan/promptdex/internal/storage"
	"github.com/mdevan/promptdex/pkg/types"
)

// DefaultAutoCommitThreshold is the buffered-write count that triggers an
// implicit commit.
const DefaultAutoCommitThreshold = 64

var (
	// ErrEmptyQuery is returned for a blank search string
	ErrEmptyQuery = errors.New("empty search query")
	// ErrInvalidRegex is returned when a regex query fails to compile
	ErrInvalidRegex = errors.New("invalid regex")
)

// Index is the persistent field-weighted inverted text index. Writes are
// buffered in memory and become visible to readers only after Commit; a
// single logical writer owns each commit while concurrent readers always
// see the last committed snapshot.
type Index struct {
	db     *sql.DB
	logger *slog.Logger

	mu         sync.Mutex // guards pending, tombstones, and the commit itself
	pending    map[string]*types.Item
	tombstones map[string]struct{}

	autoCommitThreshold int
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// WithAutoCommitThreshold sets how many buffered writes trigger an implicit
// commit. Zero or negative disables size-triggered commits.
func WithAutoCommitThreshold(n int) Option {
	return func(ix *Index) {
		ix.autoCommitThreshold = n
	}
}

// Open opens (or creates) the text index at dbPath.
func Open(dbPath string, opts ...Option) (*Index, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open text index: %w", err)
	}

	if err := storage.ApplyMigrations(context.Background(), db, AllMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply text index migrations: %w", err)
	}

	ix := &Index{
		db:                  db,
		logger:              slog.Default(),
		pending:             make(map[string]*types.Item),
		tombstones:          make(map[string]struct{}),
		autoCommitThreshold: DefaultAutoCommitThreshold,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Close flushes nothing: uncommitted writes are intentionally dropped, since
// the index is rebuildable derived state.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Index buffers an upsert for the item. The write is not visible to
// searches until the next commit. Crossing the auto-commit threshold
// flushes synchronously.
func (ix *Index) Index(ctx context.Context, item *types.Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("cannot index item: %w", err)
	}

	ix.mu.Lock()
	delete(ix.tombstones, item.Name)
	ix.pending[item.Name] = item
	needsFlush := ix.autoCommitThreshold > 0 && len(ix.pending)+len(ix.tombstones) >= ix.autoCommitThreshold
	ix.mu.Unlock()

	if needsFlush {
		return ix.Commit(ctx)
	}
	return nil
}

// Remove buffers a delete for the named item.
func (ix *Index) Remove(ctx context.Context, name string) error {
	ix.mu.Lock()
	delete(ix.pending, name)
	ix.tombstones[name] = struct{}{}
	needsFlush := ix.autoCommitThreshold > 0 && len(ix.pending)+len(ix.tombstones) >= ix.autoCommitThreshold
	ix.mu.Unlock()

	if needsFlush {
		return ix.Commit(ctx)
	}
	return nil
}

// Pending returns the number of buffered, uncommitted writes.
func (ix *Index) Pending() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.pending) + len(ix.tombstones)
}

// Commit flushes all buffered writes in one transaction, making them visible
// to readers. Committing with nothing pending is a successful no-op.
func (ix *Index) Commit(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ix.pending) == 0 && len(ix.tombstones) == 0 {
		return nil
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for name := range ix.tombstones {
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE name = ?`, name); err != nil {
			return fmt.Errorf("failed to delete item %s: %w", name, err)
		}
	}
	for _, item := range ix.pending {
		if err := upsertItem(ctx, tx, item); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit text index: %w", err)
	}

	ix.logger.Debug("text index committed",
		"upserts", len(ix.pending), "deletes", len(ix.tombstones))
	ix.pending = make(map[string]*types.Item)
	ix.tombstones = make(map[string]struct{})
	return nil
}

// Rebuild replaces the entire committed index with the given items in one
// transaction. Buffered writes are discarded: the item collection is the
// source of truth. Idempotent.
func (ix *Index) Rebuild(ctx context.Context, items []*types.Item) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("failed to clear text index: %w", err)
	}
	for _, item := range items {
		if err := upsertItem(ctx, tx, item); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rebuild: %w", err)
	}

	ix.pending = make(map[string]*types.Item)
	ix.tombstones = make(map[string]struct{})
	ix.logger.Info("text index rebuilt", "items", len(items))
	return nil
}

// Count returns the number of committed entries.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n)
	return n, err
}

// upsertItem writes one item's entry wholesale; there is no partial field
// patching.
func upsertItem(ctx context.Context, q storage.Querier, item *types.Item) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO items (name, title, description, category, tags, body, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			tags = excluded.tags,
			body = excluded.body,
			source = excluded.source,
			updated_at = excluded.updated_at
	`, item.Name, item.Title, item.Description, item.Category,
		strings.Join(item.Tags, " "), item.Body, string(item.Source))
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.Name, err)
	}
	return nil
}

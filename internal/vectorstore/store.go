package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mdevan/promptdex/internal/storage"
	"github.com/mdevan/promptdex/pkg/types"
)

// ErrDimensionMismatch is returned when a vector's length disagrees with its
// declared dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Embedding pairs a vector with the provider and model that produced it.
type Embedding struct {
	Provider  string
	Model     string
	Dimension int
	Vector    []float32
}

// Match is one nearest-neighbor hit.
type Match struct {
	ChunkID    string
	ItemName   string
	Content    string
	StartLine  int
	EndLine    int
	Similarity float64 // mapped onto [0, 1]
}

// Store persists chunks and their embedding vectors in SQLite. Similarity
// search deserializes candidate vectors and ranks them in Go, which keeps
// the store portable across build modes.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens (or creates) the vector store at dbPath.
func Open(dbPath string, opts ...Option) (*Store, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	if err := storage.ApplyMigrations(context.Background(), db, AllMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply vector store migrations: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes a chunk and its embedding, replacing any prior row for the
// same chunk ID.
func (s *Store) Upsert(ctx context.Context, chunk *types.Chunk, emb Embedding) error {
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("cannot store chunk: %w", err)
	}
	if len(emb.Vector) != emb.Dimension {
		return fmt.Errorf("%w: got %d values for dimension %d",
			ErrDimensionMismatch, len(emb.Vector), emb.Dimension)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (chunk_id, item_name, content, content_hash,
			start_line, end_line, language, kind,
			provider, model, dimension, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			item_name = excluded.item_name,
			content = excluded.content,
			content_hash = excluded.content_hash,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			language = excluded.language,
			kind = excluded.kind,
			provider = excluded.provider,
			model = excluded.model,
			dimension = excluded.dimension,
			vector = excluded.vector
	`, chunk.ID, chunk.ItemName, chunk.Content, chunk.ContentHash[:],
		chunk.StartLine, chunk.EndLine, chunk.Language, string(chunk.Kind),
		emb.Provider, emb.Model, emb.Dimension, serializeVector(emb.Vector))
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
	}
	return nil
}

// DeleteItem removes every chunk belonging to the named item. Deleting an
// item that has no chunks is a successful no-op.
func (s *Store) DeleteItem(ctx context.Context, itemName string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE item_name = ?`, itemName)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", itemName, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("deleted item chunks", "item", itemName, "chunks", n)
	}
	return nil
}

// DeleteChunks removes the given chunks by ID. Unknown IDs are ignored.
func (s *Store) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	for _, id := range chunkIDs {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE chunk_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete chunk %s: %w", id, err)
		}
	}
	return nil
}

// Clear removes every stored chunk.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("failed to clear vector store: %w", err)
	}
	return nil
}

// Nearest returns up to limit chunks whose vectors are most similar to the
// query vector, restricted to rows embedded by the given model and scoring
// at or above minSimilarity. An empty result is a valid answer.
func (s *Store) Nearest(ctx context.Context, query []float32, limit int, minSimilarity float64, model string) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, item_name, content, start_line, end_line, vector
		FROM chunks
		WHERE model = ?
	`, model)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []Match
	for rows.Next() {
		var m Match
		var blob []byte
		if err := rows.Scan(&m.ChunkID, &m.ItemName, &m.Content, &m.StartLine, &m.EndLine, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}

		m.Similarity = similarityScore(cosineSimilarity(query, deserializeVector(blob)))
		if m.Similarity < minSimilarity {
			continue
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ChunkHashes returns the content hash and model for every stored chunk of
// the item, keyed by chunk ID. The indexer uses this to skip re-embedding
// unchanged content.
func (s *Store) ChunkHashes(ctx context.Context, itemName string) (map[string]ChunkFingerprint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, content_hash, model FROM chunks WHERE item_name = ?
	`, itemName)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hashes := make(map[string]ChunkFingerprint)
	for rows.Next() {
		var id, model string
		var hash []byte
		if err := rows.Scan(&id, &hash, &model); err != nil {
			return nil, fmt.Errorf("failed to scan chunk hash: %w", err)
		}
		var fp ChunkFingerprint
		copy(fp.ContentHash[:], hash)
		fp.Model = model
		hashes[id] = fp
	}
	return hashes, rows.Err()
}

// ChunkFingerprint identifies a stored chunk's content and embedding model.
type ChunkFingerprint struct {
	ContentHash [32]byte
	Model       string
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

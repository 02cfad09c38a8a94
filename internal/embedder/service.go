package embedder

import (
	"context"
	"log/slog"
	"sync"
)

// Service wraps an Embedder so the underlying model can be swapped at
// runtime. In-flight requests hold a read lock; Reload takes the write lock,
// which drains them before the swap, so no request ever spans two models.
type Service struct {
	mu       sync.RWMutex
	embedder Embedder
	logger   *slog.Logger
}

// NewService wraps the given embedder.
func NewService(e Embedder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: e, logger: logger}
}

// GenerateEmbedding delegates to the current embedder.
func (s *Service) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedder.GenerateEmbedding(ctx, req)
}

// GenerateBatch delegates to the current embedder.
func (s *Service) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedder.GenerateBatch(ctx, req)
}

// Dimension reports the current embedder's dimension.
func (s *Service) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedder.Dimension()
}

// Provider reports the current provider name.
func (s *Service) Provider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedder.Provider()
}

// Model reports the current model identifier.
func (s *Service) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedder.Model()
}

// Reload swaps in a new embedder after draining in-flight requests, closing
// the old one. Vectors produced by the old model remain in storage tagged
// with its identifier; searches against the new model simply stop seeing
// them until a re-embed.
func (s *Service) Reload(next Embedder) error {
	s.mu.Lock()
	old := s.embedder
	s.embedder = next
	s.mu.Unlock()

	s.logger.Info("embedding model reloaded",
		"provider", next.Provider(), "model", next.Model())
	return old.Close()
}

// Close closes the current embedder.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedder.Close()
}

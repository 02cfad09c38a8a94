package embedder

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHashDeterministic(t *testing.T) {
	h1 := ComputeHash("some chunk content")
	h2 := ComputeHash("some chunk content")
	h3 := ComputeHash("different content")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestTruncateInput(t *testing.T) {
	short, cut := TruncateInput("short text")
	assert.Equal(t, "short text", short)
	assert.False(t, cut)

	long := strings.Repeat("é", MaxInputRunes+100)
	got, cut := TruncateInput(long)
	assert.True(t, cut)
	assert.Equal(t, MaxInputRunes, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))

	// Truncation is deterministic.
	again, _ := TruncateInput(long)
	assert.Equal(t, got, again)
}

func TestCacheGetReturnsCopy(t *testing.T) {
	cache := NewCache(10)
	emb := &Embedding{
		Vector:    []float32{1, 2, 3},
		Dimension: 3,
		Provider:  ProviderLocal,
		Model:     "local-hash-v1",
		Hash:      "abc",
	}
	cache.Set("abc", emb)

	got, ok := cache.Get("abc")
	require.True(t, ok)
	got.Vector[0] = 99

	again, ok := cache.Get("abc")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0])
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(2)
	cache.Set("a", &Embedding{Hash: "a"})
	cache.Set("b", &Embedding{Hash: "b"})
	cache.Set("c", &Embedding{Hash: "c"})

	assert.Equal(t, 2, cache.Size())
	_, ok := cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestCacheClear(t *testing.T) {
	cache := NewCache(10)
	cache.Set("a", &Embedding{Hash: "a"})
	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestValidateRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{Text: "   "}), ErrEmptyText)
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "ok"}))
}

func TestValidateBatchRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"ok", ""}}), ErrInvalidInput)
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
}

package embedder

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceDelegates(t *testing.T) {
	local, err := NewLocalProvider(nil)
	require.NoError(t, err)
	svc := NewService(local, nil)
	defer svc.Close()

	emb, err := svc.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, LocalDimension, emb.Dimension)
	assert.Equal(t, ProviderLocal, svc.Provider())
	assert.Equal(t, local.Model(), svc.Model())
	assert.Equal(t, LocalDimension, svc.Dimension())
}

func TestServiceReloadSwapsModel(t *testing.T) {
	old, err := NewLocalProvider(nil)
	require.NoError(t, err)
	svc := NewService(old, nil)
	defer svc.Close()

	next, err := NewLocalProvider(nil)
	require.NoError(t, err)
	next.model = "local-hash-v2"

	require.NoError(t, svc.Reload(next))
	assert.Equal(t, "local-hash-v2", svc.Model())
}

func TestServiceReloadUnderLoad(t *testing.T) {
	first, err := NewLocalProvider(nil)
	require.NoError(t, err)
	svc := NewService(first, nil)
	defer svc.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				emb, err := svc.GenerateEmbedding(ctx, EmbeddingRequest{Text: "concurrent"})
				// Every response comes from exactly one model.
				assert.NoError(t, err)
				assert.Contains(t, []string{"local-hash-v1", "local-hash-v2"}, emb.Model)
			}
		}()
	}

	next, err := NewLocalProvider(nil)
	require.NoError(t, err)
	next.model = "local-hash-v2"
	require.NoError(t, svc.Reload(next))

	wg.Wait()
	assert.Equal(t, "local-hash-v2", svc.Model())
}

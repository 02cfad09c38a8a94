package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvOllamaURL, "")
}

func TestNewFromEnvDefaultsToLocal(t *testing.T) {
	clearProviderEnv(t)

	e, err := NewFromEnv()
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, ProviderLocal, e.Provider())
}

func TestNewFromEnvExplicitProvider(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(EnvProvider, "openai")
	t.Setenv(EnvOpenAIAPIKey, "test-key")

	e, err := NewFromEnv()
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, ProviderOpenAI, e.Provider())
}

func TestNewFromEnvOpenAIRequiresKey(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(EnvProvider, "openai")

	_, err := NewFromEnv()
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestNewFromEnvUnknownProvider(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(EnvProvider, "quantum")

	_, err := NewFromEnv()
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestNewFromEnvAutoDetectsOpenAI(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "test-key")

	e, err := NewFromEnv()
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, ProviderOpenAI, e.Provider())
}

func TestNewFromEnvAutoDetectsOllama(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(EnvOllamaURL, "http://localhost:11434")

	e, err := NewFromEnv()
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, ProviderOllama, e.Provider())
}

func TestNewExplicitConfig(t *testing.T) {
	e, err := New(Config{Provider: "local", CacheSize: 100})
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, ProviderLocal, e.Provider())

	_, err = New(Config{Provider: "nope"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestDetectProvider(t *testing.T) {
	clearProviderEnv(t)
	assert.Equal(t, ProviderLocal, DetectProvider())

	t.Setenv(EnvOllamaURL, "http://localhost:11434")
	assert.Equal(t, ProviderOllama, DetectProvider())

	t.Setenv(EnvOpenAIAPIKey, "k")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvProvider, "LOCAL")
	assert.Equal(t, ProviderLocal, DetectProvider())
}

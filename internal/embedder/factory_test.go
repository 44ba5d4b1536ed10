package embedder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{EnvProvider, EnvJinaAPIKey, EnvOpenAIAPIKey, EnvOllamaURL} {
		t.Setenv(v, "")
	}
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"default local", nil, ProviderLocal},
		{"explicit provider", map[string]string{EnvProvider: "OpenAI", EnvJinaAPIKey: "k"}, ProviderOpenAI},
		{"jina key", map[string]string{EnvJinaAPIKey: "k", EnvOpenAIAPIKey: "k"}, ProviderJina},
		{"openai key", map[string]string{EnvOpenAIAPIKey: "k"}, ProviderOpenAI},
		{"ollama url", map[string]string{EnvOllamaURL: "http://host:11434"}, ProviderOllama},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvJinaAPIKey, "jina-key")

	cfg := ConfigFromEnv(Config{})
	assert.Equal(t, ProviderJina, cfg.Provider)
	assert.Equal(t, "jina-key", cfg.APIKey)

	explicit := ConfigFromEnv(Config{Provider: "ollama"})
	assert.Equal(t, ProviderOllama, explicit.Provider)
	assert.Empty(t, explicit.APIKey)

	t.Setenv(EnvOllamaURL, "http://gpu:11434")
	assert.Equal(t, "http://gpu:11434", ConfigFromEnv(Config{Provider: "ollama"}).BaseURL)
}

func TestNew(t *testing.T) {
	e, err := New(Config{Provider: "local"})
	require.NoError(t, err)
	assert.IsType(t, &LocalProvider{}, e)

	e, err = New(Config{Provider: "local", CacheSize: 10})
	require.NoError(t, err)
	assert.IsType(t, &CachedEmbedder{}, e)
	assert.Equal(t, LocalDimension, e.Dimension())

	e, err = New(Config{Provider: "ollama", Dimension: 1024})
	require.NoError(t, err)
	assert.Equal(t, 1024, e.Dimension())

	_, err = New(Config{Provider: "jina"})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = New(Config{Provider: "word2vec"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestLazy_InitializesOnce(t *testing.T) {
	var builds atomic.Int32
	lazy := NewLazy(func() (Embedder, error) {
		builds.Add(1)
		return NewLocalProvider(), nil
	})
	assert.False(t, lazy.Initialized())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := lazy.Get(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, e)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	assert.True(t, lazy.Initialized())

	require.NoError(t, lazy.Close())
	assert.False(t, lazy.Initialized())
}

func TestLazy_RetriesAfterFailure(t *testing.T) {
	fail := true
	lazy := NewLazy(func() (Embedder, error) {
		if fail {
			return nil, errors.New("model missing")
		}
		return NewLocalProvider(), nil
	})

	_, err := lazy.Get(context.Background())
	assert.EqualError(t, err, "model missing")
	assert.False(t, lazy.Initialized())

	fail = false
	e, err := lazy.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())
}

func TestLazy_FromConfig(t *testing.T) {
	lazy := NewLazyFromConfig(Config{Provider: "unknown"})
	_, err := lazy.Get(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

package embedder

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrProviderFailed      = errors.New("embedding provider failed")
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
	ErrEmptyText           = errors.New("text cannot be empty")
	ErrNoProviderEnabled   = errors.New("no embedding provider configured")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
)

// Embedder turns text into fixed-size vectors. A batch result has one vector
// per input text, in input order, and every vector has Dimension() entries.
type Embedder interface {
	// GenerateEmbedding embeds a single text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateBatch embeds many texts, splitting into provider-sized requests
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimension() int
	Provider() string
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// ValidateBatch rejects empty batches and empty texts
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// checkVectors verifies that a provider returned one vector of the expected
// dimension per text. A zero dim accepts any size shared by all vectors.
func checkVectors(vectors [][]float32, texts, dim int) error {
	if len(vectors) != texts {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrProviderFailed, len(vectors), texts)
	}
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim || dim == 0 {
			return fmt.Errorf("%w: vector %d has %d entries, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}

// Cache is an LRU of vectors keyed by the SHA-256 of the embedded text
type Cache struct {
	cache *lru.Cache[[32]byte, []float32]
}

// NewCache creates a cache holding up to maxLen vectors
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[[32]byte, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[[32]byte, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector for text
func (c *Cache) Get(text string) ([]float32, bool) {
	v, ok := c.cache.Get(ComputeHash(text))
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a copy of vector for text
func (c *Cache) Set(text string, vector []float32) {
	stored := make([]float32, len(vector))
	copy(stored, vector)
	c.cache.Add(ComputeHash(text), stored)
}

func (c *Cache) Size() int {
	return c.cache.Len()
}

func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash is the cache key of a text
func ComputeHash(text string) [32]byte {
	return sha256.Sum256([]byte(text))
}

// CachedEmbedder serves repeated texts from a Cache and sends only misses to
// the wrapped provider.
type CachedEmbedder struct {
	Embedder
	cache *Cache
}

// WithCache wraps e with cache. A nil cache returns e unchanged.
func WithCache(e Embedder, cache *Cache) Embedder {
	if cache == nil {
		return e
	}
	return &CachedEmbedder{Embedder: e, cache: cache}
}

// GenerateEmbedding implements Embedder
func (c *CachedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.Embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, v)
	return v, nil
}

// GenerateBatch implements Embedder
func (c *CachedEmbedder) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.Embedder.GenerateBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := checkVectors(vectors, len(missTexts), c.Dimension()); err != nil {
		return nil, err
	}
	for j, v := range vectors {
		out[missIdx[j]] = v
		c.cache.Set(missTexts[j], v)
	}
	return out, nil
}

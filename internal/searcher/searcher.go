package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/RealFaceCode/ContextBrain/internal/storage"
	"github.com/RealFaceCode/ContextBrain/internal/vectorstore"
	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

const (
	// DefaultLimit is the number of semantic hits returned when none is requested
	DefaultLimit = 10
	// MaxLimit caps a semantic search
	MaxLimit = 100
	// DefaultThreshold is the minimum similarity of a semantic hit
	DefaultThreshold = 0.2
	// DefaultCacheSize is the number of cached semantic responses
	DefaultCacheSize = 1000
	// DefaultCacheTTL bounds the age of a cached response
	DefaultCacheTTL = time.Hour
)

var (
	// ErrEmptyQuery is returned for a blank semantic query
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrInvalidKind is returned for an unknown element kind
	ErrInvalidKind = errors.New("invalid element type")
	// ErrInvalidThreshold is returned for a threshold outside [0,1]
	ErrInvalidThreshold = errors.New("similarity threshold must be between 0 and 1")
)

// VectorIndex is the part of the vector collection the searcher reads
type VectorIndex interface {
	Query(ctx context.Context, text string, topK int) ([]vectorstore.Hit, error)
	Count(ctx context.Context) (int, error)
}

// SearchRequest contains parameters for a semantic search
type SearchRequest struct {
	Query     string
	Limit     int
	Threshold float64 // Hits scoring below are dropped
	UseCache  bool
	CacheTTL  time.Duration
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Duration     time.Duration
	CacheHit     bool
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Options configures a Searcher
type Options struct {
	InternalPrefixes []string // Module prefixes treated as internal, besides "." and "main"
	CacheSize        int
	Logger           *slog.Logger
}

// Searcher answers queries against both stores
type Searcher struct {
	store    storage.Storage
	vectors  VectorIndex
	prefixes []string
	logger   *slog.Logger

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// NewSearcher creates a Searcher over the structured store and the vector index
func NewSearcher(store storage.Storage, vectors VectorIndex, opts Options) *Searcher {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[32]byte, *cacheEntry](size)
	if err != nil {
		// Only a non-positive size fails
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefixes := append([]string{".", "main"}, opts.InternalPrefixes...)
	return &Searcher{
		store:    store,
		vectors:  vectors,
		prefixes: prefixes,
		logger:   logger,
		cache:    cache,
	}
}

// Search returns the elements most similar to the query, best first. Every
// result scores at least the threshold, so raising it yields a subset.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	hits, err := s.vectors.Query(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < req.Threshold {
			continue
		}
		results = append(results, types.SearchResult{
			Element: s.resolveHit(ctx, hit),
			Score:   hit.Score,
			Snippet: types.MakeSnippet(hit.Document),
		})
	}

	response := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Duration:     time.Since(startTime),
	}

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	s.logger.Debug("semantic search", "query", req.Query, "hits", len(hits), "results", len(results))
	return response, nil
}

// resolveHit loads the element behind a hit, falling back to the hit's
// metadata when the structured row is gone
func (s *Searcher) resolveHit(ctx context.Context, hit vectorstore.Hit) types.Element {
	e, err := s.store.GetElement(ctx, hit.Project, hit.ID)
	if err == nil {
		return *e
	}
	if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("failed to load element for hit", "id", hit.ID, "error", err)
	}

	el := types.Element{
		ID:       hit.ID,
		Kind:     types.ElementKind(hit.Metadata["type"]),
		Name:     hit.Metadata["name"],
		FilePath: hit.Metadata["file_path"],
		Content:  hit.Document,
	}
	el.Location.LineStart, _ = strconv.Atoi(hit.Metadata["line_start"])
	el.Location.LineEnd, _ = strconv.Atoi(hit.Metadata["line_end"])
	el.Metadata.Language = hit.Metadata["language"]
	return el
}

// validateRequest ensures search request is valid
func validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.Threshold < 0 || req.Threshold > 1 {
		return ErrInvalidThreshold
	}

	if req.CacheTTL == 0 {
		req.CacheTTL = DefaultCacheTTL
	}

	return nil
}

// checkCache looks up a live cached response
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a copy of response
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// copySearchResponse creates a copy that shares no slices with src
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := &SearchResponse{
		TotalResults: src.TotalResults,
		Duration:     src.Duration,
		CacheHit:     src.CacheHit,
		Results:      make([]types.SearchResult, len(src.Results)),
	}
	for i, r := range src.Results {
		dst.Results[i] = r
		el := &dst.Results[i].Element
		el.Dependencies = append([]string(nil), r.Element.Dependencies...)
		el.Relationships = append([]types.Relationship(nil), r.Element.Relationships...)
		el.Embedding = append([]float32(nil), r.Element.Embedding...)
		el.Metadata.BaseClasses = append([]string(nil), r.Element.Metadata.BaseClasses...)
		el.Metadata.Parameters = append([]string(nil), r.Element.Metadata.Parameters...)
		el.Metadata.ImportedNames = append([]string(nil), r.Element.Metadata.ImportedNames...)
	}
	return dst
}

// computeQueryHash keys the cache on everything that changes the answer
func computeQueryHash(req SearchRequest) [32]byte {
	key := fmt.Sprintf("%s|%d|%.4f", req.Query, req.Limit, req.Threshold)
	return sha256.Sum256([]byte(key))
}

// InvalidateCache drops every cached response. Called after a re-index.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen reports the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

// Structural finds elements by kind and wildcard name pattern within an
// optional path scope. Not-found yields an empty slice.
func (s *Searcher) Structural(ctx context.Context, kind types.ElementKind, namePattern, scope string) ([]types.Element, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return s.store.SearchStructural(ctx, storage.StructuralQuery{
		Kind:        kind,
		NamePattern: namePattern,
		Scope:       scope,
	})
}

// IndexStats summarizes both stores
type IndexStats struct {
	*storage.Stats
	VectorDocuments int `json:"vector_documents"`
}

// Stats reports element totals by kind and language plus the vector count
func (s *Searcher) Stats(ctx context.Context) (*IndexStats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.vectors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count vector documents: %w", err)
	}
	return &IndexStats{Stats: st, VectorDocuments: n}, nil
}

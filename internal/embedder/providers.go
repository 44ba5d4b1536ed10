package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/time/rate"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	LocalModel         = "local-hashing"

	JinaEndpoint      = "https://api.jina.ai/v1/embeddings"
	OpenAIEndpoint    = "https://api.openai.com/v1/embeddings"
	DefaultOllamaURL  = "http://localhost:11434"
	JinaDimension     = 1024
	OpenAIDimension   = 1536
	OllamaDimension   = 768
	LocalDimension    = 384
	MaxBatchSize      = 100
	DefaultTimeout    = 30 * time.Second
	DefaultRatePerSec = 5.0

	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// HTTPConfig configures a remote provider
type HTTPConfig struct {
	APIKey            string
	Model             string
	BaseURL           string // endpoint override, mostly for tests
	Dimension         int
	RequestsPerSecond float64
	Timeout           time.Duration
	Retry             *RetryConfig
}

func (c HTTPConfig) limiter() *rate.Limiter {
	rps := c.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRatePerSec
	}
	return rate.NewLimiter(rate.Limit(rps), max(1, int(math.Ceil(rps))))
}

func (c HTTPConfig) client() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (c HTTPConfig) retry() RetryConfig {
	if c.Retry != nil {
		return *c.Retry
	}
	return DefaultRetryConfig()
}

// RemoteProvider talks to an OpenAI-compatible /embeddings endpoint. Jina and
// OpenAI share the request and response format.
type RemoteProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
}

// NewJinaProvider creates a Jina AI embedder
func NewJinaProvider(cfg HTTPConfig) (*RemoteProvider, error) {
	return newRemote(ProviderJina, JinaEndpoint, DefaultJinaModel, JinaDimension, EnvJinaAPIKey, cfg)
}

// NewOpenAIProvider creates an OpenAI embedder
func NewOpenAIProvider(cfg HTTPConfig) (*RemoteProvider, error) {
	return newRemote(ProviderOpenAI, OpenAIEndpoint, DefaultOpenAIModel, OpenAIDimension, EnvOpenAIAPIKey, cfg)
}

func newRemote(name, endpoint, model string, dim int, keyVar string, cfg HTTPConfig) (*RemoteProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, keyVar)
	}
	if cfg.BaseURL != "" {
		endpoint = cfg.BaseURL
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	if cfg.Dimension > 0 {
		dim = cfg.Dimension
	}
	return &RemoteProvider{
		name:       name,
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		model:      model,
		dimension:  dim,
		httpClient: cfg.client(),
		limiter:    cfg.limiter(),
		retry:      cfg.retry(),
	}, nil
}

func (p *RemoteProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := p.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *RemoteProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		chunk := texts[start:min(start+MaxBatchSize, len(texts))]

		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return p.callAPI(ctx, chunk)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, p.name, err)
		}
		if err := checkVectors(vectors, len(chunk), p.dimension); err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (p *RemoteProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	sort.SliceStable(apiResp.Data, func(i, j int) bool { return apiResp.Data[i].Index < apiResp.Data[j].Index })
	vectors := make([][]float32, len(apiResp.Data))
	for i, d := range apiResp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (p *RemoteProvider) Dimension() int   { return p.dimension }
func (p *RemoteProvider) Provider() string { return p.name }
func (p *RemoteProvider) Model() string    { return p.model }

func (p *RemoteProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// OllamaProvider embeds through a local Ollama server, one text per request
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig

	mu        sync.Mutex
	dimension int
}

// NewOllamaProvider creates an Ollama embedder. The dimension is taken from
// the config or learned from the first response.
func NewOllamaProvider(cfg HTTPConfig) *OllamaProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: cfg.client(),
		limiter:    cfg.limiter(),
		retry:      cfg.retry(),
		dimension:  cfg.Dimension,
	}
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	v, err := retryWithBackoff(ctx, o.retry, func() ([]float32, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return o.callAPI(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, ProviderOllama, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dimension == 0 {
		o.dimension = len(v)
	}
	if len(v) != o.dimension || len(v) == 0 {
		return nil, fmt.Errorf("%w: got %d entries, want %d", ErrDimensionMismatch, len(v), o.dimension)
	}
	return v, nil
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := o.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{"model": o.model, "prompt": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	v := make([]float32, len(apiResp.Embedding))
	for i, x := range apiResp.Embedding {
		v[i] = float32(x)
	}
	return v, nil
}

// Dimension returns the configured or learned dimension, or OllamaDimension
// before the first response.
func (o *OllamaProvider) Dimension() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dimension == 0 {
		return OllamaDimension
	}
	return o.dimension
}

func (o *OllamaProvider) Provider() string { return ProviderOllama }
func (o *OllamaProvider) Model() string    { return o.model }

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider is an offline embedder that hashes word and character
// trigram features into a fixed number of buckets. Texts sharing identifiers
// end up close in cosine distance, which is enough for tests and for
// air-gapped use.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a local embedder with LocalDimension buckets
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{dimension: LocalDimension}
}

func (l *LocalProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	v := make([]float32, l.dimension)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		l.add(v, "raw:"+text, 1.0)
	}
	for _, tok := range tokens {
		l.add(v, "w:"+tok, 1.0)
		if len(tok) > 3 {
			for i := 0; i+3 <= len(tok); i++ {
				l.add(v, "t:"+tok[i:i+3], 0.5)
			}
		}
	}
	return NormalizeVector(v), nil
}

func (l *LocalProvider) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(v)))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := l.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (l *LocalProvider) Dimension() int   { return l.dimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return LocalModel }
func (l *LocalProvider) Close() error     { return nil }

// tokenize lowercases text and splits identifiers on non-alphanumerics and
// camelCase boundaries.
func tokenize(text string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	var prev rune
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && unicode.IsLower(prev) {
				flush()
			}
			cur = append(cur, r)
		default:
			flush()
		}
		prev = r
	}
	flush()
	return tokens
}

// NormalizeVector scales v to unit length; a zero vector is returned as is
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

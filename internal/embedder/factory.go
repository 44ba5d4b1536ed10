package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables read by ConfigFromEnv
const (
	EnvProvider     = "CONTEXTBRAIN_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOllamaURL    = "OLLAMA_URL"
)

// Config selects and configures a provider
type Config struct {
	Provider          string // jina, openai, ollama, local; empty auto-detects
	APIKey            string
	Model             string
	BaseURL           string
	Dimension         int
	RequestsPerSecond float64
	Timeout           time.Duration
	CacheSize         int // 0 disables the cache
}

// ConfigFromEnv fills the provider, keys and Ollama URL from the environment,
// keeping any value already set in base.
func ConfigFromEnv(base Config) Config {
	cfg := base
	if cfg.Provider == "" {
		cfg.Provider = os.Getenv(EnvProvider)
	}
	if cfg.Provider == "" {
		cfg.Provider = DetectProvider()
	}
	cfg.Provider = strings.ToLower(cfg.Provider)

	if cfg.APIKey == "" {
		switch cfg.Provider {
		case ProviderJina:
			cfg.APIKey = os.Getenv(EnvJinaAPIKey)
		case ProviderOpenAI:
			cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
		}
	}
	if cfg.BaseURL == "" && cfg.Provider == ProviderOllama {
		cfg.BaseURL = os.Getenv(EnvOllamaURL)
	}
	return cfg
}

// DetectProvider picks a provider from the environment:
//
//  1. CONTEXTBRAIN_EMBEDDING_PROVIDER when set
//  2. jina when JINA_API_KEY is set
//  3. openai when OPENAI_API_KEY is set
//  4. ollama when OLLAMA_URL is set
//  5. local otherwise
func DetectProvider() string {
	if p := os.Getenv(EnvProvider); p != "" {
		return strings.ToLower(p)
	}
	switch {
	case os.Getenv(EnvJinaAPIKey) != "":
		return ProviderJina
	case os.Getenv(EnvOpenAIAPIKey) != "":
		return ProviderOpenAI
	case os.Getenv(EnvOllamaURL) != "":
		return ProviderOllama
	}
	return ProviderLocal
}

// New creates an embedder from cfg, wrapped in a cache when CacheSize > 0
func New(cfg Config) (Embedder, error) {
	httpCfg := HTTPConfig{
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		BaseURL:           cfg.BaseURL,
		Dimension:         cfg.Dimension,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
	}

	var (
		e   Embedder
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		e, err = NewJinaProvider(httpCfg)
	case ProviderOpenAI:
		e, err = NewOpenAIProvider(httpCfg)
	case ProviderOllama:
		e = NewOllamaProvider(httpCfg)
	case ProviderLocal, "":
		e = NewLocalProvider()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		e = WithCache(e, NewCache(cfg.CacheSize))
	}
	return e, nil
}

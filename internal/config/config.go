// Package config loads ContextBrain settings from a TOML file and the
// environment.
//
// Precedence, lowest first:
//   - built-in defaults (Default)
//   - the TOML file, ~/.contextbrain/config.toml unless a path is given
//   - CONTEXTBRAIN_* environment variables
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/RealFaceCode/ContextBrain/internal/embedder"
	"github.com/RealFaceCode/ContextBrain/internal/extractor"
	"github.com/RealFaceCode/ContextBrain/internal/vectorstore"
)

// Environment variables applied by ApplyEnvOverrides
const (
	EnvDataDir  = "CONTEXTBRAIN_DATA_DIR"
	EnvProvider = embedder.EnvProvider
	EnvLogLevel = "CONTEXTBRAIN_LOG_LEVEL"
)

// File names inside the data directory
const (
	FileName           = "config.toml"
	StructuredDBName   = "contextbrain.db"
	VectorDirName      = "vectors"
	defaultDataDirName = ".contextbrain"
)

// Config is the complete ContextBrain configuration
type Config struct {
	// DataDir holds both databases
	DataDir string `toml:"data_dir"`

	Indexing  IndexingConfig  `toml:"indexing"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Search    SearchConfig    `toml:"search"`
	Watch     WatchConfig     `toml:"watch"`
	Log       LogConfig       `toml:"log"`
}

// IndexingConfig controls discovery and the indexing pipeline
type IndexingConfig struct {
	ExcludePatterns []string          `toml:"exclude_patterns"`
	Languages       map[string]string `toml:"languages"` // extension -> language, merged over the built-in table
	MaxFileSizeMB   int               `toml:"max_file_size_mb"`
	BatchSize       int               `toml:"batch_size"` // elements per embedding request
	Workers         int               `toml:"workers"`    // concurrent file reads, 0 for NumCPU
	Timeout         time.Duration     `toml:"timeout"`    // per run, 0 for none
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	// Provider is jina, openai, ollama or local. Empty detects from the environment.
	Provider          string        `toml:"provider"`
	Model             string        `toml:"model"`
	BaseURL           string        `toml:"base_url"`
	APIKey            string        `toml:"api_key"`
	Dimension         int           `toml:"dimension"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Timeout           time.Duration `toml:"timeout"`
	CacheSize         int           `toml:"cache_size"`
}

// SearchConfig holds query-side defaults
type SearchConfig struct {
	Threshold        float64       `toml:"threshold"`
	Limit            int           `toml:"limit"`
	CacheSize        int           `toml:"cache_size"`
	CacheTTL         time.Duration `toml:"cache_ttl"`
	InternalPrefixes []string      `toml:"internal_prefixes"`
}

// WatchConfig controls watch mode
type WatchConfig struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
}

// LogConfig controls the stderr logger
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// DefaultExcludePatterns are excluded from every index
var DefaultExcludePatterns = []string{
	"*.pyc", "*.log", "*.tmp", "*.swp", "*.bak", "*.egg-info",
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Indexing: IndexingConfig{
			ExcludePatterns: append([]string(nil), DefaultExcludePatterns...),
			MaxFileSizeMB:   10,
			BatchSize:       embedder.DefaultStageBatchSize,
			Timeout:         30 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			RequestsPerSecond: embedder.DefaultRatePerSec,
			Timeout:           embedder.DefaultTimeout,
			CacheSize:         10000,
		},
		Search: SearchConfig{
			Threshold: 0.3,
			Limit:     10,
			CacheSize: 1000,
			CacheTTL:  time.Hour,
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirName
	}
	return filepath.Join(home, defaultDataDirName)
}

// DefaultPath is the config file read when no path is given
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), FileName)
}

// Load reads the configuration. An empty path reads DefaultPath when that
// file exists and uses defaults otherwise; an explicit path must exist.
// Environment overrides are applied last, then the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.LoadTOML(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over the current values
func (c *Config) LoadTOML(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slog.Warn("unknown config keys ignored", "path", path, "keys", keys)
	}
	return nil
}

// ApplyEnvOverrides applies CONTEXTBRAIN_* variables. API keys and the
// Ollama URL are read when the embedder is configured (see EmbedderConfig).
func (c *Config) ApplyEnvOverrides() {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		c.DataDir = dir
	}
	if provider := os.Getenv(EnvProvider); provider != "" {
		c.Embedding.Provider = strings.ToLower(provider)
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
}

// ValidationError is one invalid setting
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid setting
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	validProviders = map[string]bool{
		"":                      true,
		embedder.ProviderJina:   true,
		embedder.ProviderOpenAI: true,
		embedder.ProviderOllama: true,
		embedder.ProviderLocal:  true,
	}
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// Validate reports every invalid setting as ValidateErrors
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.DataDir) == "" {
		add("data_dir", "must not be empty")
	}

	if c.Indexing.MaxFileSizeMB < 0 {
		add("indexing.max_file_size_mb", "must be >= 0, got %d", c.Indexing.MaxFileSizeMB)
	}
	if c.Indexing.BatchSize <= 0 {
		add("indexing.batch_size", "must be positive, got %d", c.Indexing.BatchSize)
	}
	if c.Indexing.Workers < 0 {
		add("indexing.workers", "must be >= 0, got %d", c.Indexing.Workers)
	}
	if c.Indexing.Timeout < 0 {
		add("indexing.timeout", "must be >= 0, got %s", c.Indexing.Timeout)
	}
	for ext := range c.Indexing.Languages {
		if !strings.HasPrefix(ext, ".") {
			add("indexing.languages", "extension %q must start with '.'", ext)
		}
	}

	if !validProviders[strings.ToLower(c.Embedding.Provider)] {
		add("embedding.provider", "unknown provider %q, must be one of: jina, openai, ollama, local", c.Embedding.Provider)
	}
	if c.Embedding.Dimension < 0 {
		add("embedding.dimension", "must be >= 0, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		add("embedding.requests_per_second", "must be >= 0, got %g", c.Embedding.RequestsPerSecond)
	}
	if c.Embedding.CacheSize < 0 {
		add("embedding.cache_size", "must be >= 0, got %d", c.Embedding.CacheSize)
	}

	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		add("search.threshold", "must be between 0 and 1, got %g", c.Search.Threshold)
	}
	if c.Search.Limit <= 0 {
		add("search.limit", "must be positive, got %d", c.Search.Limit)
	}
	if c.Search.CacheSize <= 0 {
		add("search.cache_size", "must be positive, got %d", c.Search.CacheSize)
	}

	if c.Watch.Debounce <= 0 {
		add("watch.debounce", "must be positive, got %s", c.Watch.Debounce)
	}

	if !validLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "unknown level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		add("log.format", "unknown format %q, must be text or json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// StructuredDBPath is the SQLite file of the structured index
func (c *Config) StructuredDBPath() string {
	return filepath.Join(c.DataDir, StructuredDBName)
}

// VectorDBPath is the file of the vector collection
func (c *Config) VectorDBPath() string {
	return filepath.Join(c.DataDir, VectorDirName, vectorstore.FileName)
}

// LanguageTable merges Indexing.Languages over the built-in extension table
func (c *Config) LanguageTable() map[string]string {
	table := extractor.DefaultLanguages()
	for ext, lang := range c.Indexing.Languages {
		table[ext] = lang
	}
	return table
}

// ExtractorConfig converts the indexing section for the extraction coordinator
func (c *Config) ExtractorConfig() extractor.Config {
	return extractor.Config{
		ExcludePatterns: append([]string(nil), c.Indexing.ExcludePatterns...),
		Languages:       c.LanguageTable(),
		MaxFileSizeMB:   c.Indexing.MaxFileSizeMB,
		Workers:         c.Indexing.Workers,
	}
}

// EmbedderConfig converts the embedding section, filling API keys and the
// Ollama URL from the environment
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.ConfigFromEnv(embedder.Config{
		Provider:          c.Embedding.Provider,
		APIKey:            c.Embedding.APIKey,
		Model:             c.Embedding.Model,
		BaseURL:           c.Embedding.BaseURL,
		Dimension:         c.Embedding.Dimension,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
		Timeout:           c.Embedding.Timeout,
		CacheSize:         c.Embedding.CacheSize,
	})
}

// SlogLevel maps Log.Level to a slog level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the stderr logger described by the log section
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

package extractor

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/RealFaceCode/ContextBrain/internal/parser"
	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

// ErrRootNotReadable is returned when the project root cannot be walked
var ErrRootNotReadable = types.ErrProjectRoot

// Config controls discovery and extraction
type Config struct {
	ExcludePatterns []string          // substrings or base-name globs
	Languages       map[string]string // extension -> language, nil for DefaultLanguages()
	MaxFileSizeMB   int               // 0 disables the size limit
	Workers         int               // concurrent file reads (default: runtime.NumCPU())
}

// File is one discovered source file
type File struct {
	Path     string // normalized, relative to the project root
	AbsPath  string
	Language string
	Size     int64
}

// Stats counts what happened to discovered files during extraction
type Stats struct {
	Files     int
	Parsed    int
	Fallbacks int
	Skipped   int
}

// Coordinator discovers project files and runs the matching parser on each
type Coordinator struct {
	registry *parser.Registry
	cfg      Config
	logger   *slog.Logger
}

// New creates a coordinator. A nil registry gets a fresh one.
func New(registry *parser.Registry, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = parser.NewRegistry(logger)
	}
	if cfg.Languages == nil {
		cfg.Languages = DefaultLanguages()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Coordinator{registry: registry, cfg: cfg, logger: logger}
}

// WithExcludes returns a copy of the coordinator with extra exclude patterns
func (c *Coordinator) WithExcludes(patterns []string) *Coordinator {
	if len(patterns) == 0 {
		return c
	}
	cfg := c.cfg
	cfg.ExcludePatterns = append(append([]string(nil), c.cfg.ExcludePatterns...), patterns...)
	return &Coordinator{registry: c.registry, cfg: cfg, logger: c.logger}
}

// CheckRoot verifies that root exists and is a directory
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRootNotReadable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotReadable, root)
	}
	f, err := os.Open(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRootNotReadable, err)
	}
	return f.Close()
}

// Discover walks root and returns every supported, non-excluded file in
// sorted path order.
func (c *Coordinator) Discover(root string) ([]File, error) {
	if err := CheckRoot(root); err != nil {
		return nil, err
	}

	maxBytes := int64(c.cfg.MaxFileSizeMB) * 1024 * 1024
	var files []File

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			c.logger.Warn("skipping unreadable path", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = types.NormalizePath(filepath.ToSlash(rel))

		if d.IsDir() {
			if rel != "" && c.IsExcluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || c.IsExcluded(rel) {
			return nil
		}

		lang, ok := languageFor(c.cfg.Languages, rel)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			c.logger.Warn("cannot stat file", "path", rel, "error", err)
			return nil
		}
		if maxBytes > 0 && info.Size() > maxBytes {
			c.logger.Debug("skipping large file", "path", rel, "size", info.Size())
			return nil
		}

		files = append(files, File{Path: rel, AbsPath: p, Language: lang, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// IsExcluded reports whether a normalized relative path is excluded, either by
// an always-excluded directory component or by a configured pattern. Patterns
// match as substrings of the path or as globs against any path component.
func (c *Coordinator) IsExcluded(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, part := range parts {
		for _, dir := range AlwaysExcludedDirs {
			if part == dir {
				return true
			}
		}
	}

	for _, pattern := range c.cfg.ExcludePatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if strings.Contains(rel, pattern) {
			return true
		}
		for _, part := range parts {
			if ok, _ := filepath.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}

// Supports reports whether a relative path has a configured language
func (c *Coordinator) Supports(rel string) bool {
	_, ok := languageFor(c.cfg.Languages, rel)
	return ok
}

// Extract reads and parses files concurrently. Unreadable files are logged
// and skipped; the element order follows the file order.
func (c *Coordinator) Extract(ctx context.Context, files []File) ([]types.Element, Stats, error) {
	results := make([][]types.Element, len(files))
	var parsed, fallbacks, skipped atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(f.AbsPath)
			if err != nil {
				c.logger.Warn("failed to read file", "path", f.Path, "error", err)
				skipped.Add(1)
				return nil
			}

			elements, fallback := c.ExtractFile(f.Path, f.Language, string(content))
			if fallback {
				fallbacks.Add(1)
			} else {
				parsed.Add(1)
			}
			results[i] = elements
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	var elements []types.Element
	for _, r := range results {
		elements = append(elements, r...)
	}

	stats := Stats{
		Files:     len(files),
		Parsed:    int(parsed.Load()),
		Fallbacks: int(fallbacks.Load()),
		Skipped:   int(skipped.Load()),
	}
	c.logger.Info("extraction finished", "files", stats.Files, "elements", len(elements),
		"fallbacks", stats.Fallbacks, "skipped", stats.Skipped)
	return elements, stats, nil
}

// ExtractFile parses one file's content. When the parser fails or finds
// nothing, a single whole-file module element is returned instead and the
// second result is true.
func (c *Coordinator) ExtractFile(relPath, language, content string) ([]types.Element, bool) {
	relPath = types.NormalizePath(relPath)

	elements, err := c.registry.Parse(language, content, relPath)
	if err != nil {
		c.logger.Warn("parse failed, using whole-file element", "path", relPath, "language", language, "error", err)
	}
	if err == nil {
		elements = c.dropInvalid(relPath, elements)
	}
	if err == nil && len(elements) > 0 {
		return elements, false
	}
	return []types.Element{FallbackElement(relPath, language, content)}, true
}

// dropInvalid removes elements the stores would reject, so one bad element
// costs only itself
func (c *Coordinator) dropInvalid(relPath string, elements []types.Element) []types.Element {
	valid := elements[:0]
	for _, e := range elements {
		if err := e.Validate(); err != nil {
			c.logger.Warn("dropping invalid element", "path", relPath, "id", e.ID, "error", err)
			continue
		}
		valid = append(valid, e)
	}
	return valid
}

// FallbackElement represents an entire file as one module element
func FallbackElement(relPath, language, content string) types.Element {
	relPath = types.NormalizePath(relPath)
	lines := strings.Count(content, "\n") + 1
	if strings.HasSuffix(content, "\n") {
		lines--
	}
	lines = max(lines, 1)

	e := types.Element{
		ID:       types.FileID(relPath),
		Kind:     types.KindModule,
		Name:     filepath.Base(relPath),
		FilePath: relPath,
		Location: types.Location{LineStart: 1, LineEnd: lines},
		Metadata: types.Metadata{
			Language:    language,
			LinesOfCode: lines,
		},
	}
	e.SetContent(content)
	return e
}

package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

// Parser turns the text of one file into elements. Implementations keep no
// state between calls, so a single Parser may be used from many goroutines.
type Parser interface {
	ParseFile(content, filePath string) ([]types.Element, error)
}

// Variant is the closed set of parser implementations
type Variant int

const (
	VariantGeneric Variant = iota
	VariantPython
	VariantJavaScript
	VariantMarkdown
)

func (v Variant) String() string {
	switch v {
	case VariantPython:
		return "python"
	case VariantJavaScript:
		return "javascript"
	case VariantMarkdown:
		return "markdown"
	default:
		return "generic"
	}
}

// VariantFor selects the parser variant for a language tag
func VariantFor(language string) Variant {
	switch strings.ToLower(language) {
	case "python":
		return VariantPython
	case "javascript", "typescript":
		return VariantJavaScript
	case "markdown":
		return VariantMarkdown
	default:
		return VariantGeneric
	}
}

// Registry dispatches files to the parser variant for their language
type Registry struct {
	variants map[Variant]Parser
}

// NewRegistry creates a registry holding one instance of every variant
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{variants: map[Variant]Parser{
		VariantPython:     NewPythonParser(logger),
		VariantJavaScript: NewJavaScriptParser(logger),
		VariantMarkdown:   NewMarkdownParser(logger),
		VariantGeneric:    NewGenericParser(logger),
	}}
}

// WithParser returns a copy of the registry that dispatches variant v to p
func (r *Registry) WithParser(v Variant, p Parser) *Registry {
	variants := make(map[Variant]Parser, len(r.variants))
	for k, existing := range r.variants {
		variants[k] = existing
	}
	variants[v] = p
	return &Registry{variants: variants}
}

// For returns the parser for a language tag
func (r *Registry) For(language string) Parser {
	if p, ok := r.variants[VariantFor(language)]; ok {
		return p
	}
	return r.variants[VariantGeneric]
}

// Parse runs the matching parser, converting a panic into an error so that a
// misbehaving parser never takes down an indexing run.
func (r *Registry) Parse(language, content, filePath string) (elements []types.Element, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			elements = nil
			err = fmt.Errorf("parser panic on %s: %v", filePath, rec)
		}
	}()

	p := r.For(language)
	if lp, ok := p.(languageAware); ok {
		return lp.parseWithLanguage(content, filePath, language)
	}
	return p.ParseFile(content, filePath)
}

// languageAware parsers accept the detected language tag instead of guessing it
type languageAware interface {
	parseWithLanguage(content, filePath, language string) ([]types.Element, error)
}

// splitLines splits text into lines, accepting \n and \r\n endings
func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}

// joinLines returns lines[start..end] inclusive, clamped to the slice
func joinLines(lines []string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end >= len(lines) {
		end = len(lines) - 1
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start:end+1], "\n")
}

// newElement builds an element with a kind-derived id and bounded content
func newElement(kind types.ElementKind, name, filePath, language, content string, lineStart, lineEnd int) types.Element {
	path := types.NormalizePath(filePath)
	e := types.Element{
		ID:       types.ElementID(kind, path, name, lineStart),
		Kind:     kind,
		Name:     name,
		FilePath: path,
		Location: types.Location{LineStart: lineStart, LineEnd: lineEnd},
		Metadata: types.Metadata{
			Language:    language,
			LinesOfCode: lineEnd - lineStart + 1,
		},
	}
	e.SetContent(content)
	return e
}

func intPtr(v int) *int {
	return &v
}

// isUpperIdent reports whether name has at least one letter and no lowercase letters
func isUpperIdent(name string) bool {
	hasLetter := false
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

package parser

import (
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

const (
	genericFunctionFallback = 10
	genericClassFallback    = 20
	minDocCommentLength     = 20
	docCommentName          = "Documentation comment"
)

var (
	genericImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`#include\s*[<"]([^>"]+)[>"]`),
		regexp.MustCompile(`^import\s+([^;]+);?`),
		regexp.MustCompile(`^using\s+([^;]+);`),
		regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`),
		regexp.MustCompile(`^from\s+(\S+)\s+import`),
		regexp.MustCompile(`@import\s+['"]([^'"]+)['"]`),
	}

	genericFunctionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:public|private|protected|static)?\s*(?:\w+\s+)?(\w+)\s*\([^)]*\)\s*\{`),
		regexp.MustCompile(`def\s+(\w+)\s*\([^)]*\)\s*:`),
		regexp.MustCompile(`function\s+(\w+)\s*\([^)]*\)`),
		regexp.MustCompile(`fn\s+(\w+)\s*(?:<[^>]*>)?\s*\([^)]*\)`),
		regexp.MustCompile(`func\s+(?:\([^)]*\)\s*)?(\w+)\s*(?:\[[^\]]*\])?\s*\([^)]*\)`),
		regexp.MustCompile(`\w+\s*::\s*(\w+)\s*\([^)]*\)`),
	}

	genericClassPatterns = []*regexp.Regexp{
		regexp.MustCompile(`class\s+(\w+)(?:\s*:\s*[\w\s,]+)?\s*\{`),
		regexp.MustCompile(`struct\s+(\w+)\s*\{`),
		regexp.MustCompile(`interface\s+(\w+)\s*\{`),
		regexp.MustCompile(`enum\s+(\w+)\s*\{`),
		regexp.MustCompile(`type\s+(\w+)\s+(?:struct|interface)\s*\{`),
	}

	genericVariablePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:const|final|static)\s+(?:\w+\s+)?([A-Z_][A-Z0-9_]*)\s*[=;]`),
		regexp.MustCompile(`#define\s+([A-Z_][A-Z0-9_]*)\b`),
		regexp.MustCompile(`(?:var|let|const)\s+(\w+)\s*=`),
		regexp.MustCompile(`(?:int|string|bool|float|double)\s+(\w+)\s*[=;]`),
		regexp.MustCompile(`(\w+)\s*:=\s*`),
		regexp.MustCompile(`let\s+(?:mut\s+)?(\w+)\s*[=:]`),
	}

	docLinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`/\*\*(.*?)\*/`),
		regexp.MustCompile(`///\s*(.*)`),
		regexp.MustCompile(`##\s*(.*)`),
	}

	genericMethodPattern = regexp.MustCompile(`\w+\s*\([^)]*\)\s*[{;]`)
	genericComplexity    = regexp.MustCompile(`\b(if|elif|else|for|while|try|except|finally|switch|case|catch|do|break|continue|return)\b`)
)

// genericKeywords look like function names to the cross-language patterns
var genericKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "class": true, "struct": true,
	"switch": true, "catch": true, "return": true, "else": true, "elif": true,
	"foreach": true, "using": true, "lock": true, "synchronized": true, "fixed": true,
}

var genericLanguages = map[string]string{
	".java": "java", ".cpp": "cpp", ".cxx": "cpp", ".cc": "cpp", ".hpp": "cpp",
	".c": "c", ".h": "c", ".cs": "csharp", ".go": "go", ".rs": "rust",
	".php": "php", ".rb": "ruby", ".swift": "swift", ".kt": "kotlin",
	".scala": "scala", ".sh": "bash", ".bash": "bash", ".zsh": "bash",
	".sql": "sql", ".html": "html", ".htm": "html", ".css": "css",
	".scss": "css", ".json": "json", ".yaml": "yaml", ".yml": "yaml",
	".xml": "xml", ".rst": "rst", ".r": "r", ".ps1": "powershell",
}

// GenericParser is the fallback for every language without a dedicated
// parser. It scans lines with a cross-language pattern bank and prefers
// missing an element to failing.
type GenericParser struct {
	logger *slog.Logger
}

// NewGenericParser creates the fallback parser
func NewGenericParser(logger *slog.Logger) *GenericParser {
	return &GenericParser{logger: logger}
}

// ParseFile implements Parser, guessing the language from the file extension
func (p *GenericParser) ParseFile(content, filePath string) ([]types.Element, error) {
	lang, ok := genericLanguages[strings.ToLower(path.Ext(filePath))]
	if !ok {
		lang = "unknown"
	}
	return p.parseWithLanguage(content, filePath, lang)
}

func (p *GenericParser) parseWithLanguage(content, filePath, language string) ([]types.Element, error) {
	s := &genericScan{
		lines:    splitLines(content),
		path:     types.NormalizePath(filePath),
		language: language,
	}

	var elements []types.Element
	for _, extract := range []func() []types.Element{s.imports, s.functions, s.classes, s.variables, s.comments} {
		found, err := safeExtract(extract)
		if err != nil {
			p.logger.Warn("generic extraction step failed", "path", s.path, "language", language, "error", err)
			continue
		}
		elements = append(elements, found...)
	}
	return elements, nil
}

type genericScan struct {
	lines    []string
	path     string
	language string
}

func (s *genericScan) singleLine(kind types.ElementKind, name string, i int, line string) types.Element {
	e := newElement(kind, name, s.path, s.language, line, i+1, i+1)
	e.Location.ColEnd = len(line)
	return e
}

func firstMatch(patterns []*regexp.Regexp, line string) []string {
	for _, pattern := range patterns {
		if m := pattern.FindStringSubmatch(line); m != nil {
			return m
		}
	}
	return nil
}

func (s *genericScan) imports() []types.Element {
	var out []types.Element
	for i, raw := range s.lines {
		line := strings.TrimSpace(raw)
		m := firstMatch(genericImportPatterns, line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		out = append(out, s.singleLine(types.KindImport, name, i, line))
	}
	return out
}

func (s *genericScan) functions() []types.Element {
	var out []types.Element
	for i, line := range s.lines {
		for _, pattern := range genericFunctionPatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[1]
			if genericKeywords[strings.ToLower(name)] {
				break
			}
			end := BlockEnd(s.lines, i, '{', '}', genericFunctionFallback)
			content := joinLines(s.lines, i, end)

			e := newElement(types.KindFunction, name, s.path, s.language, content, i+1, end+1)
			e.Location.ColEnd = len(s.lines[end])
			e.Metadata.Complexity = intPtr(1 + len(genericComplexity.FindAllString(strings.ToLower(content), -1)))
			out = append(out, e)
			break
		}
	}
	return out
}

func (s *genericScan) classes() []types.Element {
	var out []types.Element
	for i, line := range s.lines {
		m := firstMatch(genericClassPatterns, line)
		if m == nil {
			continue
		}
		end := BlockEnd(s.lines, i, '{', '}', genericClassFallback)
		content := joinLines(s.lines, i, end)

		e := newElement(types.KindClass, m[1], s.path, s.language, content, i+1, end+1)
		e.Location.ColEnd = len(s.lines[end])
		e.Metadata.Complexity = intPtr(max(1, len(genericMethodPattern.FindAllString(content, -1))))
		out = append(out, e)
	}
	return out
}

func (s *genericScan) variables() []types.Element {
	var out []types.Element
	for i, raw := range s.lines {
		line := strings.TrimSpace(raw)
		m := firstMatch(genericVariablePatterns, line)
		if m == nil || genericKeywords[m[1]] {
			continue
		}
		kind := types.KindVariable
		if isUpperIdent(m[1]) {
			kind = types.KindConstant
		}
		out = append(out, s.singleLine(kind, m[1], i, line))
	}
	return out
}

// comments collects documentation comments longer than minDocCommentLength.
// A "/**" block may span several lines.
func (s *genericScan) comments() []types.Element {
	var out []types.Element
	for i := 0; i < len(s.lines); i++ {
		line := strings.TrimSpace(s.lines[i])

		if idx := strings.Index(line, "/**"); idx >= 0 && !strings.Contains(line[idx:], "*/") {
			end := i
			var parts []string
			parts = append(parts, strings.TrimSpace(line[idx+3:]))
			for j := i + 1; j < len(s.lines); j++ {
				end = j
				next := strings.TrimSpace(s.lines[j])
				closed := strings.Contains(next, "*/")
				next = strings.TrimSpace(strings.TrimPrefix(strings.SplitN(next, "*/", 2)[0], "*"))
				if next != "" {
					parts = append(parts, next)
				}
				if closed {
					break
				}
			}
			text := strings.TrimSpace(strings.Join(parts, " "))
			if len(text) > minDocCommentLength {
				e := newElement(types.KindComment, docCommentName, s.path, s.language, text, i+1, end+1)
				out = append(out, e)
			}
			i = end
			continue
		}

		m := firstMatch(docLinePatterns, line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[1])
		if len(text) > minDocCommentLength {
			e := newElement(types.KindComment, docCommentName, s.path, s.language, text, i+1, i+1)
			e.Location.ColEnd = len(line)
			out = append(out, e)
		}
	}
	return out
}

package parser

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

const (
	jsBlockFallback  = 10
	inheritsWeight   = 0.9
	callsWeight      = 0.7
	maxCallsRecorded = 20
)

var (
	jsImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`import\s+(.+?)\s+from\s+['"](.+?)['"]`),
		regexp.MustCompile(`import\s+['"](.+?)['"]`),
		regexp.MustCompile(`(?:const|let|var)\s+(.+?)\s*=\s*require\(\s*['"](.+?)['"]\s*\)`),
		regexp.MustCompile(`import\s*\(\s*['"](.+?)['"]\s*\)`),
	}

	jsExportDefault = regexp.MustCompile(`export\s+default\s+(.+)`)
	jsExportList    = regexp.MustCompile(`export\s+\{(.+?)\}`)
	jsExportDecl    = regexp.MustCompile(`export\s+(const|let|var|function|class)\s+(\w+)`)

	jsClassPattern = regexp.MustCompile(`class\s+(\w+)(?:\s+extends\s+(\w+))?\s*\{`)
	jsClassWord    = regexp.MustCompile(`\bclass\b`)

	jsFunctionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`function\s+(\w+)\s*\([^)]*\)\s*\{`),
		regexp.MustCompile(`(\w+)\s*:\s*function\s*\(`),
		regexp.MustCompile(`(\w+)\s*:\s*\([^)]*\)\s*=>\s*\{`),
		regexp.MustCompile(`const\s+(\w+)\s*=\s*(?:async\s*)?\([^)]*\)\s*=>\s*\{`),
		regexp.MustCompile(`(\w+)\s*\([^)]*\)\s*\{`),
	}

	jsVariablePattern = regexp.MustCompile(`(const|let|var)\s+(\w+)\s*=`)
	jsMethodPattern   = regexp.MustCompile(`\b\w+\s*\([^)]*\)\s*\{`)

	jsComplexityWords = regexp.MustCompile(`\b(if|else|for|while|do|switch|case|try|catch)\b`)
	jsLogicalOps      = regexp.MustCompile(`&&|\|\||\?[^.?]`)
	callPattern       = regexp.MustCompile(`\b([A-Za-z_$][\w$]*)\s*\(`)
)

// jsKeywords can precede "(...) {" without naming a function
var jsKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"function": true, "return": true, "with": true, "else": true, "do": true,
	"try": true, "typeof": true, "new": true, "await": true, "super": true,
}

// JavaScriptParser extracts elements from JavaScript and TypeScript with a
// bank of line patterns. It is a heuristic scanner, not a grammar.
type JavaScriptParser struct {
	logger *slog.Logger
}

// NewJavaScriptParser creates a JavaScript/TypeScript parser
func NewJavaScriptParser(logger *slog.Logger) *JavaScriptParser {
	return &JavaScriptParser{logger: logger}
}

// ParseFile implements Parser, deriving the language from the file extension
func (p *JavaScriptParser) ParseFile(content, filePath string) ([]types.Element, error) {
	return p.parseWithLanguage(content, filePath, jsLanguageFor(filePath))
}

func jsLanguageFor(filePath string) string {
	switch strings.ToLower(path.Ext(types.NormalizePath(filePath))) {
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	}
	return "javascript"
}

func (p *JavaScriptParser) parseWithLanguage(content, filePath, language string) ([]types.Element, error) {
	s := &jsScan{
		lines:    splitLines(content),
		path:     types.NormalizePath(filePath),
		language: language,
	}

	var elements []types.Element
	for _, extract := range []func() []types.Element{s.imports, s.exports, s.classes, s.functions, s.variables} {
		found, err := safeExtract(extract)
		if err != nil {
			p.logger.Warn("javascript extraction step failed", "path", s.path, "error", err)
			continue
		}
		elements = append(elements, found...)
	}

	p.logger.Debug("parsed javascript file", "path", s.path, "elements", len(elements))
	return elements, nil
}

// safeExtract runs one extraction step, turning a panic into an error
func safeExtract(step func() []types.Element) (out []types.Element, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("extraction panic: %v", rec)
		}
	}()
	return step(), nil
}

type jsScan struct {
	lines    []string
	path     string
	language string
}

func (s *jsScan) singleLine(kind types.ElementKind, name string, i int, line string) types.Element {
	e := newElement(kind, name, s.path, s.language, line, i+1, i+1)
	e.Location.ColEnd = len(line)
	return e
}

func (s *jsScan) imports() []types.Element {
	var out []types.Element
	for i, raw := range s.lines {
		line := strings.TrimSpace(raw)
		for _, pattern := range jsImportPatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			var label string
			if len(m) == 3 {
				label = fmt.Sprintf("import %s from '%s'", strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
			} else {
				label = fmt.Sprintf("import '%s'", strings.TrimSpace(m[1]))
			}
			out = append(out, s.singleLine(types.KindImport, label, i, line))
			break
		}
	}
	return out
}

// exports are indexed as import elements so both directions of module coupling share one kind
func (s *jsScan) exports() []types.Element {
	var out []types.Element
	for i, raw := range s.lines {
		line := strings.TrimSpace(raw)
		var label string
		if m := jsExportDefault.FindStringSubmatch(line); m != nil {
			label = "default export: " + strings.TrimSpace(m[1])
		} else if m := jsExportList.FindStringSubmatch(line); m != nil {
			label = "export {" + strings.TrimSpace(m[1]) + "}"
		} else if m := jsExportDecl.FindStringSubmatch(line); m != nil {
			label = "export " + m[1] + " " + m[2]
		} else {
			continue
		}
		out = append(out, s.singleLine(types.KindImport, label, i, line))
	}
	return out
}

func (s *jsScan) block(i int) (int, string) {
	end := BlockEnd(s.lines, i, '{', '}', jsBlockFallback)
	return end, joinLines(s.lines, i, end)
}

func (s *jsScan) classes() []types.Element {
	var out []types.Element
	for i, line := range s.lines {
		m := jsClassPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		end, content := s.block(i)

		e := newElement(types.KindClass, m[1], s.path, s.language, content, i+1, end+1)
		e.Location.ColEnd = len(s.lines[end])
		methods := len(jsMethodPattern.FindAllString(content, -1))
		e.Metadata.Complexity = intPtr(max(1, methods))
		if base := m[2]; base != "" {
			e.Metadata.BaseClasses = []string{base}
			e.AddRelationship(types.RelInherits, base, inheritsWeight)
		}
		out = append(out, e)
	}
	return out
}

func (s *jsScan) functions() []types.Element {
	var out []types.Element
	for i, line := range s.lines {
		if jsClassWord.MatchString(line) {
			continue
		}
		for _, pattern := range jsFunctionPatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil || jsKeywords[m[1]] {
				continue
			}
			end, content := s.block(i)

			e := newElement(types.KindFunction, m[1], s.path, s.language, content, i+1, end+1)
			e.Location.ColEnd = len(s.lines[end])
			e.Metadata.Complexity = intPtr(jsComplexity(content))
			e.Metadata.IsAsync = strings.Contains(line, "async ")
			for _, call := range functionCalls(content, m[1]) {
				e.AddRelationship(types.RelCalls, call, callsWeight)
			}
			out = append(out, e)
			break
		}
	}
	return out
}

func (s *jsScan) variables() []types.Element {
	var out []types.Element
	for i, raw := range s.lines {
		line := strings.TrimSpace(raw)
		m := jsVariablePattern.FindStringSubmatch(line)
		if m == nil || strings.Contains(line, "require(") || strings.Contains(line, "=>") {
			continue
		}
		kind := types.KindVariable
		if isUpperIdent(m[2]) {
			kind = types.KindConstant
		}
		out = append(out, s.singleLine(kind, m[2], i, line))
	}
	return out
}

// jsComplexity is 1 plus the count of branching keywords and logical operators
func jsComplexity(content string) int {
	return 1 + len(jsComplexityWords.FindAllString(content, -1)) + len(jsLogicalOps.FindAllString(content, -1))
}

// functionCalls lists distinct called names in content, excluding self and keywords
func functionCalls(content, self string) []string {
	seen := make(map[string]bool)
	var calls []string
	for _, m := range callPattern.FindAllStringSubmatch(content, -1) {
		name := m[1]
		if name == self || jsKeywords[name] || seen[name] {
			continue
		}
		seen[name] = true
		calls = append(calls, name)
		if len(calls) == maxCallsRecorded {
			break
		}
	}
	return calls
}

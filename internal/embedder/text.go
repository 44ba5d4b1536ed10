package embedder

import (
	"strings"
	"unicode"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

const (
	maxDocstringChars = 150
	maxCleanedChars   = 200
	maxCleanedLines   = 5
	maxMethodNames    = 5
	maxParameters     = 3
)

// meaningfulWords keep a line in the cleaned content regardless of length.
// They match as substrings, so "modify" counts for "if".
var meaningfulWords = []string{"def", "class", "return", "if", "for", "while", "try", "except"}

var braceOnly = map[string]bool{"{": true, "}": true, "(": true, ")": true, "[": true, "]": true}

// Text derives the text that is embedded for an element. It summarizes kind,
// name, file, docstring and signature, then appends a short cleaned excerpt
// of the untruncated source.
func Text(e *types.Element) string {
	source := e.SourceText()

	parts := []string{string(e.Kind) + " " + e.Name, "in " + types.FileStem(e.FilePath)}

	switch e.Kind {
	case types.KindClass:
		if doc := docstringOf(e, source); doc != "" {
			parts = append(parts, "description: "+doc)
		}
		if methods := publicMethodNames(source); len(methods) > 0 {
			parts = append(parts, "methods: "+strings.Join(methods[:min(len(methods), maxMethodNames)], ", "))
		}
	case types.KindFunction, types.KindMethod:
		if doc := docstringOf(e, source); doc != "" {
			parts = append(parts, "description: "+doc)
		}
		if params := parameterNames(source); len(params) > 0 {
			parts = append(parts, "parameters: "+strings.Join(params[:min(len(params), maxParameters)], ", "))
		}
	case types.KindImport:
		parts = []string{"import statement: " + e.Name}
	}

	if cleaned := CleanContent(source); cleaned != "" {
		parts = append(parts, types.Truncate(cleaned, maxCleanedChars))
	}
	return strings.Join(parts, " ")
}

// Texts derives the embedding text of every element
func Texts(elements []types.Element) []string {
	out := make([]string, len(elements))
	for i := range elements {
		out[i] = Text(&elements[i])
	}
	return out
}

func docstringOf(e *types.Element, source string) string {
	if e.Metadata.Docstring != "" {
		return types.Truncate(strings.Join(strings.Fields(e.Metadata.Docstring), " "), maxDocstringChars)
	}
	return ExtractDocstring(source)
}

// ExtractDocstring finds the first triple-quoted block in source and returns
// its lines joined by spaces, cut to 150 characters.
func ExtractDocstring(source string) string {
	var lines []string
	quote := ""

	for _, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if quote == "" {
			for _, q := range []string{`"""`, `'''`} {
				if idx := strings.Index(line, q); idx >= 0 {
					quote = q
					line = line[idx+len(q):]
					break
				}
			}
			if quote == "" {
				continue
			}
			if before, _, closed := strings.Cut(line, quote); closed {
				if t := strings.TrimSpace(before); t != "" {
					lines = append(lines, t)
				}
				break
			}
			if t := strings.TrimSpace(line); t != "" {
				lines = append(lines, t)
			}
			continue
		}

		if before, _, closed := strings.Cut(line, quote); closed {
			if t := strings.TrimSpace(before); t != "" {
				lines = append(lines, t)
			}
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return types.Truncate(strings.Join(lines, " "), maxDocstringChars)
}

// publicMethodNames lists "def" names in a class body that do not start with "_"
func publicMethodNames(source string) []string {
	var names []string
	for _, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		line = strings.TrimPrefix(line, "async ")
		if !strings.HasPrefix(line, "def ") {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimPrefix(line, "def "), "(")
		name = strings.TrimSpace(name)
		if name != "" && !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	}
	return names
}

// parameterNames reads the first parenthesized list in source, dropping
// annotations, defaults and self.
func parameterNames(source string) []string {
	open := strings.Index(source, "(")
	if open < 0 {
		return nil
	}
	closeIdx := strings.Index(source[open:], ")")
	if closeIdx < 0 {
		return nil
	}
	inner := strings.TrimSpace(source[open+1 : open+closeIdx])
	if inner == "" || inner == "self" {
		return nil
	}

	var params []string
	for _, p := range strings.Split(inner, ",") {
		p, _, _ = strings.Cut(p, ":")
		p, _, _ = strings.Cut(p, "=")
		p = strings.TrimSpace(p)
		if p != "" && p != "self" {
			params = append(params, p)
		}
	}
	return params
}

// CleanContent keeps up to five meaningful source lines joined by spaces.
// Blank, very short, comment and lone-bracket lines are dropped.
func CleanContent(source string) string {
	var kept []string
	for _, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if len(line) < 3 || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") || braceOnly[line] {
			continue
		}
		if containsAny(strings.ToLower(line), meaningfulWords) || (len(line) > 10 && hasLetter(line)) {
			kept = append(kept, line)
			if len(kept) == maxCleanedLines {
				break
			}
		}
	}
	return strings.Join(kept, " ")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

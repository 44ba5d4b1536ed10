package parser

import (
	"fmt"
	"log/slog"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

const pythonLanguage = "python"

// branchNodeTypes contribute one point each to a function's complexity
var branchNodeTypes = map[string]bool{
	"if_statement":           true,
	"elif_clause":            true,
	"for_statement":          true,
	"while_statement":        true,
	"except_clause":          true,
	"with_statement":         true,
	"boolean_operator":       true,
	"conditional_expression": true,
	"for_in_clause":          true,
}

// PythonParser extracts elements from Python source using a full syntax tree.
// Only top-level statements and the direct members of top-level classes are
// visited, so nested definitions are never reported twice.
type PythonParser struct {
	logger   *slog.Logger
	language *tree_sitter.Language
}

// NewPythonParser creates a Python parser
func NewPythonParser(logger *slog.Logger) *PythonParser {
	return &PythonParser{
		logger:   logger,
		language: tree_sitter.NewLanguage(tree_sitter_python.Language()),
	}
}

// ParseFile parses Python source. A file with any syntax error yields no
// elements and a *types.ParseError.
func (p *PythonParser) ParseFile(content, filePath string) ([]types.Element, error) {
	source := []byte(content)
	path := types.NormalizePath(filePath)

	tsParser := tree_sitter.NewParser()
	defer tsParser.Close()
	if err := tsParser.SetLanguage(p.language); err != nil {
		return nil, fmt.Errorf("failed to load python grammar: %w", err)
	}

	tree := tsParser.Parse(source, nil)
	if tree == nil {
		return nil, &types.ParseError{File: path, Message: "parser returned no tree"}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		perr := syntaxError(root, path)
		p.logger.Warn("syntax error in python file", "path", path, "error", perr)
		return nil, perr
	}

	w := &pyWalker{source: source, lines: splitLines(content), path: path}
	elements := []types.Element{w.module(content)}

	for i := uint(0); i < root.NamedChildCount(); i++ {
		node := definitionOf(root.NamedChild(i))
		switch node.Kind() {
		case "class_definition":
			elements = append(elements, w.class(node))
			elements = append(elements, w.methods(node)...)
		case "function_definition":
			elements = append(elements, w.function(node))
		case "import_statement", "import_from_statement", "future_import_statement":
			if imp, ok := w.importElement(node); ok {
				elements = append(elements, imp)
			}
		}
	}

	return elements, nil
}

// syntaxError locates the first ERROR or MISSING node below root
func syntaxError(root *tree_sitter.Node, path string) *types.ParseError {
	var find func(n *tree_sitter.Node) *tree_sitter.Node
	find = func(n *tree_sitter.Node) *tree_sitter.Node {
		if n.IsError() || n.IsMissing() {
			return n
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child != nil && child.HasError() {
				if found := find(child); found != nil {
					return found
				}
			}
		}
		return nil
	}

	perr := &types.ParseError{File: path, Message: "invalid syntax"}
	if n := find(root); n != nil {
		perr.Line = int(n.StartPosition().Row) + 1
		perr.Column = int(n.StartPosition().Column)
		if n.IsMissing() {
			perr.Message = fmt.Sprintf("missing %s", n.Kind())
		}
	}
	return perr
}

// definitionOf unwraps a decorated definition to the class or function it decorates
func definitionOf(node *tree_sitter.Node) *tree_sitter.Node {
	if node.Kind() == "decorated_definition" {
		if def := node.ChildByFieldName("definition"); def != nil {
			return def
		}
	}
	return node
}

type pyWalker struct {
	source []byte
	lines  []string
	path   string
}

func (w *pyWalker) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(w.source)
}

func (w *pyWalker) module(content string) types.Element {
	e := types.Element{
		ID:       types.ModuleID(w.path),
		Kind:     types.KindModule,
		Name:     types.FileStem(w.path),
		FilePath: w.path,
		Location: types.Location{LineStart: 1, LineEnd: len(w.lines)},
		Metadata: types.Metadata{Language: pythonLanguage, LinesOfCode: len(w.lines)},
	}
	e.SetContent(content)
	return e
}

// span returns the 1-based line range of node and its source lines
func (w *pyWalker) span(node *tree_sitter.Node) (int, int, string) {
	start := int(node.StartPosition().Row) + 1
	end := int(node.EndPosition().Row) + 1
	return start, end, joinLines(w.lines, start-1, end-1)
}

func (w *pyWalker) location(node *tree_sitter.Node, start, end int) types.Location {
	return types.Location{
		LineStart: start,
		LineEnd:   end,
		ColStart:  int(node.StartPosition().Column),
		ColEnd:    int(node.EndPosition().Column),
	}
}

func (w *pyWalker) class(node *tree_sitter.Node) types.Element {
	name := w.text(node.ChildByFieldName("name"))
	start, end, content := w.span(node)

	e := types.Element{
		ID:       types.ElementID(types.KindClass, w.path, name, start),
		Kind:     types.KindClass,
		Name:     name,
		FilePath: w.path,
		Location: w.location(node, start, end),
		Metadata: types.Metadata{
			Language:    pythonLanguage,
			LinesOfCode: end - start + 1,
			Docstring:   w.docstring(node),
			BaseClasses: w.bases(node),
		},
	}
	e.SetContent(content)
	for _, base := range e.Metadata.BaseClasses {
		e.AddRelationship(types.RelInherits, base, 1.0)
	}
	return e
}

// bases returns the positional superclass expressions, skipping keywords such as metaclass=
func (w *pyWalker) bases(node *tree_sitter.Node) []string {
	args := node.ChildByFieldName("superclasses")
	if args == nil {
		return nil
	}
	var bases []string
	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		switch arg.Kind() {
		case "keyword_argument", "comment", "list_splat", "dictionary_splat":
			continue
		}
		bases = append(bases, w.text(arg))
	}
	return bases
}

func (w *pyWalker) methods(class *tree_sitter.Node) []types.Element {
	className := w.text(class.ChildByFieldName("name"))
	body := class.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var methods []types.Element
	for i := uint(0); i < body.NamedChildCount(); i++ {
		node := definitionOf(body.NamedChild(i))
		if node.Kind() != "function_definition" {
			continue
		}
		m := w.function(node)
		m.Kind = types.KindMethod
		m.ID = types.MethodID(w.path, className, m.Name, m.Location.LineStart)
		methods = append(methods, m)
	}
	return methods
}

func (w *pyWalker) function(node *tree_sitter.Node) types.Element {
	name := w.text(node.ChildByFieldName("name"))
	start, end, content := w.span(node)

	e := types.Element{
		ID:       types.ElementID(types.KindFunction, w.path, name, start),
		Kind:     types.KindFunction,
		Name:     name,
		FilePath: w.path,
		Location: w.location(node, start, end),
		Metadata: types.Metadata{
			Language:    pythonLanguage,
			LinesOfCode: end - start + 1,
			Docstring:   w.docstring(node),
			Parameters:  w.parameters(node.ChildByFieldName("parameters")),
			IsAsync:     isAsync(node),
			Complexity:  intPtr(1 + countBranches(node.ChildByFieldName("body"))),
		},
	}
	e.SetContent(content)
	return e
}

func isAsync(node *tree_sitter.Node) bool {
	first := node.Child(0)
	return first != nil && first.Kind() == "async"
}

func countBranches(node *tree_sitter.Node) int {
	if node == nil {
		return 0
	}
	count := 0
	if branchNodeTypes[node.Kind()] {
		count++
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "function_definition", "class_definition", "lambda":
			continue
		}
		count += countBranches(child)
	}
	return count
}

// parameters returns the regular positional parameter names. Positional-only
// parameters before "/" and anything after "*" or "*args" are excluded.
func (w *pyWalker) parameters(params *tree_sitter.Node) []string {
	if params == nil {
		return nil
	}
	var names []string
	for i := uint(0); i < params.NamedChildCount(); i++ {
		param := params.NamedChild(i)
		switch param.Kind() {
		case "identifier":
			names = append(names, w.text(param))
		case "default_parameter", "typed_default_parameter":
			names = append(names, w.text(param.ChildByFieldName("name")))
		case "typed_parameter":
			inner := param.NamedChild(0)
			if inner == nil || inner.Kind() != "identifier" {
				return names
			}
			names = append(names, w.text(inner))
		case "positional_separator":
			names = nil
		case "list_splat_pattern", "dictionary_splat_pattern", "keyword_separator":
			return names
		}
	}
	return names
}

// docstring returns the cleaned docstring of a class or function body
func (w *pyWalker) docstring(node *tree_sitter.Node) string {
	body := node.ChildByFieldName("body")
	if body == nil {
		return ""
	}
	var first *tree_sitter.Node
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child.Kind() != "comment" {
			first = child
			break
		}
	}
	if first == nil || first.Kind() != "expression_statement" || first.NamedChildCount() != 1 {
		return ""
	}

	expr := first.NamedChild(0)
	switch expr.Kind() {
	case "string":
		s, ok := stringLiteral(w.text(expr))
		if !ok {
			return ""
		}
		return cleanDoc(s)
	case "concatenated_string":
		var sb strings.Builder
		for i := uint(0); i < expr.NamedChildCount(); i++ {
			s, ok := stringLiteral(w.text(expr.NamedChild(i)))
			if !ok {
				return ""
			}
			sb.WriteString(s)
		}
		return cleanDoc(sb.String())
	}
	return ""
}

// stringLiteral strips the prefix and quotes of a Python string literal.
// Byte strings and f-strings are rejected since they never form docstrings.
func stringLiteral(lit string) (string, bool) {
	i := 0
	for i < len(lit) && strings.ContainsRune("rRuUbBfF", rune(lit[i])) {
		i++
	}
	prefix := strings.ToLower(lit[:i])
	if strings.ContainsAny(prefix, "bf") {
		return "", false
	}
	body := lit[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)], true
		}
	}
	return "", false
}

// cleanDoc trims a docstring the way Python's inspect.cleandoc does: the first
// line is stripped, the common indentation of the remaining lines is removed and
// leading/trailing blank lines are dropped.
func cleanDoc(doc string) string {
	lines := strings.Split(strings.ReplaceAll(doc, "\t", "        "), "\n")
	margin := -1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}

	lines[0] = strings.TrimSpace(lines[0])
	if margin > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= margin {
				lines[i] = lines[i][margin:]
			} else {
				lines[i] = strings.TrimLeft(lines[i], " ")
			}
		}
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}

	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// importElement renders import and from-import statements
func (w *pyWalker) importElement(node *tree_sitter.Node) (types.Element, bool) {
	var importClass string
	var names []string

	switch node.Kind() {
	case "import_statement":
		importClass = "import"
		names = w.importedNames(node, nil)
	case "future_import_statement":
		importClass = "from __future__"
		names = w.importedNames(node, nil)
	default:
		module := node.ChildByFieldName("module_name")
		importClass = "from " + w.text(module)
		names = w.importedNames(node, module)
	}
	if len(names) == 0 {
		return types.Element{}, false
	}

	line := int(node.StartPosition().Row) + 1
	content := strings.TrimSpace(joinLines(w.lines, line-1, line-1))
	var keyword string
	if importClass == "import" {
		keyword = "import " + strings.Join(names, ", ")
	} else {
		keyword = importClass + " import " + strings.Join(names, ", ")
	}

	e := types.Element{
		ID:       types.ImportID(w.path, line, importClass, names),
		Kind:     types.KindImport,
		Name:     keyword,
		FilePath: w.path,
		Location: types.Location{
			LineStart: line,
			LineEnd:   line,
			ColStart:  int(node.StartPosition().Column),
			ColEnd:    int(node.EndPosition().Column),
		},
		Metadata: types.Metadata{
			Language:      pythonLanguage,
			LinesOfCode:   1,
			ImportedNames: names,
		},
	}
	e.SetContent(content)
	return e, true
}

// importedNames lists the imported names, skipping the module node of a from-import
func (w *pyWalker) importedNames(node, module *tree_sitter.Node) []string {
	var names []string
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if module != nil && child.StartByte() == module.StartByte() && child.EndByte() == module.EndByte() {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			names = append(names, w.text(child))
		case "aliased_import":
			names = append(names, w.text(child.ChildByFieldName("name")))
		case "wildcard_import":
			names = append(names, "*")
		}
	}
	return names
}

package parser

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

const pythonSample = `import os
from typing import List, Dict

def add(a, b):
    """Add two numbers."""
    return a + b

class Calc(Base):
    """A calculator."""

    def add(self, a, b):
        return a + b

    async def fetch(self, url):
        if url and url.startswith("http"):
            return url
`

func byKind(elements []types.Element, kind types.ElementKind) []types.Element {
	var out []types.Element
	for _, e := range elements {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestPythonParser_ExtractsElements(t *testing.T) {
	p := NewPythonParser(slog.Default())
	elements, err := p.ParseFile(pythonSample, "./pkg/calc.py")
	require.NoError(t, err)
	require.Len(t, elements, 7)

	module := elements[0]
	assert.Equal(t, types.KindModule, module.Kind)
	assert.Equal(t, "module_pkg/calc.py", module.ID)
	assert.Equal(t, "calc", module.Name)
	assert.Equal(t, "pkg/calc.py", module.FilePath)

	imports := byKind(elements, types.KindImport)
	require.Len(t, imports, 2)
	assert.Equal(t, "import os", imports[0].Name)
	assert.Equal(t, "from typing import List, Dict", imports[1].Name)
	assert.Equal(t, []string{"List", "Dict"}, imports[1].Metadata.ImportedNames)
	assert.Equal(t, "from typing import List, Dict", imports[1].Content)

	functions := byKind(elements, types.KindFunction)
	require.Len(t, functions, 1)
	add := functions[0]
	assert.Equal(t, "function_pkg/calc.py_add_4", add.ID)
	assert.Equal(t, []string{"a", "b"}, add.Metadata.Parameters)
	assert.Equal(t, "Add two numbers.", add.Metadata.Docstring)
	assert.Equal(t, 4, add.Location.LineStart)
	assert.GreaterOrEqual(t, add.Location.LineEnd, 6)
	assert.Contains(t, add.Content, "return a + b")
	assert.False(t, add.Metadata.IsAsync)

	classes := byKind(elements, types.KindClass)
	require.Len(t, classes, 1)
	calc := classes[0]
	assert.Equal(t, "class_pkg/calc.py_Calc_8", calc.ID)
	assert.Equal(t, []string{"Base"}, calc.Metadata.BaseClasses)
	assert.Equal(t, "A calculator.", calc.Metadata.Docstring)
	require.Len(t, calc.Relationships, 1)
	assert.Equal(t, types.RelInherits, calc.Relationships[0].Type)

	methods := byKind(elements, types.KindMethod)
	require.Len(t, methods, 2)
	assert.Equal(t, "method_pkg/calc.py_Calc_add_11", methods[0].ID)
	assert.Equal(t, []string{"self", "a", "b"}, methods[0].Metadata.Parameters)
	assert.Equal(t, "fetch", methods[1].Name)
	assert.True(t, methods[1].Metadata.IsAsync)
	require.NotNil(t, methods[1].Metadata.Complexity)
	assert.Equal(t, 3, *methods[1].Metadata.Complexity)

	for _, e := range elements {
		assert.NoError(t, e.Validate(), e.ID)
		assert.Equal(t, "python", e.Metadata.Language)
	}
}

func TestPythonParser_Deterministic(t *testing.T) {
	p := NewPythonParser(slog.Default())
	first, err := p.ParseFile(pythonSample, "pkg/calc.py")
	require.NoError(t, err)
	second, err := p.ParseFile(pythonSample, `pkg\calc.py`)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestPythonParser_SyntaxErrorYieldsNothing(t *testing.T) {
	p := NewPythonParser(slog.Default())
	elements, err := p.ParseFile("def broken(:\n    pass\n", "bad.py")

	assert.Empty(t, elements)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSyntax))

	var perr *types.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "bad.py", perr.File)
}

func TestPythonParser_ImportIDIgnoresNameOrder(t *testing.T) {
	p := NewPythonParser(slog.Default())
	a, err := p.ParseFile("from os import path, sep\n", "m.py")
	require.NoError(t, err)
	b, err := p.ParseFile("from os import sep, path\n", "m.py")
	require.NoError(t, err)
	c, err := p.ParseFile("from os import path\n", "m.py")
	require.NoError(t, err)

	assert.Equal(t, byKind(a, types.KindImport)[0].ID, byKind(b, types.KindImport)[0].ID)
	assert.NotEqual(t, byKind(a, types.KindImport)[0].ID, byKind(c, types.KindImport)[0].ID)
}

func TestPythonParser_DecoratorsAndNesting(t *testing.T) {
	src := `@dataclass
class Point:
    x: int = 0

    @property
    def norm(self):
        def inner():
            return 1
        return inner()

@cache
def compute(n, *args, flag=False, **kw):
    return n
`
	p := NewPythonParser(slog.Default())
	elements, err := p.ParseFile(src, "geo.py")
	require.NoError(t, err)

	classes := byKind(elements, types.KindClass)
	require.Len(t, classes, 1)
	assert.Equal(t, 2, classes[0].Location.LineStart)

	methods := byKind(elements, types.KindMethod)
	require.Len(t, methods, 1)
	assert.Equal(t, "norm", methods[0].Name)

	functions := byKind(elements, types.KindFunction)
	require.Len(t, functions, 1, "nested functions are not extracted")
	assert.Equal(t, "compute", functions[0].Name)
	assert.Equal(t, []string{"n"}, functions[0].Metadata.Parameters)
}

func TestPythonParser_EmptyFileHasModuleOnly(t *testing.T) {
	p := NewPythonParser(slog.Default())
	elements, err := p.ParseFile("", "empty.py")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, types.KindModule, elements[0].Kind)
}

func TestCleanDoc(t *testing.T) {
	doc := "\n    Summary line.\n\n    Details here.\n        Indented.\n    "
	assert.Equal(t, "Summary line.\n\nDetails here.\n    Indented.", cleanDoc(doc))
	assert.Equal(t, "One liner.", cleanDoc("  One liner.  "))
}

func TestStringLiteral(t *testing.T) {
	tests := []struct {
		lit  string
		want string
		ok   bool
	}{
		{`"""doc"""`, "doc", true},
		{`'''doc'''`, "doc", true},
		{`"doc"`, "doc", true},
		{`r"raw"`, "raw", true},
		{`b"bytes"`, "", false},
		{`f"{x}"`, "", false},
	}
	for _, tt := range tests {
		got, ok := stringLiteral(tt.lit)
		assert.Equal(t, tt.ok, ok, tt.lit)
		assert.Equal(t, tt.want, got, tt.lit)
	}
}

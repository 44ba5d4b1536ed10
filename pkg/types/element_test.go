package types

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a.py", "a.py"},
		{"./a.py", "a.py"},
		{`.\src\a.py`, "src/a.py"},
		{`src\pkg\a.py`, "src/pkg/a.py"},
		{"././src//a.py", "src/a.py"},
		{".", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestNormalizePath_ForwardAndBackslashAgree(t *testing.T) {
	assert.Equal(t, NormalizePath("./pkg/mod/file.go"), NormalizePath(`pkg\mod\file.go`))
	assert.Equal(t, ElementID(KindFunction, "./pkg/a.py", "f", 1), ElementID(KindFunction, `pkg\a.py`, "f", 1))
}

func TestElementID_Deterministic(t *testing.T) {
	assert.Equal(t, "function_pkg/a.py_add_3", ElementID(KindFunction, "pkg/a.py", "add", 3))
	assert.Equal(t, ElementID(KindClass, "a.py", "Calc", 5), ElementID(KindClass, "a.py", "Calc", 5))
	assert.NotEqual(t, ElementID(KindClass, "a.py", "Calc", 5), ElementID(KindClass, "a.py", "Calc", 6))
	assert.Equal(t, "import_a.py_from_x_2", ElementID(KindImport, "a.py", "from x", 2))
}

func TestImportID_OrderIndependent(t *testing.T) {
	a := ImportID("b.py", 1, "from os", []string{"path", "sep"})
	b := ImportID("b.py", 1, "from os", []string{"sep", "path"})
	c := ImportID("b.py", 1, "from os", []string{"path"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "import_b.py_1_"))
}

func TestHeadingID(t *testing.T) {
	id := HeadingID("docs/guide.md", 2, "Getting Started!", 10)
	assert.Equal(t, "heading_docs_guide.md_2_getting_started_10", id)
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "calc", FileStem("pkg/calc.py"))
	assert.Equal(t, "README", FileStem(`docs\README.md`))
	assert.Equal(t, "Makefile", FileStem("Makefile"))
}

func TestElement_SetContentTruncates(t *testing.T) {
	e := Element{}
	long := strings.Repeat("x", MaxContentLength+50)
	e.SetContent(long)

	assert.Len(t, e.Content, MaxContentLength)
	assert.Equal(t, long, e.SourceText())
}

func TestTruncate_KeepsRunes(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes each
	out := Truncate(s, 5)
	assert.Equal(t, strings.Repeat("é", 2), out)
}

func TestElement_Validate(t *testing.T) {
	valid := Element{
		ID:       "function_a.py_add_1",
		Kind:     KindFunction,
		Name:     "add",
		FilePath: "a.py",
		Location: Location{LineStart: 1, LineEnd: 2},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(e *Element)
	}{
		{"missing id", func(e *Element) { e.ID = "" }},
		{"unknown kind", func(e *Element) { e.Kind = "struct" }},
		{"empty name", func(e *Element) { e.Name = " " }},
		{"unnormalized path", func(e *Element) { e.FilePath = "./a.py" }},
		{"zero line", func(e *Element) { e.Location.LineStart = 0 }},
		{"inverted range", func(e *Element) { e.Location.LineStart = 5 }},
		{"bad weight", func(e *Element) { e.Relationships = []Relationship{{Type: RelCalls, Weight: 2}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			assert.Error(t, e.Validate())
		})
	}
}

func TestElement_AddRelationshipClamps(t *testing.T) {
	e := Element{}
	e.AddRelationship(RelInherits, "Base", 1.5)
	e.AddRelationship(RelCalls, "f", -1)

	assert.Equal(t, 1.0, e.Relationships[0].Weight)
	assert.Equal(t, 0.0, e.Relationships[1].Weight)
}

func TestElement_AddDependencyOnce(t *testing.T) {
	e := Element{}
	e.AddDependency("x")
	e.AddDependency("x")
	assert.Equal(t, []string{"x"}, e.Dependencies)
}

func TestHeadingKind(t *testing.T) {
	assert.Equal(t, KindH1, HeadingKind(1))
	assert.Equal(t, KindH6, HeadingKind(6))
	assert.Equal(t, KindDocumentHeading, HeadingKind(7))
	assert.True(t, KindH3.IsHeading())
	assert.False(t, KindClass.IsHeading())
}

func TestRunError(t *testing.T) {
	base := errors.New("disk full")
	err := error(&RunError{Kind: KindStore, State: "writing-structured", Err: base})

	assert.True(t, errors.Is(err, base))
	assert.True(t, IsKind(err, KindStore))
	assert.False(t, IsKind(err, KindTimeout))
	assert.Contains(t, err.Error(), "writing-structured")
}

func TestParseError_IsSyntax(t *testing.T) {
	err := error(&ParseError{File: "a.py", Line: 3, Message: "unexpected indent"})
	assert.True(t, errors.Is(err, ErrSyntax))
	assert.Equal(t, "a.py:3:0: unexpected indent", err.Error())
}

func TestLanguages_SortedDistinct(t *testing.T) {
	elements := []Element{
		{Metadata: Metadata{Language: "python"}},
		{Metadata: Metadata{Language: "markdown"}},
		{Metadata: Metadata{Language: "python"}},
		{},
	}
	assert.Equal(t, []string{"markdown", "python"}, Languages(elements))
}

func TestMakeSnippet(t *testing.T) {
	assert.Equal(t, "short", MakeSnippet("short"))
	long := strings.Repeat("a", 250)
	assert.Equal(t, strings.Repeat("a", SnippetLength)+"...", MakeSnippet(long))
}

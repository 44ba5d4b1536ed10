package parser

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

const markdownSample = "# Title\n" +
	"\n" +
	"Intro text.\n" +
	"\n" +
	"## Install\n" +
	"\n" +
	"Run `make`.\n" +
	"\n" +
	"```bash\n" +
	"# not a heading\n" +
	"```\n" +
	"\n" +
	"Usage\n" +
	"-----\n" +
	"\n" +
	"Some usage.\n" +
	"\n" +
	"### Deep **bold** [link](http://x)\n" +
	"\n" +
	"# Second\n"

func TestMarkdownParser_Headings(t *testing.T) {
	p := NewMarkdownParser(slog.Default())
	elements, err := p.ParseFile(markdownSample, "docs/guide.md")
	require.NoError(t, err)
	require.Len(t, elements, 5)

	assert.Equal(t, []string{"Title", "Install", "Usage", "Deep bold link", "Second"}, names(elements))

	wantKinds := []types.ElementKind{types.KindH1, types.KindH2, types.KindH2, types.KindH3, types.KindH1}
	wantLines := []int{1, 5, 13, 18, 20}
	for i, e := range elements {
		assert.Equal(t, wantKinds[i], e.Kind, e.Name)
		assert.Equal(t, wantLines[i], e.Location.LineStart, e.Name)
		assert.Equal(t, "markdown", e.Metadata.Language)
		assert.NoError(t, e.Validate(), e.ID)
	}
	assert.Equal(t, "heading_docs_guide.md_1_title_1", elements[0].ID)
	assert.Equal(t, 2, elements[2].Metadata.HeadingLevel)
}

func TestMarkdownParser_Hierarchy(t *testing.T) {
	p := NewMarkdownParser(slog.Default())
	elements, err := p.ParseFile(markdownSample, "docs/guide.md")
	require.NoError(t, err)

	title, install, usage, deep, second := elements[0], elements[1], elements[2], elements[3], elements[4]
	assert.Empty(t, title.Dependencies)
	assert.Equal(t, []string{title.ID}, install.Dependencies)
	assert.Equal(t, []string{title.ID}, usage.Dependencies)
	assert.Equal(t, []string{usage.ID}, deep.Dependencies)
	assert.Empty(t, second.Dependencies)
}

func TestMarkdownParser_Sections(t *testing.T) {
	p := NewMarkdownParser(slog.Default())
	elements, err := p.ParseFile(markdownSample, "docs/guide.md")
	require.NoError(t, err)

	install := elements[1]
	assert.Equal(t, "Install\n\nRun `make`.\n\n```bash\n# not a heading\n```", install.Content)
	assert.NotContains(t, install.Content, "Usage")

	usage := elements[2]
	assert.True(t, strings.HasPrefix(usage.Content, "Usage\n\nSome usage."))
	assert.Contains(t, usage.Content, "### Deep")
	assert.NotContains(t, usage.Content, "# Second")

	title := elements[0]
	assert.Contains(t, title.Content, "Intro text.")
	assert.Contains(t, title.Content, "Some usage.")
}

func TestMarkdownParser_LongSectionIsCut(t *testing.T) {
	body := strings.Repeat("word ", 1000)
	p := NewMarkdownParser(slog.Default())
	elements, err := p.ParseFile("# Big\n\n"+body, "big.md")
	require.NoError(t, err)
	require.Len(t, elements, 1)

	section := strings.TrimPrefix(elements[0].Content, "Big\n\n")
	assert.True(t, strings.HasSuffix(section, sectionCutoffMark))
	assert.Len(t, section, maxSectionLength+len(sectionCutoffMark))
}

func TestMarkdownParser_InlineCodeIsNotHeading(t *testing.T) {
	p := NewMarkdownParser(slog.Default())
	elements, err := p.ParseFile("Use `# comment` inline.\n\n- item\n---\n", "notes.md")
	require.NoError(t, err)
	assert.Empty(t, elements)
}

func TestCleanHeadingText(t *testing.T) {
	assert.Equal(t, "API reference", cleanHeadingText("`API` *reference*"))
	assert.Equal(t, "See docs", cleanHeadingText("See [docs](./docs.md)"))
	assert.Equal(t, "snake_case name", cleanHeadingText("snake_case name"))
}

func TestMarkdownParser_MarkupOnlyHeadingKeepsRawName(t *testing.T) {
	p := NewMarkdownParser(slog.Default())
	elements, err := p.ParseFile("# Project\n\n## _ _\n\n## ** **\n\n# [ ](x)\n", "README.md")
	require.NoError(t, err)
	require.Len(t, elements, 4)

	assert.Equal(t, []string{"Project", "_ _", "** **", "[ ](x)"}, names(elements))
	for _, e := range elements {
		assert.NoError(t, e.Validate(), e.ID)
	}
}

func TestHeadingName(t *testing.T) {
	assert.Equal(t, "Deep bold", headingName("Deep **bold**"))
	assert.Equal(t, "_ _", headingName("_ _"))
	assert.Equal(t, "[ ](x)", headingName("[ ](x)"))
}

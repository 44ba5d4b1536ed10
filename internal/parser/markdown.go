package parser

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

const (
	markdownLanguage  = "markdown"
	maxSectionLength  = 2000
	sectionCutoffMark = "..."
)

var (
	atxHeading     = regexp.MustCompile(`^(#{1,6})\s+(.+?)(?:\s*#+\s*)?$`)
	setextH1       = regexp.MustCompile(`^=+\s*$`)
	setextH2       = regexp.MustCompile(`^-+\s*$`)
	fenceOpen      = regexp.MustCompile("^\\s{0,3}(```+|~~~+)")
	inlineCodeSpan = regexp.MustCompile("`[^`\n]+`")
	listItem       = regexp.MustCompile(`^\s*([-*+]|\d+[.)])\s`)

	inlineStrong = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	inlineEmph   = regexp.MustCompile(`\*([^*]+)\*|\b_([^_]+)_\b`)
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	inlineLink   = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// MarkdownParser extracts the heading structure of a Markdown document
type MarkdownParser struct {
	logger *slog.Logger
}

// NewMarkdownParser creates a Markdown parser
func NewMarkdownParser(logger *slog.Logger) *MarkdownParser {
	return &MarkdownParser{logger: logger}
}

type heading struct {
	level    int
	text     string // raw heading text
	clean    string // inline markup removed
	line     int    // 0-based line of the heading text
	bodyFrom int    // 0-based first line after the heading
	id       string
}

// ParseFile returns one element per ATX or Setext heading. Headings inside
// fenced code blocks or inline code spans are ignored.
func (p *MarkdownParser) ParseFile(content, filePath string) ([]types.Element, error) {
	path := types.NormalizePath(filePath)
	lines := splitLines(content)

	headings := findHeadings(lines)
	if len(headings) == 0 {
		p.logger.Debug("no headings found", "path", path)
		return nil, nil
	}

	for i := range headings {
		headings[i].id = types.HeadingID(path, headings[i].level, headings[i].clean, headings[i].line+1)
	}
	parents := headingParents(headings)

	elements := make([]types.Element, 0, len(headings))
	for i, h := range headings {
		section := sectionBody(lines, headings, i)
		full := h.text + "\n\n" + section

		loc := 1
		if section != "" {
			loc = strings.Count(section, "\n") + 1
		}

		e := types.Element{
			ID:          h.id,
			Kind:        types.HeadingKind(h.level),
			Name:        h.clean,
			Content:     full,
			FullContent: full,
			FilePath:    path,
			Location: types.Location{
				LineStart: h.line + 1,
				LineEnd:   h.line + 1,
				ColEnd:    len(h.text),
			},
			Metadata: types.Metadata{
				Language:     markdownLanguage,
				Complexity:   intPtr(1),
				LinesOfCode:  loc,
				HeadingLevel: h.level,
			},
		}
		if parent := parents[i]; parent >= 0 {
			e.AddDependency(headings[parent].id)
		}
		elements = append(elements, e)
	}

	p.logger.Debug("parsed markdown file", "path", path, "headings", len(elements))
	return elements, nil
}

func findHeadings(lines []string) []heading {
	var headings []heading
	inFence := false
	fence := ""

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if m := fenceOpen.FindStringSubmatch(line); m != nil {
			marker := m[1][:3]
			if !inFence {
				inFence, fence = true, marker
				continue
			}
			if marker == fence {
				inFence = false
				continue
			}
		}
		if inFence {
			continue
		}

		stripped := inlineCodeSpan.ReplaceAllString(line, "")
		if atxHeading.MatchString(strings.TrimRight(stripped, " \t")) {
			m := atxHeading.FindStringSubmatch(strings.TrimRight(line, " \t"))
			if m == nil {
				continue
			}
			text := strings.TrimSpace(m[2])
			if text != "" {
				headings = append(headings, heading{
					level:    len(m[1]),
					text:     text,
					clean:    headingName(text),
					line:     i,
					bodyFrom: i + 1,
				})
			}
			continue
		}

		if i+1 < len(lines) && isSetextCandidate(stripped) {
			level := 0
			switch {
			case setextH1.MatchString(lines[i+1]):
				level = 1
			case setextH2.MatchString(lines[i+1]):
				level = 2
			}
			if level > 0 {
				text := strings.TrimSpace(line)
				headings = append(headings, heading{
					level:    level,
					text:     text,
					clean:    headingName(text),
					line:     i,
					bodyFrom: i + 2,
				})
				i++
			}
		}
	}
	return headings
}

// headingName is the heading text without inline markup, or the raw text
// when nothing but markup is left
func headingName(text string) string {
	if clean := strings.TrimSpace(cleanHeadingText(text)); clean != "" {
		return clean
	}
	return text
}

func isSetextCandidate(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || listItem.MatchString(line) {
		return false
	}
	return !setextH1.MatchString(trimmed) && !setextH2.MatchString(trimmed)
}

// headingParents assigns each heading the nearest preceding heading of a
// strictly lower level, or -1 for top-level headings.
func headingParents(headings []heading) []int {
	parents := make([]int, len(headings))
	var stack []int
	for i, h := range headings {
		for len(stack) > 0 && headings[stack[len(stack)-1]].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		parents[i] = -1
		if len(stack) > 0 {
			parents[i] = stack[len(stack)-1]
		}
		stack = append(stack, i)
	}
	return parents
}

// sectionBody returns the text between a heading and the next heading of equal
// or higher level, cut at maxSectionLength.
func sectionBody(lines []string, headings []heading, i int) string {
	end := len(lines)
	for j := i + 1; j < len(headings); j++ {
		if headings[j].level <= headings[i].level {
			end = headings[j].line
			break
		}
	}
	from := headings[i].bodyFrom
	if from >= end {
		return ""
	}

	section := strings.TrimSpace(strings.Join(lines[from:end], "\n"))
	if len(section) > maxSectionLength {
		section = types.Truncate(section, maxSectionLength) + sectionCutoffMark
	}
	return section
}

// cleanHeadingText strips emphasis, code spans and links from heading text
func cleanHeadingText(text string) string {
	text = inlineLink.ReplaceAllString(text, "$1")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = inlineStrong.ReplaceAllString(text, "$1$2")
	text = inlineEmph.ReplaceAllString(text, "$1$2")
	return strings.TrimSpace(text)
}

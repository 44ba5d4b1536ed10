package types

import (
	"crypto/sha256"
	"errors"
	"strings"
)

// ElementKind represents the kind of an indexed source element
type ElementKind string

const (
	KindFunction        ElementKind = "function"
	KindClass           ElementKind = "class"
	KindMethod          ElementKind = "method"
	KindVariable        ElementKind = "variable"
	KindConstant        ElementKind = "constant"
	KindImport          ElementKind = "import"
	KindModule          ElementKind = "module"
	KindComment         ElementKind = "comment"
	KindDocstring       ElementKind = "docstring"
	KindDocumentHeading ElementKind = "document_heading"
	KindH1              ElementKind = "h1"
	KindH2              ElementKind = "h2"
	KindH3              ElementKind = "h3"
	KindH4              ElementKind = "h4"
	KindH5              ElementKind = "h5"
	KindH6              ElementKind = "h6"
)

// MaxContentLength bounds the stored content of an element.
const MaxContentLength = 1000

// HeadingKind returns the heading kind for a level in 1..6.
func HeadingKind(level int) ElementKind {
	switch level {
	case 1:
		return KindH1
	case 2:
		return KindH2
	case 3:
		return KindH3
	case 4:
		return KindH4
	case 5:
		return KindH5
	case 6:
		return KindH6
	default:
		return KindDocumentHeading
	}
}

// IsHeading reports whether the kind is a document heading of any level
func (k ElementKind) IsHeading() bool {
	switch k {
	case KindDocumentHeading, KindH1, KindH2, KindH3, KindH4, KindH5, KindH6:
		return true
	}
	return false
}

// Valid reports whether k is a known element kind
func (k ElementKind) Valid() bool {
	switch k {
	case KindFunction, KindClass, KindMethod, KindVariable, KindConstant, KindImport,
		KindModule, KindComment, KindDocstring:
		return true
	}
	return k.IsHeading()
}

// RelationshipType is the type of a typed edge between elements
type RelationshipType string

const (
	RelCalls    RelationshipType = "calls"
	RelInherits RelationshipType = "inherits"
	RelUses     RelationshipType = "uses"
)

// Relationship is a weighted edge from an element to a named target
type Relationship struct {
	Type   RelationshipType
	Target string
	Weight float64 // Confidence in [0,1]
}

// Location is a 1-based inclusive line range plus 0-based columns
type Location struct {
	LineStart int
	LineEnd   int
	ColStart  int
	ColEnd    int
}

// Metadata holds language-specific attributes of an element
type Metadata struct {
	Language      string
	Complexity    *int // Nil when not computed
	LinesOfCode   int
	Docstring     string
	BaseClasses   []string
	Parameters    []string
	ImportedNames []string
	IsAsync       bool
	Author        string
	HeadingLevel  int
}

// Element is one indexed unit of source: a function, class, import, heading, etc.
type Element struct {
	// Identification
	ID   string
	Kind ElementKind
	Name string

	// Content is the stored slice of source, bounded by MaxContentLength.
	// FullContent keeps the untruncated text in memory for embedding-text derivation.
	Content     string
	FullContent string

	FilePath string // Normalized, relative to the project root
	Location Location
	Metadata Metadata

	Embedding     []float32
	Dependencies  []string
	Relationships []Relationship
}

// SourceText returns the untruncated content when available
func (e *Element) SourceText() string {
	if e.FullContent != "" {
		return e.FullContent
	}
	return e.Content
}

// ContentHash returns the SHA-256 hash of the stored content
func (e *Element) ContentHash() [32]byte {
	return sha256.Sum256([]byte(e.Content))
}

// SetContent stores text as the element's content, keeping the full text for embedding
func (e *Element) SetContent(text string) {
	e.FullContent = text
	e.Content = Truncate(text, MaxContentLength)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// AddDependency appends an element id once
func (e *Element) AddDependency(id string) {
	for _, d := range e.Dependencies {
		if d == id {
			return
		}
	}
	e.Dependencies = append(e.Dependencies, id)
}

// AddRelationship appends a relationship with the weight clamped to [0,1]
func (e *Element) AddRelationship(typ RelationshipType, target string, weight float64) {
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	e.Relationships = append(e.Relationships, Relationship{Type: typ, Target: target, Weight: weight})
}

// Validate performs comprehensive validation of the element
func (e *Element) Validate() error {
	if e.ID == "" {
		return ErrInvalidElementID
	}

	if !e.Kind.Valid() {
		return errors.New("invalid element kind")
	}

	if strings.TrimSpace(e.Name) == "" {
		return errors.New("element name is required")
	}

	if e.FilePath == "" {
		return errors.New("file path is required")
	}

	if e.FilePath != NormalizePath(e.FilePath) {
		return ErrUnnormalizedPath
	}

	if e.Location.LineStart <= 0 || e.Location.LineEnd <= 0 {
		return errors.New("invalid location: line numbers must be positive")
	}

	if e.Location.LineStart > e.Location.LineEnd {
		return errors.New("invalid location: start line must be before or equal to end line")
	}

	for _, r := range e.Relationships {
		if r.Weight < 0 || r.Weight > 1 {
			return ErrInvalidWeight
		}
	}

	return nil
}

package storage

import (
	"context"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

// MaxStructuralResults caps a structural search before deduplication
const MaxStructuralResults = 50

// Storage defines the interface for persisting and querying indexed elements
type Storage interface {
	// Element operations
	StoreElements(ctx context.Context, projectRoot string, elements []types.Element) error
	GetElement(ctx context.Context, projectRoot, id string) (*types.Element, error)
	ElementsByFile(ctx context.Context, filePath string) ([]types.Element, error)
	ElementsByKind(ctx context.Context, kind types.ElementKind) ([]types.Element, error)
	ListFiles(ctx context.Context, kind types.ElementKind) ([]string, error)

	// Dependency operations
	Dependencies(ctx context.Context, projectRoot, sourceID string) ([]Dependency, error)

	// Search operations
	SearchStructural(ctx context.Context, query StructuralQuery) ([]types.Element, error)
	FindDependents(ctx context.Context, target string, patterns []string) ([]string, error)

	// Clear operations
	ClearProject(ctx context.Context, projectRoot string) (int, error)
	CountProject(ctx context.Context, projectRoot string) (int, error)

	// Status operations
	Stats(ctx context.Context) (*Stats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Dependency is one stored edge between an element and a target. Parent
// links carry DependencyParent; typed relationships carry their own type.
type Dependency struct {
	SourceID string
	TargetID string
	Type     string
	Weight   float64
}

// DependencyParent is the edge type recorded for Element.Dependencies
const DependencyParent = "depends_on"

// StructuralQuery selects elements by kind and a wildcard name pattern
type StructuralQuery struct {
	Kind        types.ElementKind
	NamePattern string // "*" and "?" wildcards; a bare word matches as a substring
	Scope       string // Optional path substring
	Limit       int    // Defaults to MaxStructuralResults
}

// Stats summarizes the structured store
type Stats struct {
	TotalElements int            `json:"total_elements"`
	TotalFiles    int            `json:"total_files"`
	ByKind        map[string]int `json:"by_type"`
	ByLanguage    map[string]int `json:"by_language"`
	SchemaVersion string         `json:"schema_version"`
	SizeMB        float64        `json:"size_mb"`
}

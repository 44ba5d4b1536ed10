package types

import (
	"sort"
	"time"
)

// Outcome describes how an indexing run finished
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomePartial  Outcome = "partial"
)

// ProjectStatistics summarizes one indexing run
type ProjectStatistics struct {
	TotalFiles     int           `json:"total_files"`
	TotalElements  int           `json:"total_elements"`
	Languages      []string      `json:"languages"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// ProjectIndex is one project snapshot produced by a full index run
type ProjectIndex struct {
	RunID       string            `json:"run_id"`
	ProjectPath string            `json:"project_path"`
	Statistics  ProjectStatistics `json:"statistics"`
	Outcome     Outcome           `json:"outcome"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Languages returns the sorted distinct language tags of elements
func Languages(elements []Element) []string {
	seen := make(map[string]struct{})
	for i := range elements {
		if lang := elements[i].Metadata.Language; lang != "" {
			seen[lang] = struct{}{}
		}
	}
	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// DependencyAnalysis is the best-effort import graph around one file
type DependencyAnalysis struct {
	Target               string   `json:"target"`
	Dependencies         []string `json:"dependencies"`
	ExternalDependencies []string `json:"external_dependencies"`
	Dependents           []string `json:"dependents"`
	Depth                int      `json:"depth"`
}

// ClearStats reports what a clear operation removed, or would remove on a dry run
type ClearStats struct {
	ProjectPath        string `json:"project_path"`
	DryRun             bool   `json:"dry_run"`
	Confirmed          bool   `json:"confirmed"`
	StructuredElements int    `json:"structured_elements"`
	VectorDocuments    int    `json:"vector_documents"`
	Action             string `json:"action"`
}

// ElementSummary is a compact element listing used in file context responses
type ElementSummary struct {
	Kind      ElementKind `json:"type"`
	Name      string      `json:"name"`
	LineStart int         `json:"line_start"`
	LineEnd   int         `json:"line_end"`
}

// FileContext describes one indexed file and its neighbourhood
type FileContext struct {
	FilePath     string           `json:"file_path"`
	Found        bool             `json:"found"`
	Context      string           `json:"context"`
	RelatedFiles []string         `json:"related_files"`
	Dependencies []string         `json:"dependencies"`
	Elements     []ElementSummary `json:"elements"`
}

// ArchitectureOverview is a coarse map of the indexed codebase
type ArchitectureOverview struct {
	Modules           []string            `json:"modules"`
	KeyComponents     []string            `json:"key_components"`
	Relationships     map[string][]string `json:"relationships"`
	ComplexityMetrics map[string]any      `json:"complexity_metrics"`
}

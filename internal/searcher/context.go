package searcher

import (
	"context"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/RealFaceCode/ContextBrain/internal/parser"
	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

// DefaultContextSize is the number of names listed per kind in a file context
const DefaultContextSize = 5

// Detail levels of an architecture overview
const (
	DetailLow    = "low"
	DetailMedium = "medium"
	DetailHigh   = "high"
)

// entryPointWords mark root-level files included at medium detail
var entryPointWords = []string{"main", "config", "setup", "app", "server", "cli"}

// FileContext summarizes one indexed file: its elements grouped by kind,
// its internal dependencies and the files that import it.
func (s *Searcher) FileContext(ctx context.Context, filePath string, contextSize int, includeDependencies bool) (*types.FileContext, error) {
	if contextSize <= 0 {
		contextSize = DefaultContextSize
	}

	fc := &types.FileContext{
		FilePath:     filePath,
		RelatedFiles: []string{},
		Dependencies: []string{},
		Elements:     []types.ElementSummary{},
	}

	normalized := types.NormalizePath(filePath)
	elements, err := s.store.ElementsByFile(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", normalized, err)
	}
	if len(elements) == 0 {
		fc.Context = fmt.Sprintf("File %s not found in index", filePath)
		return fc, nil
	}
	fc.Found = true
	fc.Context = summarize(elements, contextSize)

	var related []string
	if includeDependencies {
		deps, err := s.AnalyzeDependencies(ctx, normalized, 1, false)
		if err != nil {
			s.logger.Warn("failed to get dependencies", "path", normalized, "error", err)
		} else {
			fc.Dependencies = deps.Dependencies[:min(len(deps.Dependencies), contextSize)]
			related = append(related, deps.Dependents...)
		}
	}

	importers, err := s.store.FindDependents(ctx, normalized, []string{normalized})
	if err != nil {
		return nil, err
	}
	related = append(related, importers...)
	fc.RelatedFiles = uniqueFirst(related, contextSize)

	for i, e := range elements {
		if i == contextSize*2 {
			break
		}
		fc.Elements = append(fc.Elements, types.ElementSummary{
			Kind:      e.Kind,
			Name:      e.Name,
			LineStart: e.Location.LineStart,
			LineEnd:   e.Location.LineEnd,
		})
	}
	return fc, nil
}

// summarize renders "functions: a, b and 3 more; classes: C", kinds in
// order of first appearance
func summarize(elements []types.Element, contextSize int) string {
	var order []types.ElementKind
	names := make(map[types.ElementKind][]string)
	for _, e := range elements {
		if _, ok := names[e.Kind]; !ok {
			order = append(order, e.Kind)
		}
		names[e.Kind] = append(names[e.Kind], e.Name)
	}

	parts := make([]string, 0, len(order))
	for _, kind := range order {
		list := names[kind]
		if len(list) <= contextSize {
			parts = append(parts, fmt.Sprintf("%ss: %s", kind, strings.Join(list, ", ")))
			continue
		}
		parts = append(parts, fmt.Sprintf("%ss: %s and %d more", kind, strings.Join(list[:contextSize], ", "), len(list)-contextSize))
	}
	return strings.Join(parts, "; ")
}

func uniqueFirst(items []string, limit int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, min(len(items), limit))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}

// ArchitectureOverview maps the indexed codebase: its modules, the classes
// whose names suggest an architectural role, and the internal import graph.
// detailLevel widens the module selection; focusArea narrows every list to
// entries containing it.
func (s *Searcher) ArchitectureOverview(ctx context.Context, focusArea, detailLevel string) (*types.ArchitectureOverview, error) {
	if detailLevel == "" {
		detailLevel = DetailMedium
	}
	high := detailLevel == DetailHigh

	moduleFiles, err := s.store.ListFiles(ctx, types.KindModule)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	modules := make([]string, 0, len(moduleFiles))
	core := make(map[string]bool)
	for _, m := range moduleFiles {
		if parser.IsTestFile(m) || !includeModule(m, detailLevel) {
			continue
		}
		modules = append(modules, m)
		core[m] = true
	}

	classes, err := s.store.ElementsByKind(ctx, types.KindClass)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	sort.SliceStable(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	components := make([]string, 0)
	seenComponent := make(map[string]bool)
	for _, c := range classes {
		if !high && parser.IsTestFile(c.FilePath) {
			continue
		}
		if parser.DetectRole(c.Name) == parser.RoleNone && !core[c.FilePath] {
			continue
		}
		if seenComponent[c.Name] {
			continue
		}
		seenComponent[c.Name] = true
		components = append(components, c.Name)
	}

	prefixes, err := s.internalPrefixes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list project modules: %w", err)
	}
	imports, err := s.store.ElementsByKind(ctx, types.KindImport)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	relationships := make(map[string][]string)
	for _, imp := range imports {
		if !high && parser.IsTestFile(imp.FilePath) {
			continue
		}
		if !isInternal(ModuleOf(imp), prefixes) {
			continue
		}
		clean := strings.TrimSpace(strings.NewReplacer("from ", "", "import ", "").Replace(imp.Name))
		if !contains(relationships[imp.FilePath], clean) {
			relationships[imp.FilePath] = append(relationships[imp.FilePath], clean)
		}
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	metrics := map[string]any{
		"total_elements":        stats.TotalElements,
		"total_files":           stats.TotalFiles,
		"element_types":         stats.ByKind,
		"modules_count":         len(modules),
		"components_count":      len(components),
		"relationships_count":   len(relationships),
		"avg_elements_per_file": math.Round(float64(stats.TotalElements)/float64(max(stats.TotalFiles, 1))*100) / 100,
	}

	if focus := strings.ToLower(focusArea); focus != "" {
		modules = filterContains(modules, focus)
		components = filterContains(components, focus)
		for file := range relationships {
			if !strings.Contains(strings.ToLower(file), focus) {
				delete(relationships, file)
			}
		}
	}

	return &types.ArchitectureOverview{
		Modules:           modules,
		KeyComponents:     components,
		Relationships:     relationships,
		ComplexityMetrics: metrics,
	}, nil
}

// includeModule applies the detail level: low keeps package modules,
// medium adds root-level entry points, high keeps everything
func includeModule(file, detailLevel string) bool {
	inPackage := strings.Contains(file, "/")
	switch detailLevel {
	case DetailLow:
		return inPackage
	case DetailHigh:
		return true
	}
	if inPackage {
		return true
	}
	stem := strings.ToLower(strings.TrimSuffix(file, path.Ext(file)))
	for _, w := range entryPointWords {
		if strings.Contains(stem, w) {
			return true
		}
	}
	return false
}

func filterContains(items []string, lowerNeedle string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it), lowerNeedle) {
			out = append(out, it)
		}
	}
	return out
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}

package searcher

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

// quotedModule matches the module string of a JS-style import label
var quotedModule = regexp.MustCompile(`['"]([^'"]+)['"]`)

// ModuleOf extracts the imported module from an import element:
// "from m import x" gives m, "import a.b" gives a, a quoted module string
// is taken as is, and anything else falls back to the last word of the name.
func ModuleOf(imp types.Element) string {
	content := strings.TrimSpace(imp.Content)
	fields := strings.Fields(content)

	switch {
	case strings.HasPrefix(content, "from ") && len(fields) >= 2:
		return fields[1]
	case quotedModule.MatchString(imp.Name):
		return quotedModule.FindStringSubmatch(imp.Name)[1]
	case strings.HasPrefix(content, "import ") && len(fields) >= 2:
		return strings.Split(strings.TrimRight(fields[1], ",;"), ".")[0]
	}

	if strings.Contains(imp.Name, "import") {
		nameFields := strings.Fields(imp.Name)
		return strings.TrimRight(nameFields[len(nameFields)-1], ",;")
	}
	return strings.TrimSpace(imp.Name)
}

// FileModule converts a Python file path to its dotted module name
func FileModule(filePath string) string {
	p := strings.TrimSuffix(types.NormalizePath(filePath), ".py")
	return strings.TrimLeft(strings.ReplaceAll(p, "/", "."), ".")
}

// topLevelModules returns the first path segment of every indexed file,
// without extension: the packages and root modules of the project
func (s *Searcher) topLevelModules(ctx context.Context) ([]string, error) {
	files, err := s.store.ListFiles(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var modules []string
	for _, f := range files {
		first := strings.SplitN(f, "/", 2)[0]
		if !strings.Contains(f, "/") {
			first = strings.TrimSuffix(first, path.Ext(first))
		}
		if first == "" || seen[first] {
			continue
		}
		seen[first] = true
		modules = append(modules, first)
	}
	return modules, nil
}

// internalPrefixes combines the configured prefixes with the project's own modules
func (s *Searcher) internalPrefixes(ctx context.Context) ([]string, error) {
	modules, err := s.topLevelModules(ctx)
	if err != nil {
		return nil, err
	}
	return append(append([]string(nil), s.prefixes...), modules...), nil
}

// isInternal matches a module against prefixes on package boundaries, so
// prefix "a" covers "a" and "a.b" but not "asyncio". "." covers every
// relative import.
func isInternal(module string, prefixes []string) bool {
	for _, p := range prefixes {
		switch {
		case p == ".":
			if strings.HasPrefix(module, ".") {
				return true
			}
		case module == p, strings.HasPrefix(module, p+"."), strings.HasPrefix(module, p+"/"):
			return true
		}
	}
	return false
}

// AnalyzeDependencies reports what the target file imports and which files
// import it. Dependencies holds internal modules only unless includeExternal
// is set; ExternalDependencies always lists the rest. A target that is not
// indexed yields an empty analysis.
func (s *Searcher) AnalyzeDependencies(ctx context.Context, target string, depth int, includeExternal bool) (*types.DependencyAnalysis, error) {
	result := &types.DependencyAnalysis{
		Target:               target,
		Dependencies:         []string{},
		ExternalDependencies: []string{},
		Dependents:           []string{},
		Depth:                depth,
	}

	normalized := types.NormalizePath(target)
	elements, err := s.store.ElementsByFile(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", normalized, err)
	}
	if len(elements) == 0 {
		return result, nil
	}

	prefixes, err := s.internalPrefixes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list project modules: %w", err)
	}

	var imports []types.Element
	for _, e := range elements {
		if e.Kind == types.KindImport {
			imports = append(imports, e)
		}
	}
	sort.SliceStable(imports, func(i, j int) bool { return imports[i].Name < imports[j].Name })

	seen := make(map[string]bool)
	for _, imp := range imports {
		module := ModuleOf(imp)
		if module == "" || seen[module] {
			continue
		}
		seen[module] = true

		if isInternal(module, prefixes) {
			result.Dependencies = append(result.Dependencies, module)
			continue
		}
		result.ExternalDependencies = append(result.ExternalDependencies, module)
		if includeExternal {
			result.Dependencies = append(result.Dependencies, module)
		}
	}

	if module := FileModule(normalized); module != "" {
		dependents, err := s.store.FindDependents(ctx, normalized, []string{module, normalized})
		if err != nil {
			return nil, err
		}
		result.Dependents = dependents
	}

	return result, nil
}

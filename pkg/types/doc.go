// Package types provides the element model shared by every ContextBrain component.
//
// An Element is one indexed unit of source code or documentation: a module,
// class, function, method, import, variable, comment or Markdown heading.
// Elements are produced by the language parsers, enriched with an embedding
// by the embedder, and written to both the structured store and the vector
// store.
//
// # Identity
//
// Element ids are deterministic. They are derived from the element kind, the
// normalized file path, the element name and its declaration line:
//
//	id := types.ElementID(types.KindFunction, "pkg/util.py", "add", 3)
//	// "function_pkg/util.py_add_3"
//
// Re-indexing unchanged source reproduces the same ids, which is what makes
// upserts in both stores idempotent.
//
// # Path Normalization
//
// Every file path is passed through NormalizePath before it is stored or used
// in a lookup. Backslashes become forward slashes and leading "./" segments
// are dropped:
//
//	types.NormalizePath(`.\src\app.py`) // "src/app.py"
//
// # Errors
//
// RunError labels a failed indexing run with one of the kinds timeout,
// partial-failure, fatal-configuration or store-failure:
//
//	if types.IsKind(err, types.KindTimeout) {
//	    // some writes may have been committed; re-index for a clean state
//	}
package types

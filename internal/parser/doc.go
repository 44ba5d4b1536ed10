// Package parser turns source files into indexable elements.
//
// Four parser variants exist and a Registry picks one by language tag:
//
//   - Python is parsed exactly with a tree-sitter grammar. Modules, imports,
//     top-level functions, classes and their methods are extracted together
//     with docstrings, parameters, base classes and a branch-count complexity.
//     A file with a syntax error yields no elements.
//   - JavaScript and TypeScript are scanned with a bank of line patterns for
//     imports, exports, classes, functions and variables. Block extents come
//     from BlockEnd brace matching.
//   - Markdown yields one element per ATX or Setext heading, carrying its
//     section text and a dependency on the enclosing heading.
//   - Every other language goes through the generic scanner, a cross-language
//     pattern bank that favours missing an element over failing.
//
// # Basic Usage
//
//	reg := parser.NewRegistry(logger)
//	elements, err := reg.Parse("python", source, "pkg/calc.py")
//	if err != nil {
//	    // syntax errors surface as *types.ParseError
//	}
//
// All parsers are stateless and safe for concurrent use. Element ids are a
// pure function of file path, kind, name and line, so re-parsing unchanged
// content yields identical ids.
//
// # Naming roles
//
// DetectRole classifies class names by convention (Store, Handler, Engine,
// and so on) for the architecture overview, and IsTestFile filters test and
// diagnostic files out of it.
package parser

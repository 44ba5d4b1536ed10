package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// elementTypes lists the element_type values accepted by search_structural
var elementTypes = []string{
	"function", "class", "method", "variable", "constant", "import", "module",
	"comment", "docstring", "document_heading", "h1", "h2", "h3", "h4", "h5", "h6",
}

// indexProjectTool returns the tool definition for index_project
func indexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_project",
		Description: "Index or re-index a project directory into the structured and semantic stores",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the project root",
				},
				"exclude_patterns": map[string]interface{}{
					"type":        "array",
					"description": "Extra patterns to skip, as path substrings or globs such as '*.min.js'",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"clear_existing": map[string]interface{}{
					"type":        "boolean",
					"description": "Remove the project's previously indexed data before indexing",
					"default":     true,
				},
			},
			Required: []string{"project_path"},
		},
	}
}

// searchSemanticTool returns the tool definition for search_semantic
func searchSemanticTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_semantic",
		Description: "Find indexed code and documentation semantically similar to a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query",
				},
				"similarity_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum similarity score (0.0-1.0)",
					"default":     0.3,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// searchStructuralTool returns the tool definition for search_structural
func searchStructuralTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_structural",
		Description: "Find elements by type and name pattern, optionally within a path scope",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"element_type": map[string]interface{}{
					"type":        "string",
					"description": "Element type to match",
					"enum":        elementTypes,
				},
				"name_pattern": map[string]interface{}{
					"type":        "string",
					"description": "Name pattern; '*' matches any run of characters, empty matches every name",
				},
				"scope": map[string]interface{}{
					"type":        "string",
					"description": "Only return elements whose file path contains this text",
				},
			},
			Required: []string{"element_type"},
		},
	}
}

// analyzeDependenciesTool returns the tool definition for analyze_dependencies
func analyzeDependenciesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_dependencies",
		Description: "List the modules a file imports and the indexed files that import it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"target_file": map[string]interface{}{
					"type":        "string",
					"description": "Project-relative path of the file",
				},
				"depth": map[string]interface{}{
					"type":        "integer",
					"description": "Requested analysis depth",
					"default":     2,
					"minimum":     1,
				},
				"include_external": map[string]interface{}{
					"type":        "boolean",
					"description": "Also list external modules among the dependencies",
					"default":     false,
				},
			},
			Required: []string{"target_file"},
		},
	}
}

// cleanDatabaseEntriesTool returns the tool definition for clean_database_entries
func cleanDatabaseEntriesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clean_database_entries",
		Description: "Remove a project's entries from both stores. Previews by default; set confirm=true and dry_run=false to delete",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_path": map[string]interface{}{
					"type":        "string",
					"description": "Project root to clean; '.' cleans every project",
					"default":     ".",
				},
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Must be true to delete anything",
					"default":     false,
				},
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "Count the entries that would be removed without removing them",
					"default":     true,
				},
			},
		},
	}
}

// getContextForFileTool returns the tool definition for get_context_for_file
func getContextForFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_context_for_file",
		Description: "Summarize an indexed file: its elements, dependencies and related files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Project-relative path of the file",
				},
				"context_size": map[string]interface{}{
					"type":        "integer",
					"description": "Names listed per element type and related files returned",
					"default":     5,
					"minimum":     1,
				},
				"include_dependencies": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the file's internal dependencies",
					"default":     true,
				},
			},
			Required: []string{"file_path"},
		},
	}
}

// getArchitectureOverviewTool returns the tool definition for get_architecture_overview
func getArchitectureOverviewTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_architecture_overview",
		Description: "Map the indexed codebase: modules, key components and internal import relationships",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"focus_area": map[string]interface{}{
					"type":        "string",
					"description": "Only keep entries whose name contains this text",
				},
				"detail_level": map[string]interface{}{
					"type":        "string",
					"description": "low lists package modules, medium adds root entry points, high lists everything",
					"enum":        []string{"low", "medium", "high"},
					"default":     "medium",
				},
			},
		},
	}
}

// getIndexStatsTool returns the tool definition for get_index_stats
func getIndexStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_index_stats",
		Description: "Report element counts by type and language, vector document count and store details",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// Package mcp implements the Model Context Protocol (MCP) server for ContextBrain.
//
// The server exposes the index to AI coding assistants as eight tools:
//   - index_project: Index or re-index a project directory
//   - search_semantic: Find elements similar to a natural language query
//   - search_structural: Find elements by type, name pattern and path scope
//   - analyze_dependencies: List a file's imports and the files importing it
//   - clean_database_entries: Preview or remove a project's entries
//   - get_context_for_file: Summarize one indexed file
//   - get_architecture_overview: Map modules, key components and imports
//   - get_index_stats: Report element and vector counts
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries the protocol, so all logging goes to stderr.
//
// # Tool: index_project
//
//	Request:
//	{
//	  "name": "index_project",
//	  "arguments": {
//	    "project_path": "/path/to/project",
//	    "exclude_patterns": ["*.min.js", "fixtures"],
//	    "clear_existing": true
//	  }
//	}
//
//	Response:
//	{
//	  "status": "success",
//	  "run_id": "6f1c...",
//	  "outcome": "complete",
//	  "project": "/path/to/project",
//	  "statistics": {
//	    "total_files": 42,
//	    "total_elements": 913,
//	    "languages": ["markdown", "python"],
//	    "processing_time_ms": 5120
//	  }
//	}
//
// A run that fails after the configuration checks, including a timeout,
// returns an error result with "status" set to "error" or "timeout", the
// state it failed in and the partial statistics. Clients that send a
// progress token receive notifications/progress messages per state.
//
// # Tool: search_semantic
//
//	Request:
//	{
//	  "name": "search_semantic",
//	  "arguments": {"query": "retry with backoff", "similarity_threshold": 0.3, "limit": 10}
//	}
//
// Results are ordered by non-increasing score, each at least the threshold.
//
// # Tool: clean_database_entries
//
// Defaults to a dry run. Deleting requires confirm=true and dry_run=false;
// otherwise the result carries "error": "cleanup_not_confirmed". A
// project_path of "." targets every indexed project.
//
// # Error Handling
//
// Invalid calls fail with an MCPError:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Project path missing or not a directory
//   - -32002: Indexing in progress
//   - -32004: Empty query
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "contextbrain": {
//	      "command": "/usr/local/bin/contextbrain",
//	      "args": ["--config", "/home/me/.contextbrain/config.toml"],
//	      "env": {"JINA_API_KEY": "your-api-key"}
//	    }
//	  }
//	}
package mcp

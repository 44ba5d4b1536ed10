package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/RealFaceCode/ContextBrain/internal/indexer"
	"github.com/RealFaceCode/ContextBrain/internal/searcher"
	"github.com/RealFaceCode/ContextBrain/internal/storage"
	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Project root missing or not a readable directory
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleIndexProject handles the index_project tool invocation
func (s *Server) handleIndexProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path, ok := args["project_path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "project_path parameter is required", map[string]interface{}{
			"param":  "project_path",
			"reason": "missing or empty",
		})
	}

	opts := indexer.IndexOptions{
		ExcludePatterns: getStringSlice(args, "exclude_patterns"),
		SkipClear:       !getBoolDefault(args, "clear_existing", true),
		Sink:            s.progressSink(ctx, request),
	}

	result, err := s.indexer.IndexProject(ctx, path, opts)
	if err != nil {
		return s.indexFailure(path, result, err)
	}

	return jsonResult(map[string]interface{}{
		"status":     "success",
		"run_id":     result.RunID,
		"outcome":    result.Outcome,
		"project":    result.ProjectPath,
		"statistics": statistics(result.Statistics),
		"created_at": result.CreatedAt.Format(time.RFC3339),
	}), nil
}

// indexFailure maps an indexing error to an MCP error, or to an error
// result carrying the partial statistics when the run got that far
func (s *Server) indexFailure(path string, result *types.ProjectIndex, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, types.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"project_path": path,
		})
	}
	if errors.Is(err, types.ErrProjectRoot) {
		return nil, newMCPError(ErrorCodeProjectNotFound, "project path is not a readable directory", map[string]interface{}{
			"project_path": path,
			"reason":       err.Error(),
		})
	}

	var runErr *types.RunError
	if result == nil || !errors.As(err, &runErr) {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status := "error"
	if runErr.Kind == types.KindTimeout {
		status = "timeout"
	}
	res := jsonResult(map[string]interface{}{
		"status":     status,
		"message":    err.Error(),
		"state":      runErr.State,
		"run_id":     result.RunID,
		"outcome":    result.Outcome,
		"project":    result.ProjectPath,
		"statistics": statistics(result.Statistics),
	})
	res.IsError = true
	return res, nil
}

// progressSink forwards run events as progress notifications when the
// client asked for them
func (s *Server) progressSink(ctx context.Context, request mcp.CallToolRequest) indexer.ProgressSink {
	var token mcp.ProgressToken
	if request.Params.Meta != nil {
		token = request.Params.Meta.ProgressToken
	}
	srv := server.ServerFromContext(ctx)

	return indexer.SinkFunc(func(e indexer.Event) {
		s.logger.Debug("indexing progress", "run", e.RunID, "state", e.State, "done", e.Done, "total", e.Total)
		if token == nil || srv == nil {
			return
		}
		params := map[string]any{
			"progressToken": token,
			"progress":      e.Done,
			"message":       fmt.Sprintf("%s: %s", e.State, e.Message),
		}
		if e.Total > 0 {
			params["total"] = e.Total
		}
		if err := srv.SendNotificationToClient(ctx, "notifications/progress", params); err != nil {
			s.logger.Debug("progress notification dropped", "error", err)
		}
	})
}

// handleSearchSemantic handles the search_semantic tool invocation
func (s *Server) handleSearchSemantic(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", s.cfg.Search.Limit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	threshold := getFloatDefault(args, "similarity_threshold", s.cfg.Search.Threshold)

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:     query,
		Limit:     limit,
		Threshold: threshold,
		UseCache:  true,
		CacheTTL:  s.cfg.Search.CacheTTL,
	})
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "blank",
		})
	case errors.Is(err, searcher.ErrInvalidThreshold):
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param": "similarity_threshold",
			"value": threshold,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for i, r := range resp.Results {
		view := elementView(r.Element)
		view["rank"] = i + 1
		view["score"] = r.Score
		view["snippet"] = r.Snippet
		results = append(results, view)
	}

	return jsonResult(map[string]interface{}{
		"query":         query,
		"results":       results,
		"total_results": resp.TotalResults,
		"duration_ms":   resp.Duration.Milliseconds(),
		"cache_hit":     resp.CacheHit,
		"explanation":   fmt.Sprintf("Found %d semantically similar results", resp.TotalResults),
	}), nil
}

// handleSearchStructural handles the search_structural tool invocation
func (s *Server) handleSearchStructural(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	kind, ok := args["element_type"].(string)
	if !ok || kind == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "element_type parameter is required", map[string]interface{}{
			"param":  "element_type",
			"reason": "missing or empty",
		})
	}
	pattern := getStringDefault(args, "name_pattern", "")
	scope := getStringDefault(args, "scope", "")

	elements, err := s.searcher.Structural(ctx, types.ElementKind(kind), pattern, scope)
	if errors.Is(err, searcher.ErrInvalidKind) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid element_type", map[string]interface{}{
			"param":   "element_type",
			"value":   kind,
			"allowed": elementTypes,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "structural search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(elements))
	for _, e := range elements {
		results = append(results, elementView(e))
	}
	return jsonResult(map[string]interface{}{
		"element_type":  kind,
		"name_pattern":  pattern,
		"scope":         scope,
		"results":       results,
		"total_results": len(results),
	}), nil
}

// handleAnalyzeDependencies handles the analyze_dependencies tool invocation
func (s *Server) handleAnalyzeDependencies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	target, ok := args["target_file"].(string)
	if !ok || target == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "target_file parameter is required", map[string]interface{}{
			"param":  "target_file",
			"reason": "missing or empty",
		})
	}
	depth := getIntDefault(args, "depth", 2)
	if depth < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "depth must be at least 1", map[string]interface{}{
			"param": "depth",
			"value": depth,
		})
	}

	analysis, err := s.searcher.AnalyzeDependencies(ctx, target, depth, getBoolDefault(args, "include_external", false))
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "dependency analysis failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return marshalResult(analysis)
}

// handleCleanDatabaseEntries handles the clean_database_entries tool invocation
func (s *Server) handleCleanDatabaseEntries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path := getStringDefault(args, "project_path", ".")
	confirm := getBoolDefault(args, "confirm", false)
	dryRun := getBoolDefault(args, "dry_run", true)

	stats, err := s.indexer.ClearProject(ctx, path, confirm, dryRun)
	switch {
	case errors.Is(err, indexer.ErrCleanupNotConfirmed):
		res := jsonResult(map[string]interface{}{
			"error":        indexer.ErrCleanupNotConfirmed.Error(),
			"message":      "Set confirm=true to perform the cleanup, or dry_run=true to preview it",
			"project_path": stats.ProjectPath,
			"dry_run":      dryRun,
			"confirmed":    confirm,
		})
		res.IsError = true
		return res, nil
	case errors.Is(err, types.ErrIndexingInProgress):
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing in progress for this project", map[string]interface{}{
			"project_path": path,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "cleanup failed", map[string]interface{}{
			"error":        err.Error(),
			"project_path": path,
		})
	}

	response := map[string]interface{}{
		"project_path":        stats.ProjectPath,
		"dry_run":             stats.DryRun,
		"confirmed":           stats.Confirmed,
		"structured_elements": stats.StructuredElements,
		"vector_documents":    stats.VectorDocuments,
		"action":              stats.Action,
	}
	if stats.ProjectPath == storage.AllProjects {
		response["scope"] = "all_projects"
	}
	return jsonResult(response), nil
}

// handleGetContextForFile handles the get_context_for_file tool invocation
func (s *Server) handleGetContextForFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path, ok := args["file_path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file_path parameter is required", map[string]interface{}{
			"param":  "file_path",
			"reason": "missing or empty",
		})
	}
	size := getIntDefault(args, "context_size", searcher.DefaultContextSize)
	if size < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "context_size must be at least 1", map[string]interface{}{
			"param": "context_size",
			"value": size,
		})
	}

	fc, err := s.searcher.FileContext(ctx, path, size, getBoolDefault(args, "include_dependencies", true))
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to build file context", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return marshalResult(fc)
}

// handleGetArchitectureOverview handles the get_architecture_overview tool invocation
func (s *Server) handleGetArchitectureOverview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	level := getStringDefault(args, "detail_level", searcher.DetailMedium)
	if level != searcher.DetailLow && level != searcher.DetailMedium && level != searcher.DetailHigh {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid detail_level", map[string]interface{}{
			"param":   "detail_level",
			"value":   level,
			"allowed": []string{searcher.DetailLow, searcher.DetailMedium, searcher.DetailHigh},
		})
	}

	overview, err := s.searcher.ArchitectureOverview(ctx, getStringDefault(args, "focus_area", ""), level)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to build architecture overview", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return marshalResult(overview)
}

// handleGetIndexStats handles the get_index_stats tool invocation
func (s *Server) handleGetIndexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.searcher.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get index statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":          stats.TotalElements > 0,
		"total_elements":   stats.TotalElements,
		"total_files":      stats.TotalFiles,
		"by_type":          stats.ByKind,
		"by_language":      stats.ByLanguage,
		"vector_documents": stats.VectorDocuments,
		"schema_version":   stats.SchemaVersion,
		"index_size_mb":    fmt.Sprintf("%.2f", stats.SizeMB),
		"search_cache":     s.searcher.CacheLen(),
		"store": map[string]interface{}{
			"data_dir":   s.cfg.DataDir,
			"build_mode": storage.BuildMode,
			"driver":     storage.DriverName,
		},
	}
	if s.embedder.Initialized() {
		if e, err := s.embedder.Get(ctx); err == nil {
			response["embedder"] = map[string]interface{}{
				"provider":  e.Provider(),
				"model":     e.Model(),
				"dimension": e.Dimension(),
			}
		}
	}
	return jsonResult(response), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// elementView renders an element for tool output
func elementView(e types.Element) map[string]interface{} {
	view := map[string]interface{}{
		"id":         e.ID,
		"type":       e.Kind,
		"name":       e.Name,
		"file_path":  e.FilePath,
		"line_start": e.Location.LineStart,
		"line_end":   e.Location.LineEnd,
		"language":   e.Metadata.Language,
		"content":    e.Content,
	}
	if e.Metadata.Docstring != "" {
		view["docstring"] = e.Metadata.Docstring
	}
	if len(e.Metadata.Parameters) > 0 {
		view["parameters"] = e.Metadata.Parameters
	}
	if len(e.Metadata.BaseClasses) > 0 {
		view["base_classes"] = e.Metadata.BaseClasses
	}
	if e.Metadata.Complexity != nil {
		view["complexity"] = *e.Metadata.Complexity
	}
	return view
}

func statistics(st types.ProjectStatistics) map[string]interface{} {
	return map[string]interface{}{
		"total_files":        st.TotalFiles,
		"total_elements":     st.TotalElements,
		"languages":          st.Languages,
		"processing_time_ms": st.ProcessingTime.Milliseconds(),
	}
}

// jsonResult formats a map as an indented JSON text result
func jsonResult(data map[string]interface{}) *mcp.CallToolResult {
	return mcp.NewToolResultText(formatJSON(data))
}

// marshalResult formats a typed value as an indented JSON text result
func marshalResult(v interface{}) (*mcp.CallToolResult, error) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode result", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(string(bytes)), nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-string items
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

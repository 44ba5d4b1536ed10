package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealFaceCode/ContextBrain/internal/config"
	"github.com/RealFaceCode/ContextBrain/internal/embedder"
	"github.com/RealFaceCode/ContextBrain/internal/storage"
	"github.com/RealFaceCode/ContextBrain/internal/vectorstore"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func setupServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)

	emb := embedder.NewLazy(func() (embedder.Embedder, error) {
		return embedder.NewLocalProvider(), nil
	})
	vectors, err := vectorstore.Open(":memory:", vectorstore.WithEmbedFunc(EmbedFunc(emb)))
	require.NoError(t, err)

	s := newServer(cfg, store, vectors, emb, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"a.py":           "def helper(value):\n    \"\"\"Double a value.\"\"\"\n    return value * 2\n",
		"b.py":           "from a import helper\nimport os\n\n\ndef run():\n    return helper(os.getpid())\n",
		"pkg/service.py": "class UserService:\n    def find(self, user_id):\n        return user_id\n",
	}
	for rel, content := range files {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

// call invokes a handler and decodes its JSON text result
func call(t *testing.T, h handler, args map[string]interface{}) (map[string]interface{}, *mcp.CallToolResult) {
	t.Helper()
	res, err := h(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "result should be text content")
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out, res
}

// callError invokes a handler that must fail with an MCPError
func callError(t *testing.T, h handler, args map[string]interface{}) *MCPError {
	t.Helper()
	_, err := h(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.Error(t, err)
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "error should be an MCPError: %v", err)
	return mcpErr
}

func indexProject(t *testing.T, s *Server) string {
	t.Helper()
	dir := writeProject(t)
	out, res := call(t, s.handleIndexProject, map[string]interface{}{"project_path": dir})
	require.False(t, res.IsError, "%v", out)
	return dir
}

func names(results interface{}) []string {
	var out []string
	for _, r := range results.([]interface{}) {
		out = append(out, r.(map[string]interface{})["name"].(string))
	}
	sort.Strings(out)
	return out
}

func TestServer_ListsTools(t *testing.T) {
	s := setupServer(t)

	resp := s.mcp.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	var got []string
	for _, tool := range decoded.Result.Tools {
		got = append(got, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"index_project", "search_semantic", "search_structural", "analyze_dependencies",
		"clean_database_entries", "get_context_for_file", "get_architecture_overview", "get_index_stats",
	}, got)
}

func TestNewServer_OpensStoresUnderDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")

	s, err := NewServer(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.FileExists(t, cfg.StructuredDBPath())
	assert.FileExists(t, cfg.VectorDBPath())
}

func TestHandleIndexProject(t *testing.T) {
	s := setupServer(t)
	dir := writeProject(t)

	out, res := call(t, s.handleIndexProject, map[string]interface{}{
		"project_path":     dir,
		"exclude_patterns": []interface{}{"pkg"},
	})
	assert.False(t, res.IsError)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "complete", out["outcome"])
	assert.NotEmpty(t, out["run_id"])

	stats := out["statistics"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["total_files"])
	assert.Equal(t, []interface{}{"python"}, stats["languages"])

	t.Run("missing path", func(t *testing.T) {
		err := callError(t, s.handleIndexProject, map[string]interface{}{})
		assert.Equal(t, ErrorCodeInvalidParams, err.Code)
	})

	t.Run("not a directory", func(t *testing.T) {
		err := callError(t, s.handleIndexProject, map[string]interface{}{
			"project_path": filepath.Join(dir, "a.py"),
		})
		assert.Equal(t, ErrorCodeProjectNotFound, err.Code)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := s.handleIndexProject(context.Background(), mcp.CallToolRequest{
			Params: mcp.CallToolParams{Arguments: "not a map"},
		})
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	})
}

func TestHandleIndexProject_KeepExisting(t *testing.T) {
	s := setupServer(t)
	dir := indexProject(t, s)
	before, _ := call(t, s.handleGetIndexStats, nil)

	require.NoError(t, os.Remove(filepath.Join(dir, "pkg", "service.py")))
	_, res := call(t, s.handleIndexProject, map[string]interface{}{
		"project_path":   dir,
		"clear_existing": false,
	})
	require.False(t, res.IsError)

	// Without clearing, elements of the removed file survive
	after, _ := call(t, s.handleGetIndexStats, nil)
	assert.Equal(t, before["total_files"], after["total_files"])
}

func TestHandleSearchSemantic(t *testing.T) {
	s := setupServer(t)
	indexProject(t, s)

	out, _ := call(t, s.handleSearchSemantic, map[string]interface{}{
		"query":                "helper function that doubles a value",
		"similarity_threshold": 0.0,
		"limit":                float64(20),
	})
	results := out["results"].([]interface{})
	require.NotEmpty(t, results)
	assert.Contains(t, names(out["results"]), "helper")

	prev := 1.0
	for i, r := range results {
		hit := r.(map[string]interface{})
		score := hit["score"].(float64)
		assert.LessOrEqual(t, score, prev)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.Equal(t, float64(i+1), hit["rank"])
		prev = score
	}

	cached, _ := call(t, s.handleSearchSemantic, map[string]interface{}{
		"query":                "helper function that doubles a value",
		"similarity_threshold": 0.0,
		"limit":                float64(20),
	})
	assert.Equal(t, true, cached["cache_hit"])

	t.Run("validation", func(t *testing.T) {
		assert.Equal(t, ErrorCodeEmptyQuery, callError(t, s.handleSearchSemantic, map[string]interface{}{}).Code)
		assert.Equal(t, ErrorCodeEmptyQuery, callError(t, s.handleSearchSemantic, map[string]interface{}{"query": "  "}).Code)
		assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleSearchSemantic, map[string]interface{}{
			"query": "x", "limit": float64(500),
		}).Code)
		assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleSearchSemantic, map[string]interface{}{
			"query": "x", "similarity_threshold": 2.0,
		}).Code)
	})
}

func TestHandleSearchStructural(t *testing.T) {
	s := setupServer(t)
	indexProject(t, s)

	out, _ := call(t, s.handleSearchStructural, map[string]interface{}{
		"element_type": "class",
		"name_pattern": "*Service",
	})
	assert.Equal(t, []string{"UserService"}, names(out["results"]))

	out, _ = call(t, s.handleSearchStructural, map[string]interface{}{
		"element_type": "function",
		"name_pattern": "*",
		"scope":        "b.py",
	})
	assert.Equal(t, []string{"run"}, names(out["results"]))

	err := callError(t, s.handleSearchStructural, map[string]interface{}{"element_type": "widget"})
	assert.Equal(t, ErrorCodeInvalidParams, err.Code)
	err = callError(t, s.handleSearchStructural, map[string]interface{}{})
	assert.Equal(t, ErrorCodeInvalidParams, err.Code)
}

func TestHandleAnalyzeDependencies(t *testing.T) {
	s := setupServer(t)
	indexProject(t, s)

	out, _ := call(t, s.handleAnalyzeDependencies, map[string]interface{}{"target_file": "b.py"})
	assert.Equal(t, []interface{}{"a"}, out["dependencies"])
	assert.Equal(t, []interface{}{"os"}, out["external_dependencies"])
	assert.Equal(t, float64(2), out["depth"])

	out, _ = call(t, s.handleAnalyzeDependencies, map[string]interface{}{"target_file": "./a.py"})
	assert.Equal(t, []interface{}{"b.py"}, out["dependents"])

	out, _ = call(t, s.handleAnalyzeDependencies, map[string]interface{}{
		"target_file":      "b.py",
		"include_external": true,
	})
	assert.ElementsMatch(t, []interface{}{"a", "os"}, out["dependencies"])

	assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleAnalyzeDependencies, map[string]interface{}{}).Code)
	assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleAnalyzeDependencies, map[string]interface{}{
		"target_file": "b.py", "depth": float64(0),
	}).Code)
}

func TestHandleCleanDatabaseEntries(t *testing.T) {
	s := setupServer(t)
	dir := indexProject(t, s)
	stats, _ := call(t, s.handleGetIndexStats, nil)
	total := stats["total_elements"]

	t.Run("defaults to a preview", func(t *testing.T) {
		out, res := call(t, s.handleCleanDatabaseEntries, map[string]interface{}{"project_path": dir})
		assert.False(t, res.IsError)
		assert.Equal(t, "preview_only", out["action"])
		assert.Equal(t, total, out["structured_elements"])
	})

	t.Run("requires confirmation", func(t *testing.T) {
		out, res := call(t, s.handleCleanDatabaseEntries, map[string]interface{}{
			"project_path": dir,
			"dry_run":      false,
		})
		assert.True(t, res.IsError)
		assert.Equal(t, "cleanup_not_confirmed", out["error"])

		after, _ := call(t, s.handleGetIndexStats, nil)
		assert.Equal(t, total, after["total_elements"])
	})

	t.Run("confirmed cleanup", func(t *testing.T) {
		out, _ := call(t, s.handleCleanDatabaseEntries, map[string]interface{}{
			"project_path": dir,
			"confirm":      true,
			"dry_run":      false,
		})
		assert.Equal(t, "cleanup_completed", out["action"])
		assert.Equal(t, total, out["vector_documents"])

		after, _ := call(t, s.handleGetIndexStats, nil)
		assert.Equal(t, float64(0), after["total_elements"])
		assert.Equal(t, float64(0), after["vector_documents"])
		assert.Equal(t, false, after["indexed"])
	})

	t.Run("dot targets every project", func(t *testing.T) {
		out, _ := call(t, s.handleCleanDatabaseEntries, nil)
		assert.Equal(t, "all_projects", out["scope"])
		assert.Equal(t, true, out["dry_run"])
	})
}

func TestHandleGetContextForFile(t *testing.T) {
	s := setupServer(t)
	indexProject(t, s)

	out, _ := call(t, s.handleGetContextForFile, map[string]interface{}{"file_path": "b.py"})
	assert.Equal(t, true, out["found"])
	assert.Contains(t, out["context"], "functions: run")
	assert.Equal(t, []interface{}{"a"}, out["dependencies"])

	out, _ = call(t, s.handleGetContextForFile, map[string]interface{}{"file_path": "missing.py"})
	assert.Equal(t, false, out["found"])
	assert.Equal(t, "File missing.py not found in index", out["context"])

	assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleGetContextForFile, map[string]interface{}{}).Code)
	assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleGetContextForFile, map[string]interface{}{
		"file_path": "b.py", "context_size": float64(-1),
	}).Code)
}

func TestHandleGetArchitectureOverview(t *testing.T) {
	s := setupServer(t)
	indexProject(t, s)

	out, _ := call(t, s.handleGetArchitectureOverview, nil)
	assert.Equal(t, []interface{}{"pkg/service.py"}, out["modules"])
	assert.Contains(t, out["key_components"], "UserService")

	out, _ = call(t, s.handleGetArchitectureOverview, map[string]interface{}{"detail_level": "high"})
	assert.Len(t, out["modules"], 3)

	err := callError(t, s.handleGetArchitectureOverview, map[string]interface{}{"detail_level": "extreme"})
	assert.Equal(t, ErrorCodeInvalidParams, err.Code)
}

func TestHandleGetIndexStats(t *testing.T) {
	s := setupServer(t)

	empty, _ := call(t, s.handleGetIndexStats, nil)
	assert.Equal(t, false, empty["indexed"])
	assert.NotContains(t, empty, "embedder")

	indexProject(t, s)
	out, _ := call(t, s.handleGetIndexStats, nil)
	assert.Equal(t, true, out["indexed"])
	assert.Equal(t, float64(3), out["total_files"])
	assert.Equal(t, out["total_elements"], out["vector_documents"])
	assert.Equal(t, storage.DriverName, out["store"].(map[string]interface{})["driver"])

	emb := out["embedder"].(map[string]interface{})
	assert.Equal(t, embedder.ProviderLocal, emb["provider"])
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]interface{}{
		"b":     true,
		"f":     0.5,
		"i":     float64(7),
		"s":     "x",
		"list":  []interface{}{"a", 1, "b"},
		"typed": []string{"c"},
	}
	assert.True(t, getBoolDefault(args, "b", false))
	assert.True(t, getBoolDefault(args, "missing", true))
	assert.Equal(t, 0.5, getFloatDefault(args, "f", 0))
	assert.Equal(t, 0.3, getFloatDefault(args, "missing", 0.3))
	assert.Equal(t, 7, getIntDefault(args, "i", 0))
	assert.Equal(t, "x", getStringDefault(args, "s", ""))
	assert.Equal(t, []string{"a", "b"}, getStringSlice(args, "list"))
	assert.Equal(t, []string{"c"}, getStringSlice(args, "typed"))
	assert.Nil(t, getStringSlice(args, "missing"))
}

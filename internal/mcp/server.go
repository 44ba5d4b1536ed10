package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/RealFaceCode/ContextBrain/internal/config"
	"github.com/RealFaceCode/ContextBrain/internal/embedder"
	"github.com/RealFaceCode/ContextBrain/internal/extractor"
	"github.com/RealFaceCode/ContextBrain/internal/indexer"
	"github.com/RealFaceCode/ContextBrain/internal/parser"
	"github.com/RealFaceCode/ContextBrain/internal/searcher"
	"github.com/RealFaceCode/ContextBrain/internal/storage"
	"github.com/RealFaceCode/ContextBrain/internal/vectorstore"
)

const (
	// ServerName is the MCP server name
	ServerName = "contextbrain"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	vectors  *vectorstore.Collection
	embedder *embedder.Lazy
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	cfg      *config.Config
	logger   *slog.Logger
}

// NewServer opens both stores under cfg.DataDir and wires the indexer and
// searcher around them. The embedder is created on first use.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.StructuredDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb := embedder.NewLazyFromConfig(cfg.EmbedderConfig())
	vectors, err := vectorstore.Open(cfg.VectorDBPath(),
		vectorstore.WithEmbedFunc(EmbedFunc(emb)),
		vectorstore.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	return newServer(cfg, store, vectors, emb, logger), nil
}

// newServer builds the indexer and searcher over opened stores and
// registers the tools
func newServer(cfg *config.Config, store storage.Storage, vectors *vectorstore.Collection, emb *embedder.Lazy, logger *slog.Logger) *Server {
	coordinator := extractor.New(parser.NewRegistry(logger), cfg.ExtractorConfig(), logger)
	idx := indexer.New(store, vectors, coordinator, emb, indexer.Config{
		EmbedBatchSize: cfg.Indexing.BatchSize,
		Timeout:        cfg.Indexing.Timeout,
		Logger:         logger,
	})
	srch := searcher.NewSearcher(store, vectors, searcher.Options{
		InternalPrefixes: cfg.Search.InternalPrefixes,
		CacheSize:        cfg.Search.CacheSize,
		Logger:           logger,
	})
	idx.OnIndexChanged(srch.InvalidateCache)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage:  store,
		vectors:  vectors,
		embedder: emb,
		indexer:  idx,
		searcher: srch,
		cfg:      cfg,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// EmbedFunc adapts a lazy embedder to the vector collection's query embedding
func EmbedFunc(emb *embedder.Lazy) vectorstore.EmbedFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		e, err := emb.Get(ctx)
		if err != nil {
			return nil, err
		}
		return e.GenerateEmbedding(ctx, text)
	}
}

// Indexer returns the server's indexer, shared with watch mode
func (s *Server) Indexer() *indexer.Indexer {
	return s.indexer
}

// Coordinator returns the extraction coordinator configured for this server
func (s *Server) Coordinator() *extractor.Coordinator {
	return extractor.New(nil, s.cfg.ExtractorConfig(), s.logger)
}

// Serve runs the MCP protocol on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(os.Stderr, "mcp: ", log.LstdFlags))

	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the embedder and both stores
func (s *Server) Close() error {
	return errors.Join(s.embedder.Close(), s.vectors.Close(), s.storage.Close())
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexProjectTool(), s.handleIndexProject)
	s.mcp.AddTool(searchSemanticTool(), s.handleSearchSemantic)
	s.mcp.AddTool(searchStructuralTool(), s.handleSearchStructural)
	s.mcp.AddTool(analyzeDependenciesTool(), s.handleAnalyzeDependencies)
	s.mcp.AddTool(cleanDatabaseEntriesTool(), s.handleCleanDatabaseEntries)
	s.mcp.AddTool(getContextForFileTool(), s.handleGetContextForFile)
	s.mcp.AddTool(getArchitectureOverviewTool(), s.handleGetArchitectureOverview)
	s.mcp.AddTool(getIndexStatsTool(), s.handleGetIndexStats)
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RealFaceCode/ContextBrain/internal/config"
	"github.com/RealFaceCode/ContextBrain/internal/indexer"
	"github.com/RealFaceCode/ContextBrain/internal/mcp"
	"github.com/RealFaceCode/ContextBrain/internal/storage"
	"github.com/RealFaceCode/ContextBrain/internal/watcher"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "contextbrain",
	Short: "Serve a code index to AI assistants over MCP",
	Long: `ContextBrain indexes a project into a structured SQLite index and a
semantic vector collection, and serves both over the Model Context Protocol
on stdio.

Examples:
  # Serve with the default configuration (~/.contextbrain/config.toml)
  contextbrain

  # Re-index a project whenever its files change
  contextbrain --watch /path/to/project`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.Flags().StringP("config", "c", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.Flags().StringP("watch", "w", "", "project directory to re-index on file changes")
	rootCmd.SetVersionTemplate(fmt.Sprintf("ContextBrain MCP Server\nVersion: %s\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\n",
		version, buildTime, storage.BuildMode, storage.DriverName))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("getting config flag: %w", err)
	}
	watchDir, err := cmd.Flags().GetString("watch")
	if err != nil {
		return fmt.Errorf("getting watch flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	// Log startup info to stderr (stdout reserved for MCP protocol)
	log.SetOutput(os.Stderr)
	log.Printf("ContextBrain MCP Server v%s starting...", version)
	log.Printf("Build Mode: %s, Driver: %s, Data Dir: %s", storage.BuildMode, storage.DriverName, cfg.DataDir)

	server, err := mcp.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			logger.Warn("failed to close stores", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchDir == "" && cfg.Watch.Enabled {
		watchDir = "."
	}
	if watchDir != "" {
		w, err := watcher.New(watchDir, server.Coordinator(), cfg.Watch.Debounce, func(ctx context.Context) error {
			_, err := server.Indexer().IndexProject(ctx, watchDir, indexer.IndexOptions{})
			return err
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", watchDir, err)
		}
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("watcher stopped", "error", err)
			}
		}()
		log.Printf("Watching %s for changes", watchDir)
	}

	log.Println("MCP server ready, listening on stdio...")
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RealFaceCode/ContextBrain/internal/config"
	"github.com/RealFaceCode/ContextBrain/internal/indexer"
	"github.com/RealFaceCode/ContextBrain/internal/mcp"
)

var rootCmd = &cobra.Command{
	Use:   "contextbrain-index [project-dir]",
	Short: "Index a project once and print the result as JSON",
	Long: `Index a project directory into the ContextBrain stores configured for the
MCP server, then print the resulting project index as JSON on stdout.

Examples:
  contextbrain-index .
  contextbrain-index --exclude '*.min.js' --exclude fixtures ~/src/app
  contextbrain-index --keep-existing --progress ~/src/app`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runIndex,
}

func init() {
	rootCmd.Flags().StringP("config", "c", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.Flags().StringSliceP("exclude", "e", nil, "extra exclude pattern, repeatable")
	rootCmd.Flags().Bool("keep-existing", false, "keep the project's previously indexed data")
	rootCmd.Flags().Duration("timeout", 0, "run deadline, overrides the configured timeout")
	rootCmd.Flags().Bool("progress", false, "print progress events to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	excludes, _ := flags.GetStringSlice("exclude")
	keep, _ := flags.GetBool("keep-existing")
	timeout, _ := flags.GetDuration("timeout")
	progress, _ := flags.GetBool("progress")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	server, err := mcp.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	defer server.Close()

	opts := indexer.IndexOptions{
		ExcludePatterns: excludes,
		SkipClear:       keep,
		Timeout:         timeout,
	}
	if progress {
		errOut := cmd.ErrOrStderr()
		opts.Sink = indexer.SinkFunc(func(e indexer.Event) {
			if e.Total > 0 {
				fmt.Fprintf(errOut, "[%s] %s (%d/%d)\n", e.State, e.Message, e.Done, e.Total)
				return
			}
			fmt.Fprintf(errOut, "[%s] %s\n", e.State, e.Message)
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := server.Indexer().IndexProject(ctx, root, opts)
	if result != nil {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	return runErr
}

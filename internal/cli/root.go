// Package cli provides the command-line interface for optiview.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/optiview/optiview/internal/config"
	"github.com/optiview/optiview/internal/events"
	"github.com/optiview/optiview/internal/index/vector"
	"github.com/optiview/optiview/internal/llm"
	"github.com/optiview/optiview/internal/metrics"
	"github.com/optiview/optiview/internal/service"
	"github.com/optiview/optiview/internal/store"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and store
	cfg config.Config
	st  *store.Store

	// Lazy-initialized LLM components
	embedder *llm.Embedder
	model    *llm.Model

	collector  = metrics.NewCollector()
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "optiview",
	Short: "AI visibility scanner for websites",
	Long: `OptiView crawls a website, indexes its content both lexically (BM25)
and semantically (dense vectors), then probes the indexes with synthetic
queries to measure how visible the site is to AI-assistant retrieval.

Scan results roll up into coverage metrics and a prioritized action plan
for improving retrieval visibility.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip store connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, cleanup := config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		logCleanup = cleanup

		ctx := context.Background()
		st, err = store.New(ctx, store.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, nil)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := st.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			if err := st.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// getService builds the pipeline service with lazy LLM initialization.
// Commands that need embeddings or generation pass requireLLM=true.
func getService(requireLLM bool) (*service.Service, error) {
	if requireLLM && embedder == nil {
		var err error
		embedder, err = llm.NewEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		model, err = llm.NewModel(cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}

	// Nil pointers must not reach the service as non-nil interfaces.
	var e vector.Embedder
	if embedder != nil {
		e = embedder
	}
	var m service.Model
	if model != nil {
		m = model
	}
	return service.New(cfg, st, e, m, events.LogSink{}, collector), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/scifit-rag/app"
	"github.com/upb/scifit-rag/config"
	"github.com/upb/scifit-rag/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rag-ingest",
		Short:         "Build and query the SciFit evidence index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newAskCmd())
	return rootCmd
}

// loadDependencies reads configuration from the environment and wires the pipeline
func loadDependencies(ctx context.Context) (*app.Dependencies, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}

	deps, err := app.NewDependencies(ctx, cfg, logger.With(zap.String("component", "rag-ingest")))
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return deps, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upb/scifit-rag/services/ingest"
	"github.com/upb/scifit-rag/utils"
)

func newIngestCmd() *cobra.Command {
	var (
		chunkSize   int
		overlap     int
		batchSize   int
		concurrency int
		rps         float64
		dryRun      bool
		initSchema  bool
	)

	cmd := &cobra.Command{
		Use:   "ingest PATH...",
		Short: "Parse, chunk, embed and upsert PDF, text and markdown sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := loadDependencies(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close(ctx) }()

			opts := ingest.Options{
				ChunkSize:      deps.Config.Ingest.ChunkSize,
				ChunkOverlap:   deps.Config.Ingest.ChunkOverlap,
				BatchSize:      deps.Config.Ingest.BatchSize,
				Concurrency:    deps.Config.Ingest.Concurrency,
				RequestsPerSec: deps.Config.Ingest.RequestsPerSec,
				DryRun:         dryRun,
			}
			flags := cmd.Flags()
			if flags.Changed("chunk-size") {
				opts.ChunkSize = chunkSize
			}
			if flags.Changed("overlap") {
				opts.ChunkOverlap = overlap
			}
			if flags.Changed("batch-size") {
				opts.BatchSize = batchSize
			}
			if flags.Changed("concurrency") {
				opts.Concurrency = concurrency
			}
			if flags.Changed("rps") {
				opts.RequestsPerSec = rps
			}

			docs, err := ingest.LoadPaths(args...)
			if err != nil {
				return err
			}

			pipeline, err := ingest.NewPipeline(deps.Embedder, deps.ChunkWriter, opts, deps.Metrics, deps.Logger)
			if err != nil {
				if fields := utils.GetValidationFields(err); len(fields) > 0 {
					return fmt.Errorf("invalid ingest options: %s", joinFieldErrors(fields))
				}
				return err
			}

			if initSchema && !dryRun {
				if deps.RepoFactory == nil {
					return fmt.Errorf("--init-schema requires DATABASE_URL or DB_HOST")
				}
				if err := initSchemaFromSample(ctx, deps, docs, opts); err != nil {
					return err
				}
			}

			result, err := pipeline.Run(ctx, docs)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	defaults := ingest.DefaultOptions()
	cmd.Flags().IntVar(&chunkSize, "chunk-size", defaults.ChunkSize, "chunk size in characters")
	cmd.Flags().IntVar(&overlap, "overlap", defaults.ChunkOverlap, "character overlap between chunks")
	cmd.Flags().IntVar(&batchSize, "batch-size", defaults.BatchSize, "rows per upsert request")
	cmd.Flags().IntVar(&concurrency, "concurrency", defaults.Concurrency, "parallel embedding requests")
	cmd.Flags().Float64Var(&rps, "rps", defaults.RequestsPerSec, "embedding requests per second (0 disables throttling)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and print stats without uploading")
	cmd.Flags().BoolVar(&initSchema, "init-schema", false, "create the pgvector table and match_documents function first (direct Postgres only)")

	return cmd
}

// joinFieldErrors renders validation messages in field order.
func joinFieldErrors(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fields[name])
	}
	return strings.Join(msgs, "; ")
}

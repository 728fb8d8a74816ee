package main

import (
	"context"
	"fmt"

	"github.com/upb/scifit-rag/app"
	"github.com/upb/scifit-rag/services/ingest"
)

// initSchemaFromSample embeds the first chunk to learn the model's dimension and
// creates the table and search function for it.
func initSchemaFromSample(ctx context.Context, deps *app.Dependencies, docs []ingest.Document, opts ingest.Options) error {
	for _, doc := range docs {
		chunks := ingest.ChunkDocument(doc, opts.ChunkSize, opts.ChunkOverlap)
		if len(chunks) == 0 {
			continue
		}
		vector, err := deps.Embedder.EmbedPassage(ctx, chunks[0].Content)
		if err != nil {
			return fmt.Errorf("failed to detect embedding dimension: %w", err)
		}
		return deps.RepoFactory.DB().InitSchema(ctx, len(vector))
	}
	return nil
}

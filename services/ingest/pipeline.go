package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/upb/scifit-rag/internal/observability"
	"github.com/upb/scifit-rag/internal/rag"
	"github.com/upb/scifit-rag/utils"
)

// Chunk outcomes recorded in metrics
const (
	StatusUploaded = "uploaded"
	StatusDryRun   = "dry_run"
	StatusFailed   = "failed"
)

// PassageEmbedder embeds stored passages (as opposed to questions).
type PassageEmbedder interface {
	EmbedPassage(ctx context.Context, text string) ([]float32, error)
}

// Options controls a pipeline run
type Options struct {
	ChunkSize      int     `validate:"gt=0"`
	ChunkOverlap   int     `validate:"gte=0,ltfield=ChunkSize"`
	BatchSize      int     `validate:"gt=0"`
	Concurrency    int     `validate:"gt=0,lte=64"`
	RequestsPerSec float64 `validate:"gte=0"` // zero disables throttling
	DryRun         bool
}

// DefaultOptions mirrors the defaults used to build the hosted index
func DefaultOptions() Options {
	return Options{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		BatchSize:      100,
		Concurrency:    4,
		RequestsPerSec: 5,
	}
}

// Result summarizes a run
type Result struct {
	RunID      string `json:"run_id"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Dimensions int    `json:"dimensions"`
	Uploaded   int    `json:"uploaded"`
	Batches    int    `json:"batches"`
	DryRun     bool   `json:"dry_run"`
}

// Pipeline chunks documents, embeds every chunk and upserts them in batches.
type Pipeline struct {
	embedder PassageEmbedder
	writer   rag.ChunkWriter
	options  Options
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewPipeline validates opts and builds a pipeline. writer may be nil for dry runs.
func NewPipeline(embedder PassageEmbedder, writer rag.ChunkWriter, opts Options, metrics *observability.Metrics, logger *zap.Logger) (*Pipeline, error) {
	if err := utils.ValidateStruct(opts); err != nil {
		return nil, fmt.Errorf("invalid ingest options: %w", err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingest requires an embedder")
	}
	if writer == nil && !opts.DryRun {
		return nil, fmt.Errorf("ingest requires a chunk writer unless running dry")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		embedder: embedder,
		writer:   writer,
		options:  opts,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Run ingests docs. Nothing is written unless every chunk embedded successfully
// with the same dimension.
func (p *Pipeline) Run(ctx context.Context, docs []Document) (*Result, error) {
	result := &Result{
		RunID:     uuid.New().String(),
		Documents: len(docs),
		DryRun:    p.options.DryRun,
	}
	logger := p.logger.With(zap.String("run_id", result.RunID))
	start := time.Now()

	var chunks []rag.Chunk
	for _, doc := range docs {
		chunks = append(chunks, ChunkDocument(doc, p.options.ChunkSize, p.options.ChunkOverlap)...)
	}
	result.Chunks = len(chunks)
	logger.Info("documents chunked",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)))

	if len(chunks) == 0 {
		return result, nil
	}

	if err := p.embedAll(ctx, chunks); err != nil {
		p.metrics.RecordIngestedChunks(StatusFailed, len(chunks))
		return nil, err
	}

	dims, err := EmbeddingDimensions(chunks)
	if err != nil {
		p.metrics.RecordIngestedChunks(StatusFailed, len(chunks))
		return nil, err
	}
	result.Dimensions = dims
	logger.Info("chunks embedded",
		zap.Int("dimensions", dims),
		zap.Duration("elapsed", time.Since(start)))

	if p.options.DryRun {
		p.metrics.RecordIngestedChunks(StatusDryRun, len(chunks))
		logger.Info("dry run complete, nothing uploaded")
		return result, nil
	}

	for i, batch := range Batches(chunks, p.options.BatchSize) {
		if err := p.writer.UpsertChunks(ctx, batch); err != nil {
			p.metrics.RecordIngestedChunks(StatusFailed, len(chunks)-result.Uploaded)
			return result, fmt.Errorf("upload failed on batch %d: %w", i+1, err)
		}
		result.Batches++
		result.Uploaded += len(batch)
		p.metrics.RecordIngestedChunks(StatusUploaded, len(batch))
		logger.Info("batch uploaded",
			zap.Int("batch", i+1),
			zap.Int("rows", len(batch)),
			zap.Int("total", result.Uploaded))
	}

	logger.Info("ingest complete",
		zap.Int("uploaded", result.Uploaded),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// embedAll fills chunk embeddings in place with bounded concurrency. The first
// failure cancels the remaining requests.
func (p *Pipeline) embedAll(ctx context.Context, chunks []rag.Chunk) error {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if p.options.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.options.RequestsPerSec), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.options.Concurrency)

	for i := range chunks {
		chunk := &chunks[i]
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			vector, err := p.embedder.EmbedPassage(gctx, chunk.Content)
			if err != nil {
				return fmt.Errorf("failed to embed %s: %w", chunk.ChunkID, err)
			}
			chunk.Embedding = vector
			return nil
		})
	}

	return g.Wait()
}

// EmbeddingDimensions returns the shared vector length, or an error when a chunk
// has no embedding or lengths differ.
func EmbeddingDimensions(chunks []rag.Chunk) (int, error) {
	dims := 0
	for _, chunk := range chunks {
		n := len(chunk.Embedding)
		if n == 0 {
			return 0, fmt.Errorf("invalid embedding for %s", chunk.ChunkID)
		}
		if dims == 0 {
			dims = n
			continue
		}
		if n != dims {
			return 0, fmt.Errorf("inconsistent embedding dimensions found: %d and %d", dims, n)
		}
	}
	return dims, nil
}

// Batches splits chunks into consecutive slices of at most size rows.
func Batches(chunks []rag.Chunk, size int) [][]rag.Chunk {
	if size <= 0 {
		size = len(chunks)
	}
	var batches [][]rag.Chunk
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}

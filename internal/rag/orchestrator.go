package rag

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/scifit-rag/internal/observability"
	"github.com/upb/scifit-rag/internal/redact"
	"github.com/upb/scifit-rag/services"
)

// Orchestrator drives a question through embed, retrieve and generate.
type Orchestrator struct {
	embedder  Embedder
	retriever Retriever
	generator *Generator
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewOrchestrator creates a new orchestrator with all dependencies
func NewOrchestrator(
	embedder Embedder,
	retriever Retriever,
	generator *Generator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		metrics:   metrics,
		logger:    logger,
	}
}

// Answer runs the pipeline for req. Embedding and retrieval errors are returned
// unchanged; generation problems are absorbed into a fallback answer.
func (o *Orchestrator) Answer(ctx context.Context, req *Request) (*Answer, error) {
	question := ""
	if req != nil {
		question = trimQuestion(req.UserMessage)
	}
	if question == "" {
		o.metrics.RecordAnswer(observability.ModeEmptyQuestion)
		return Normalize(EmptyQuestionMessage, nil), nil
	}
	topK := ClampTopK(req.TopK)

	runID := uuid.New().String()
	logger := observability.ForRequest(ctx, o.logger, zap.String("run_id", runID))
	start := time.Now()

	logger.Info("starting rag pipeline",
		zap.Int("top_k", topK),
		zap.Int("question_length", len(question)))

	// Step 1: Embed the question
	logger.Debug("step 1: embedding question", zap.String("question", redact.Text(Preview(question))))
	stageStart := time.Now()
	vector, err := o.embedder.EmbedQuery(ctx, question)
	o.metrics.ObserveStage(observability.StageEmbed, time.Since(stageStart), errorLabel(err))
	if err != nil {
		logger.Error("embedding failed", zap.Error(err))
		return nil, err
	}

	// Step 2: Retrieve similar passages
	logger.Debug("step 2: retrieving passages", zap.Int("dimensions", len(vector)))
	stageStart = time.Now()
	passages, err := o.retriever.Retrieve(ctx, vector, topK)
	o.metrics.ObserveStage(observability.StageRetrieve, time.Since(stageStart), errorLabel(err))
	if err != nil {
		logger.Error("retrieval failed", zap.Error(err))
		return nil, err
	}
	o.metrics.RecordPassages(len(passages))

	// Step 3: Generate the answer
	logger.Debug("step 3: generating answer", zap.Int("passages", len(passages)))
	generation := o.generator.Generate(ctx, question, passages)
	o.metrics.RecordAnswer(generation.Mode)

	// Step 4: Normalize
	resp := Normalize(generation.Text, passages)

	logger.Info("rag pipeline completed",
		zap.String("mode", generation.Mode),
		zap.Int("passages", len(passages)),
		zap.Float64("confidence", resp.Confidence),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()))

	return resp, nil
}

func errorLabel(err error) string {
	if err == nil {
		return ""
	}
	if t := services.GetErrorType(err); t != "" {
		return string(t)
	}
	return "unknown"
}

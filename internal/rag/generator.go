package rag

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/scifit-rag/internal/observability"
	"github.com/upb/scifit-rag/services/providers"
)

// SystemInstruction is sent as the system message of every grounded completion.
const SystemInstruction = "Answer with evidence from provided chunks and keep it concise."

// DefaultTemperature keeps grounded answers close to deterministic.
const DefaultTemperature float32 = 0.2

// GeneratorConfig configures the chat model used for grounded answers.
type GeneratorConfig struct {
	Model       string
	Temperature float32
}

// Generation is the outcome of the generate stage.
type Generation struct {
	Text string
	Mode string
}

// Generator produces the answer text. It never returns an error: without a
// provider, or when the provider fails, it falls back to ranked evidence.
type Generator struct {
	provider providers.ChatProvider
	config   GeneratorConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewGenerator creates a generator. provider may be nil, which selects the
// fallback for every request.
func NewGenerator(provider providers.ChatProvider, cfg GeneratorConfig, metrics *observability.Metrics, logger *zap.Logger) *Generator {
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		provider: provider,
		config:   cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// Configured reports whether grounded generation is available.
func (g *Generator) Configured() bool {
	return g.provider != nil
}

// Generate answers question from passages.
func (g *Generator) Generate(ctx context.Context, question string, passages []Passage) Generation {
	logger := observability.ForRequest(ctx, g.logger)

	if g.provider == nil {
		return Generation{
			Text: BuildFallback(FallbackHeaderUnconfigured, question, passages),
			Mode: observability.ModeFallbackUnconfigured,
		}
	}

	start := time.Now()
	resp, err := g.provider.ChatCompletion(ctx, &providers.ChatRequest{
		Model: g.config.Model,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: SystemInstruction},
			{Role: providers.RoleUser, Content: BuildPrompt(question, passages)},
		},
		Temperature: g.config.Temperature,
	})
	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = providers.ErrEmptyCompletion
	}
	if err != nil {
		g.metrics.ObserveStage(observability.StageGenerate, time.Since(start), "upstream")
		logger.Warn("chat completion failed, using ranked-evidence fallback",
			zap.String("provider", g.provider.Name()),
			zap.String("model", g.config.Model),
			zap.Int("status_code", providers.StatusCode(err)),
			zap.Error(err))
		return Generation{
			Text: BuildFallback(FallbackHeaderUnavailable, question, passages),
			Mode: observability.ModeFallbackError,
		}
	}

	g.metrics.ObserveStage(observability.StageGenerate, time.Since(start), "")
	g.metrics.RecordChatTokens(g.config.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	logger.Debug("chat completion succeeded",
		zap.String("provider", g.provider.Name()),
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return Generation{Text: strings.TrimSpace(resp.Content), Mode: observability.ModeGrounded}
}

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/scifit-rag/config"
	"github.com/upb/scifit-rag/services"
)

const (
	serviceName = "huggingface"

	// E5 models expect every input to carry its role as a prefix.
	QueryPrefix   = "query: "
	PassagePrefix = "passage: "

	maxResponseBytes = 8 << 20
)

const (
	errInvalidVector    = "Embedding response did not contain a valid vector."
	errUnsupportedShape = "Embedding response shape is not supported."
)

// Client calls a Hugging Face feature-extraction endpoint.
type Client struct {
	config     config.EmbeddingConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new embedding client
func NewClient(cfg config.EmbeddingConfig, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Model returns the configured embedding model
func (c *Client) Model() string {
	return c.config.Model
}

// EmbedQuery embeds a user question.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, WithPrefix(QueryPrefix, text))
}

// EmbedPassage embeds a stored document chunk.
func (c *Client) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, WithPrefix(PassagePrefix, text))
}

// WithPrefix prepends prefix unless text already starts with it.
func WithPrefix(prefix, text string) string {
	if strings.HasPrefix(text, prefix) {
		return text
	}
	return prefix + text
}

type featureExtractionRequest struct {
	Inputs    string                   `json:"inputs"`
	Normalize bool                     `json:"normalize"`
	Options   featureExtractionOptions `json:"options"`
}

type featureExtractionOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

func (c *Client) embed(ctx context.Context, input string) ([]float32, error) {
	if c.config.Token == "" {
		return nil, services.NewConfigurationError("HF_TOKEN is required to embed the query with E5.", "HF_TOKEN")
	}

	reqBody, err := json.Marshal(featureExtractionRequest{
		Inputs:    input,
		Normalize: true,
		Options:   featureExtractionOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, services.WrapInternal("failed to marshal embedding request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, services.WrapInternal("failed to create embedding request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.WrapUpstream(serviceName, "HF embedding request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.WrapUpstream(serviceName, "failed to read embedding response", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, services.NewUpstreamError(serviceName,
			fmt.Sprintf("HF embedding request failed: %d %s", httpResp.StatusCode, strings.TrimSpace(string(respBody))),
			httpResp.StatusCode)
	}

	vector, err := ExtractEmbedding(respBody)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("embedding computed",
		zap.String("model", c.config.Model),
		zap.Int("dimensions", len(vector)),
		zap.Duration("latency", time.Since(start)))

	return vector, nil
}

// ExtractEmbedding accepts a flat numeric array or a batch of one ([[...]]).
func ExtractEmbedding(payload []byte) ([]float32, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(payload, &outer); err != nil {
		return nil, services.NewUpstreamError(serviceName, errUnsupportedShape, 0)
	}
	if len(outer) == 0 {
		return nil, services.NewUpstreamError(serviceName, errInvalidVector, 0)
	}

	if first := bytes.TrimSpace(outer[0]); len(first) > 0 && first[0] == '[' {
		nested, ok := decodeVector(first)
		if !ok {
			return nil, services.NewUpstreamError(serviceName, errUnsupportedShape, 0)
		}
		if len(nested) == 0 {
			return nil, services.NewUpstreamError(serviceName, errInvalidVector, 0)
		}
		return nested, nil
	}

	flat, ok := decodeVector(payload)
	if !ok {
		return nil, services.NewUpstreamError(serviceName, errInvalidVector, 0)
	}
	return flat, nil
}

// decodeVector decodes a JSON array of numbers. Null elements are rejected.
func decodeVector(raw []byte) ([]float32, bool) {
	var values []*float32
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false
	}
	vector := make([]float32, len(values))
	for i, v := range values {
		if v == nil {
			return nil, false
		}
		vector[i] = *v
	}
	return vector, true
}

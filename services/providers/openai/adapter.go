package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/upb/scifit-rag/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultName    = "openai"
)

// OpenAIAdapter implements the ChatProvider interface for any OpenAI-compatible
// chat-completions endpoint (OpenAI, OpenRouter, self-hosted gateways).
type OpenAIAdapter struct {
	config providers.ProviderConfig
	client *goopenai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config providers.ProviderConfig) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	if config.Name == "" {
		config.Name = defaultName
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: config.Timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: config.Headers,
		},
	}

	return &OpenAIAdapter{
		config: config,
		client: goopenai.NewClientWithConfig(clientConfig),
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return a.config.Name
}

// ChatCompletion performs a chat completion request
func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, buildOpenAIRequest(req))
	if err != nil {
		return nil, a.convertError(err)
	}

	unified := convertToUnifiedResponse(&resp, a.Name())
	unified.Latency = time.Since(startTime)

	if strings.TrimSpace(unified.Content) == "" {
		return unified, providers.NewProviderError(a.Name(), "EMPTY_COMPLETION",
			"chat completion returned no content", 0, providers.ErrEmptyCompletion)
	}

	return unified, nil
}

// buildOpenAIRequest converts a unified request to OpenAI format
func buildOpenAIRequest(req *providers.ChatRequest) goopenai.ChatCompletionRequest {
	messages := make([]goopenai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	return goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

// convertToUnifiedResponse converts an OpenAI response to unified format.
// Only the first choice is used.
func convertToUnifiedResponse(resp *goopenai.ChatCompletionResponse, provider string) *providers.ChatResponse {
	unified := &providers.ChatResponse{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: provider,
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	if len(resp.Choices) > 0 {
		unified.Content = resp.Choices[0].Message.Content
		unified.FinishReason = string(resp.Choices[0].FinishReason)
	}

	return unified
}

func (a *OpenAIAdapter) convertError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return providers.NewProviderError(a.Name(), apiErr.Type, apiErr.Message, apiErr.HTTPStatusCode, err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return providers.NewProviderError(a.Name(), "REQUEST_ERROR", "chat completion request failed", reqErr.HTTPStatusCode, err)
	}

	return providers.NewProviderError(a.Name(), "HTTP_ERROR", "chat completion request failed", 0, err)
}

// headerTransport adds static headers (OpenRouter attribution) to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}

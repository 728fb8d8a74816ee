package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/scifit-rag/internal/observability"
	"github.com/upb/scifit-rag/services/providers"
)

func TestGenerator_Unconfigured(t *testing.T) {
	gen := NewGenerator(nil, GeneratorConfig{Model: "openrouter/free"}, nil, zaptest.NewLogger(t))

	assert.False(t, gen.Configured())

	out := gen.Generate(context.Background(), "q", samplePassages())
	assert.Equal(t, observability.ModeFallbackUnconfigured, out.Mode)
	assert.True(t, strings.HasPrefix(out.Text, FallbackHeaderUnconfigured))
}

func TestGenerator_Grounded(t *testing.T) {
	provider := new(mockChatProvider)
	provider.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
		return req.Model == "openrouter/free" &&
			req.Temperature == DefaultTemperature &&
			len(req.Messages) == 2 &&
			req.Messages[0].Role == providers.RoleSystem &&
			req.Messages[0].Content == SystemInstruction &&
			req.Messages[1].Role == providers.RoleUser &&
			strings.Contains(req.Messages[1].Content, "User question: q")
	})).Return(&providers.ChatResponse{Content: "Grounded [1].", Model: "openrouter/free"}, nil)

	gen := NewGenerator(provider, GeneratorConfig{Model: "openrouter/free"}, observability.NewMetrics(observability.DefaultMetricsConfig()), zaptest.NewLogger(t))

	out := gen.Generate(context.Background(), "q", samplePassages())
	assert.Equal(t, observability.ModeGrounded, out.Mode)
	assert.Equal(t, "Grounded [1].", out.Text)
	provider.AssertExpectations(t)
}

func TestGenerator_GroundedAnswerIsTrimmed(t *testing.T) {
	provider := new(mockChatProvider)
	provider.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(&providers.ChatResponse{Content: "\n  Answer [1]  \n"}, nil)

	gen := NewGenerator(provider, GeneratorConfig{Model: "openrouter/free"}, nil, zaptest.NewLogger(t))

	out := gen.Generate(context.Background(), "q", samplePassages())
	assert.Equal(t, observability.ModeGrounded, out.Mode)
	assert.Equal(t, "Answer [1]", out.Text)
}

func TestGenerator_ErrorsFallBack(t *testing.T) {
	tests := []struct {
		name string
		resp *providers.ChatResponse
		err  error
	}{
		{
			name: "provider error",
			err:  providers.NewProviderError("mock", "rate_limit", "too many requests", 429, nil),
		},
		{
			name: "transport error",
			err:  errors.New("dial tcp: connection refused"),
		},
		{
			name: "empty content",
			resp: &providers.ChatResponse{Content: "  \n"},
		},
		{
			name: "nil response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(mockChatProvider)
			provider.On("ChatCompletion", mock.Anything, mock.Anything).Return(tt.resp, tt.err)

			gen := NewGenerator(provider, GeneratorConfig{Model: "m"}, nil, zaptest.NewLogger(t))
			out := gen.Generate(context.Background(), "q", samplePassages())

			assert.Equal(t, observability.ModeFallbackError, out.Mode)
			require.True(t, strings.HasPrefix(out.Text, FallbackHeaderUnavailable))
			assert.Contains(t, out.Text, "[1] score=0.9100")
		})
	}
}

func TestGenerator_CustomTemperature(t *testing.T) {
	provider := new(mockChatProvider)
	provider.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
		return req.Temperature == 0.7
	})).Return(&providers.ChatResponse{Content: "ok"}, nil)

	gen := NewGenerator(provider, GeneratorConfig{Model: "m", Temperature: 0.7}, nil, nil)
	assert.Equal(t, "ok", gen.Generate(context.Background(), "q", nil).Text)
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/upb/scifit-rag/config"
	"github.com/upb/scifit-rag/services/retrieval"
)

func TestNewDependencies(t *testing.T) {
	t.Run("PostgREST store without chat key", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.NotNil(t, deps.Metrics)
		assert.NotNil(t, deps.Embedder)
		assert.IsType(t, &retrieval.Client{}, deps.Retriever)
		assert.IsType(t, &retrieval.Client{}, deps.ChunkWriter)
		assert.Nil(t, deps.RepoFactory)
		assert.Nil(t, deps.ChatProvider)
		assert.False(t, deps.Generator.Configured())
		assert.NotNil(t, deps.Orchestrator)
		assert.Nil(t, deps.AuthMiddleware)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("OpenRouter chat provider and caller auth", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Chat.APIKey = "sk-or-test"
		cfg.Chat.Provider = config.ChatProviderOpenRouter
		cfg.Chat.BaseURL = "https://openrouter.ai/api/v1"
		cfg.Auth.JWTSecret = "secret"
		cfg.Observability.MetricsEnabled = false

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)

		require.NotNil(t, deps.ChatProvider)
		assert.Equal(t, "openrouter", deps.ChatProvider.Name())
		assert.True(t, deps.Generator.Configured())
		assert.NotNil(t, deps.AuthMiddleware)
		assert.Nil(t, deps.Metrics)
	})

	t.Run("unreachable database fails startup", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping network test")
		}
		cfg := testConfig(t)
		cfg.Database = &config.DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     1,
			User:     "postgres",
			Database: "postgres",
			SSLMode:  "disable",
		}

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize store")
	})
}

func TestNewDependencies_UnauthenticatedProductionWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := testConfig(t)
	cfg.Environment = "production"

	deps, err := NewDependencies(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)
	defer func() { _ = deps.Close(context.Background()) }()

	assert.Nil(t, deps.AuthMiddleware)
	assert.Equal(t, 1, logs.FilterMessageSnippet("caller authentication disabled in production").Len())
}

func TestReadiness(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Token = "hf_test"

	deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	readiness := deps.Readiness()
	assert.True(t, readiness.Embedding)
	assert.True(t, readiness.Store)
	assert.False(t, readiness.Chat)
	assert.Nil(t, readiness.Database)
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			RequestTimeout: 30 * time.Second,
		},
		Embedding: config.EmbeddingConfig{
			Model:    "intfloat/e5-small-v2",
			Endpoint: "http://127.0.0.1:1/embed",
			Timeout:  time.Second,
		},
		Store: config.StoreConfig{
			URL:        "http://127.0.0.1:1",
			ServiceKey: "service-key",
			RPC:        "match_documents",
			Table:      "document_embeddings",
			Timeout:    time.Second,
		},
		Chat: config.ChatConfig{
			Provider: config.ChatProviderOpenAI,
			BaseURL:  "https://api.openai.com/v1",
			Model:    "openrouter/free",
			Timeout:  time.Second,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}

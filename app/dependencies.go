package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/scifit-rag/auth"
	"github.com/upb/scifit-rag/config"
	"github.com/upb/scifit-rag/handlers"
	"github.com/upb/scifit-rag/internal/observability"
	"github.com/upb/scifit-rag/internal/rag"
	"github.com/upb/scifit-rag/middleware"
	"github.com/upb/scifit-rag/repositories/postgres"
	"github.com/upb/scifit-rag/services/embedding"
	"github.com/upb/scifit-rag/services/providers"
	"github.com/upb/scifit-rag/services/providers/openai"
	"github.com/upb/scifit-rag/services/retrieval"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory, set only when direct Postgres is configured
	RepoFactory *postgres.RepositoryFactory

	// Pipeline collaborators
	Embedder     *embedding.Client
	Retriever    rag.Retriever
	ChunkWriter  rag.ChunkWriter
	ChatProvider providers.ChatProvider // nil when no chat key is configured
	Generator    *rag.Generator
	Orchestrator *rag.Orchestrator

	// Auth, nil when the endpoint is open
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics(observability.DefaultMetricsConfig())
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	deps.Embedder = embedding.NewClient(cfg.Embedding, logger)
	deps.initChat(cfg)
	deps.initAuth(cfg)

	deps.Generator = rag.NewGenerator(deps.ChatProvider, rag.GeneratorConfig{
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
	}, deps.Metrics, logger)
	deps.Orchestrator = rag.NewOrchestrator(deps.Embedder, deps.Retriever, deps.Generator, deps.Metrics, logger)

	logger.Info("all dependencies initialized successfully",
		zap.String("embedding_model", deps.Embedder.Model()),
		zap.Bool("chat_configured", deps.Generator.Configured()),
		zap.Bool("direct_postgres", deps.RepoFactory != nil),
		zap.Bool("auth_enabled", deps.AuthMiddleware != nil))
	return deps, nil
}

// initStore selects direct Postgres when configured, PostgREST otherwise
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		store := retrieval.NewClient(cfg.Store, d.Logger)
		d.Retriever = store
		d.ChunkWriter = store
		d.Logger.Info("retrieval through PostgREST", zap.String("rpc", cfg.Store.RPC))
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(*cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	if err := factory.HealthCheck(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database health check failed: %w", err)
	}

	repos := factory.NewRepositories()
	d.RepoFactory = factory
	d.Retriever = repos.Passages
	d.ChunkWriter = repos.Passages
	d.Logger.Info("retrieval through direct Postgres",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initChat builds the chat adapter for the configured OpenAI-compatible backend
func (d *Dependencies) initChat(cfg *config.Config) {
	if !cfg.Chat.Configured() {
		d.Logger.Warn("no chat API key configured, answers use the retrieval fallback")
		return
	}

	d.ChatProvider = openai.NewOpenAIAdapter(providers.ProviderConfig{
		Name:    string(cfg.Chat.Provider),
		APIKey:  cfg.Chat.APIKey,
		BaseURL: cfg.Chat.BaseURL,
		Timeout: cfg.Chat.Timeout,
		Headers: cfg.Chat.ExtraHeaders(),
	})
	d.Logger.Info("chat provider configured",
		zap.String("provider", d.ChatProvider.Name()),
		zap.String("model", cfg.Chat.Model))
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		if cfg.IsProduction() {
			d.Logger.Warn("caller authentication disabled in production; set RAG_JWT_SECRET to require bearer tokens")
		} else {
			d.Logger.Info("caller authentication disabled")
		}
		return
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(auth.NewHMACValidator(cfg.Auth.JWTSecret), d.Logger)
}

// Readiness describes the wired collaborators for the readiness endpoint
func (d *Dependencies) Readiness() handlers.Readiness {
	readiness := handlers.Readiness{
		Embedding: d.Config.Embedding.Token != "",
		Store:     d.RepoFactory != nil || (d.Config.Store.URL != "" && d.Config.Store.ServiceKey != ""),
		Chat:      d.ChatProvider != nil,
	}
	if d.RepoFactory != nil {
		readiness.Database = d.RepoFactory
		readiness.Passages = d.RepoFactory.NewRepositories().Passages
	}
	return readiness
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Embedding     EmbeddingConfig
	Store         StoreConfig
	Database      *DatabaseConfig // Optional: direct Postgres retrieval. When nil, PostgREST is used.
	Chat          ChatConfig
	Auth          AuthConfig
	Ingest        IngestConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// EmbeddingConfig holds the feature-extraction endpoint used for query and passage vectors.
// Token is required at request time, not at startup.
type EmbeddingConfig struct {
	Token    string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// StoreConfig holds the Supabase/PostgREST settings for the similarity RPC.
type StoreConfig struct {
	URL        string
	ServiceKey string
	RPC        string
	Table      string
	Timeout    time.Duration
}

// DatabaseConfig holds PostgreSQL configuration for the direct SQL retriever.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ChatProviderKind names an OpenAI-compatible chat backend.
type ChatProviderKind string

const (
	ChatProviderOpenAI     ChatProviderKind = "openai"
	ChatProviderOpenRouter ChatProviderKind = "openrouter"
	ChatProviderCompatible ChatProviderKind = "compatible"
)

// ChatConfig selects the chat-completion backend. An empty APIKey disables grounded
// generation and every answer uses the ranked-evidence fallback.
type ChatConfig struct {
	Provider    ChatProviderKind
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	SiteURL     string // OpenRouter HTTP-Referer
	AppName     string // OpenRouter X-Title
	Timeout     time.Duration
}

// AuthConfig holds optional caller authentication for the RAG endpoint
type AuthConfig struct {
	JWTSecret string
}

// IngestConfig holds defaults for the ingestion CLI
type IngestConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	BatchSize      int
	Concurrency    int
	RequestsPerSec float64
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (backend/.env when run from project root, .env otherwise)
	_ = godotenv.Load("backend/.env")
	_ = godotenv.Load(".env")

	embedModel := getEnv("HF_EMBED_MODEL", "intfloat/e5-small-v2")
	chatBaseURL := strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 150*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Embedding: EmbeddingConfig{
			Token:    getEnv("HF_TOKEN", ""),
			Model:    embedModel,
			Endpoint: getEnv("HF_EMBED_ENDPOINT", defaultEmbedEndpoint(embedModel)),
			Timeout:  getEnvAsDuration("HF_TIMEOUT", 60*time.Second),
		},
		Store: StoreConfig{
			URL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			ServiceKey: getEnvFirst("", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_KEY"),
			RPC:        getEnv("SUPABASE_MATCH_RPC", "match_documents"),
			Table:      getEnv("SUPABASE_TABLE", "document_embeddings"),
			Timeout:    getEnvAsDuration("SUPABASE_TIMEOUT", 30*time.Second),
		},
		Database: loadDatabaseConfig(),
		Chat: ChatConfig{
			Provider:    getChatProvider(chatBaseURL),
			APIKey:      getEnvFirst("", "OPENAI_API_KEY", "OPENROUTER_API_KEY"),
			BaseURL:     chatBaseURL,
			Model:       getEnv("OPENAI_MODEL", "openrouter/free"),
			Temperature: float32(getEnvAsFloat("OPENAI_TEMPERATURE", 0.2)),
			SiteURL:     getEnv("OPENROUTER_SITE_URL", ""),
			AppName:     getEnv("OPENROUTER_APP_NAME", ""),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("RAG_JWT_SECRET", ""),
		},
		Ingest: IngestConfig{
			ChunkSize:      getEnvAsInt("INGEST_CHUNK_SIZE", 1000),
			ChunkOverlap:   getEnvAsInt("INGEST_CHUNK_OVERLAP", 200),
			BatchSize:      getEnvAsInt("INGEST_BATCH_SIZE", 100),
			Concurrency:    getEnvAsInt("INGEST_CONCURRENCY", 4),
			RequestsPerSec: getEnvAsFloat("INGEST_REQUESTS_PER_SEC", 5),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks structural settings. Upstream credentials are deliberately left
// unchecked: their absence is reported per request as a configuration error.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}

	if c.Store.URL != "" {
		if _, err := url.ParseRequestURI(c.Store.URL); err != nil {
			return fmt.Errorf("invalid SUPABASE_URL: %w", err)
		}
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("chat temperature must be between 0 and 2")
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest chunk size must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 {
		return fmt.Errorf("ingest chunk overlap cannot be negative")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Configured reports whether grounded generation is enabled
func (c *ChatConfig) Configured() bool {
	return c.APIKey != ""
}

// ExtraHeaders returns provider-specific headers sent with every chat request.
func (c *ChatConfig) ExtraHeaders() map[string]string {
	headers := make(map[string]string)
	if c.Provider != ChatProviderOpenRouter {
		return headers
	}
	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}
	return headers
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither is set (retrieval goes through PostgREST).
func loadDatabaseConfig() *DatabaseConfig {
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		return &DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	host := getEnv("DB_HOST", "")
	if host == "" {
		return nil
	}
	return &DatabaseConfig{
		Host:            host,
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "postgres"),
		SSLMode:         getEnv("DB_SSLMODE", "require"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

func defaultEmbedEndpoint(model string) string {
	return fmt.Sprintf("https://router.huggingface.co/hf-inference/models/%s/pipeline/feature-extraction", model)
}

// getChatProvider honours CHAT_PROVIDER and otherwise infers the backend from the base URL
func getChatProvider(baseURL string) ChatProviderKind {
	switch ChatProviderKind(strings.ToLower(getEnv("CHAT_PROVIDER", ""))) {
	case ChatProviderOpenAI:
		return ChatProviderOpenAI
	case ChatProviderOpenRouter:
		return ChatProviderOpenRouter
	case ChatProviderCompatible:
		return ChatProviderCompatible
	}
	switch {
	case strings.Contains(baseURL, "openrouter.ai"):
		return ChatProviderOpenRouter
	case strings.Contains(baseURL, "api.openai.com"):
		return ChatProviderOpenAI
	default:
		return ChatProviderCompatible
	}
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFirst returns the first non-empty value among keys
func getEnvFirst(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/scifit-rag/app"
	"github.com/upb/scifit-rag/handlers"
	"github.com/upb/scifit-rag/middleware"
	"github.com/upb/scifit-rag/utils"
)

// RAG endpoint paths: the bare route and the Supabase Edge Functions path
const (
	RagChatPath         = "/rag-chat"
	RagChatFunctionPath = "/functions/v1/rag-chat"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	requestTimeout := 120 * time.Second
	if deps.Config != nil && deps.Config.Server.RequestTimeout > 0 {
		requestTimeout = deps.Config.Server.RequestTimeout
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(chimw.Timeout(requestTimeout))

	// Browser clients call the function from any origin. Preflights pass through so the
	// RAG handler answers them itself.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		ExposedHeaders:     []string{"X-Request-Id"},
		OptionsPassthrough: true,
		MaxAge:             300,
	}))

	// Health check endpoints
	health := handlers.NewHealthHandler(deps.Readiness(), deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// Question answering. The handler owns method dispatch so every verb gets
	// the same CORS headers and error body.
	rag := handlers.NewRagHandler(deps.Orchestrator, deps.Logger)
	r.Group(func(r chi.Router) {
		if deps.AuthMiddleware != nil {
			r.Use(deps.AuthMiddleware.RequireAuth)
		}
		r.Handle(RagChatPath, rag)
		r.Handle(RagChatFunctionPath, rag)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

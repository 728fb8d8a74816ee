package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/scifit-rag/internal/observability"
	"github.com/upb/scifit-rag/internal/rag"
	"github.com/upb/scifit-rag/middleware"
	"github.com/upb/scifit-rag/utils"
)

// CORS headers sent on every response of the answering endpoint
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "POST, OPTIONS"
)

// MethodNotAllowedMessage is returned for anything other than POST or OPTIONS
const MethodNotAllowedMessage = "Method not allowed. Use POST."

// NullBodyMessage is returned when the request body is the JSON literal null
const NullBodyMessage = "Request body must be a JSON object."

// Answerer answers a single question
type Answerer interface {
	Answer(ctx context.Context, req *rag.Request) (*rag.Answer, error)
}

// RagHandler serves the question-answering endpoint
type RagHandler struct {
	answerer Answerer
	logger   *zap.Logger
}

// NewRagHandler creates a new RagHandler
func NewRagHandler(answerer Answerer, logger *zap.Logger) *RagHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RagHandler{
		answerer: answerer,
		logger:   logger,
	}
}

// ServeHTTP dispatches on method: OPTIONS is the browser preflight, POST answers.
func (h *RagHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	switch r.Method {
	case http.MethodOptions:
		h.HandlePreflight(w, r)
	case http.MethodPost:
		h.HandleAnswer(w, r)
	default:
		_ = utils.WriteMethodNotAllowed(w, MethodNotAllowedMessage)
	}
}

// HandlePreflight handles OPTIONS
func (h *RagHandler) HandlePreflight(w http.ResponseWriter, _ *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleAnswer handles POST
func (h *RagHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	ctx := r.Context()
	logger := observability.ForRequest(ctx, h.logger)
	if claims := middleware.GetClaimsFromContext(ctx); claims != nil {
		logger = logger.With(zap.String("caller", claims.Sub), zap.String("role", claims.Role))
	}

	var req *rag.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("failed to decode request body", zap.Error(err))
		_ = utils.WriteInternalServerError(w, err.Error())
		return
	}
	if req == nil {
		logger.Warn("request body is null")
		_ = utils.WriteInternalServerError(w, NullBodyMessage)
		return
	}
	logger.Debug("answering question", zap.Bool("top_k_set", req.TopK != nil))

	answer, err := h.answerer.Answer(ctx, req)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	if err := utils.WriteOK(w, answer); err != nil {
		logger.Error("failed to write answer", zap.Error(err))
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
}

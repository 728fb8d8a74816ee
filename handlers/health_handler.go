package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/upb/scifit-rag/utils"
)

// Check states reported by the readiness endpoint
const (
	CheckHealthy       = "healthy"
	CheckUnhealthy     = "unhealthy"
	CheckConfigured    = "configured"
	CheckNotConfigured = "not_configured"
	CheckUnknown       = "unknown"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// DatabaseChecker pings the direct Postgres store
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// PassageCounter reports how many chunks the direct Postgres store holds
type PassageCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Readiness lists what the pipeline is wired to. Missing credentials are reported but
// never make the service unready: requests surface them as configuration errors.
type Readiness struct {
	Database  DatabaseChecker // nil when retrieval goes through PostgREST
	Passages  PassageCounter  // optional; reported only while the database is healthy
	Embedding bool
	Store     bool
	Chat      bool
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	readiness Readiness
	timeout   time.Duration
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(readiness Readiness, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		readiness: readiness,
		timeout:   5 * time.Second,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{Status: "ok"})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{
		"embedding": configured(h.readiness.Embedding),
		"store":     configured(h.readiness.Store),
		"chat":      configured(h.readiness.Chat),
	}
	ready := true

	if h.readiness.Database != nil {
		if err := h.readiness.Database.HealthCheck(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			checks["database"] = CheckUnhealthy
			ready = false
		} else {
			checks["database"] = CheckHealthy
			if h.readiness.Passages != nil {
				checks["passages"] = h.countPassages(ctx)
			}
		}
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	_ = utils.WriteJSON(w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// countPassages never affects readiness: an empty or missing table only means
// nothing was ingested yet.
func (h *HealthHandler) countPassages(ctx context.Context) string {
	count, err := h.readiness.Passages.Count(ctx)
	if err != nil {
		h.logger.Warn("failed to count passages", zap.Error(err))
		return CheckUnknown
	}
	return strconv.FormatInt(count, 10)
}

func configured(ok bool) string {
	if ok {
		return CheckConfigured
	}
	return CheckNotConfigured
}

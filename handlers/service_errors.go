package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/scifit-rag/services"
	"github.com/upb/scifit-rag/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Callers of the answering
// endpoint read the message text, so it is written verbatim with a 500 for everything
// except authentication failures.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	errType := services.GetErrorType(err)

	switch {
	case services.IsUnauthorizedError(err):
		if err := utils.WriteUnauthorized(w, err.Error()); err != nil {
			logger.Error("failed to write unauthorized response", zap.Error(err))
		}
		return

	case services.IsConfigurationError(err):
		logger.Warn("request failed on missing configuration",
			zap.Error(err),
			zap.Any("details", details))

	case services.IsUpstreamError(err):
		logger.Error("upstream service failed",
			zap.Error(err),
			zap.Any("details", details))

	default:
		logger.Error("unhandled error",
			zap.Error(err),
			zap.String("error_type", string(errType)))
	}

	if err := utils.WriteInternalServerError(w, err.Error()); err != nil {
		logger.Error("failed to write internal error response", zap.Error(err))
	}
}

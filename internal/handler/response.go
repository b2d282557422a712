package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"planbid/internal/domain"
	"planbid/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondAccepted sends a 202 response for queued work.
func RespondAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var dimErr *domain.DimensionMismatchError
	var stageErr *domain.StageError
	switch {
	case errors.Is(err, domain.ErrPlanNotFound):
		return http.StatusNotFound, "PLAN_NOT_FOUND", "plan not found"
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, "JOB_NOT_FOUND", "job not found"
	case errors.Is(err, domain.ErrNoTakeoffResult):
		return http.StatusNotFound, "NO_TAKEOFF_RESULT", "no takeoff result for this plan yet"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnsupportedExportFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "unsupported export format; allowed: csv, xlsx"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST", err.Error()
	case errors.Is(err, domain.ErrEmbeddingNotConfigured):
		return http.StatusServiceUnavailable, "EMBEDDING_NOT_CONFIGURED", "embedding backend is not configured"
	case errors.Is(err, domain.ErrNoVisionProviders):
		return http.StatusServiceUnavailable, "VISION_NOT_CONFIGURED", "no vision providers are configured"
	case errors.Is(err, domain.ErrIngestInProgress):
		return http.StatusConflict, "INGEST_IN_PROGRESS", "ingestion already in progress for this plan"
	case errors.Is(err, domain.ErrPlanFileUnavailable):
		return http.StatusBadGateway, "PLAN_FILE_UNAVAILABLE", "plan file could not be retrieved from storage"
	case errors.As(err, &dimErr):
		return http.StatusBadGateway, "EMBEDDING_DIMENSION_MISMATCH", dimErr.Error()
	case errors.As(err, &stageErr):
		return http.StatusInternalServerError, "INGEST_FAILED", stageErr.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, log *zap.Logger, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 && log != nil {
		log.Error("internal error",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	RespondError(c, status, code, msg)
}

// parseID reads a UUID path parameter. It writes a 400 and returns false on failure.
func parseID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planbid/internal/logger"
	"planbid/internal/service"
)

// PlanHandler handles plan ingestion and chunk retrieval endpoints.
type PlanHandler struct {
	jobs      service.JobService
	retrieval service.RetrievalService
	logger    *zap.Logger
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(jobs service.JobService, retrieval service.RetrievalService, l *zap.Logger) *PlanHandler {
	return &PlanHandler{jobs: jobs, retrieval: retrieval, logger: logger.OrNop(l).Named("handler.Plan")}
}

// Ingest handles POST /api/v1/plans/:id/ingest
// @Summary Queue plan ingestion
// @Tags plans
// @Produce json
// @Param id path string true "Plan ID (UUID)"
// @Success 202 {object} APIResponse{data=domain.Job}
// @Failure 404 {object} APIResponse "Plan not found"
// @Router /plans/{id}/ingest [post]
func (h *PlanHandler) Ingest(c *gin.Context) {
	planID, ok := parseID(c, "id", "plan")
	if !ok {
		return
	}

	job, err := h.jobs.EnqueueIngest(c.Request.Context(), planID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondAccepted(c, job)
}

// Search handles GET /api/v1/plans/:id/chunks/search?q=&k=&pages=
// With pages the search is page-scoped instead of semantic.
func (h *PlanHandler) Search(c *gin.Context) {
	planID, ok := parseID(c, "id", "plan")
	if !ok {
		return
	}

	k := 0
	if raw := c.Query("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "k must be a positive integer")
			return
		}
		k = n
	}
	pages, ok := parsePages(c)
	if !ok {
		return
	}

	chunks, err := h.retrieval.SearchScoped(c.Request.Context(), planID, c.Query("q"), pages, k)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, chunks)
}

// ListChunks handles GET /api/v1/plans/:id/chunks?pages=3,5
func (h *PlanHandler) ListChunks(c *gin.Context) {
	planID, ok := parseID(c, "id", "plan")
	if !ok {
		return
	}
	pages, ok := parsePages(c)
	if !ok {
		return
	}
	if len(pages) == 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "pages is required")
		return
	}

	chunks, err := h.retrieval.ChunksForPages(c.Request.Context(), planID, pages)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, chunks)
}

// parsePages reads a comma-separated pages query parameter.
func parsePages(c *gin.Context) ([]int, bool) {
	raw := strings.TrimSpace(c.Query("pages"))
	if raw == "" {
		return nil, true
	}
	var pages []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "pages must be a comma-separated list of positive integers")
			return nil, false
		}
		pages = append(pages, n)
	}
	return pages, true
}

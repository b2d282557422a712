package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planbid/internal/logger"
	"planbid/internal/service"
)

// JobHandler exposes background job status.
type JobHandler struct {
	jobs   service.JobService
	logger *zap.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs service.JobService, l *zap.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, logger: logger.OrNop(l).Named("handler.Job")}
}

// Get handles GET /api/v1/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	jobID, ok := parseID(c, "id", "job")
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, job)
}

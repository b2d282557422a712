package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planbid/internal/domain"
	"planbid/internal/export"
	"planbid/internal/logger"
	"planbid/internal/service"
)

// TakeoffHandler handles takeoff analysis endpoints.
type TakeoffHandler struct {
	jobs    service.JobService
	takeoff service.TakeoffService
	logger  *zap.Logger
}

// NewTakeoffHandler creates a new TakeoffHandler.
func NewTakeoffHandler(jobs service.JobService, takeoff service.TakeoffService, l *zap.Logger) *TakeoffHandler {
	return &TakeoffHandler{jobs: jobs, takeoff: takeoff, logger: logger.OrNop(l).Named("handler.Takeoff")}
}

// TakeoffRequest is the body of POST /plans/:id/takeoff. Each image carries
// base64 data or a storage key.
type TakeoffRequest struct {
	Images       []domain.PageImage `json:"images" binding:"required,min=1"`
	SystemPrompt string             `json:"system_prompt"`
	UserPrompt   string             `json:"user_prompt"`
}

// Enqueue handles POST /api/v1/plans/:id/takeoff
// @Summary Queue a multi-provider takeoff analysis
// @Tags takeoff
// @Accept json
// @Produce json
// @Param id path string true "Plan ID (UUID)"
// @Param request body TakeoffRequest true "Page images and optional prompts"
// @Success 202 {object} APIResponse{data=domain.Job}
// @Router /plans/{id}/takeoff [post]
func (h *TakeoffHandler) Enqueue(c *gin.Context) {
	planID, ok := parseID(c, "id", "plan")
	if !ok {
		return
	}

	var req TakeoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "images is required")
		return
	}

	job, err := h.jobs.EnqueueTakeoff(c.Request.Context(), planID, &domain.TakeoffJobPayload{
		Images:       req.Images,
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
	})
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondAccepted(c, job)
}

// Latest handles GET /api/v1/plans/:id/takeoff
func (h *TakeoffHandler) Latest(c *gin.Context) {
	planID, ok := parseID(c, "id", "plan")
	if !ok {
		return
	}

	run, err := h.takeoff.Latest(c.Request.Context(), planID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, run)
}

// MissingInfo handles POST /api/v1/plans/:id/takeoff/missing-info
func (h *TakeoffHandler) MissingInfo(c *gin.Context) {
	planID, ok := parseID(c, "id", "plan")
	if !ok {
		return
	}

	var req struct {
		Annotations []domain.Annotation `json:"annotations"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "body must be {\"annotations\": [...]}")
			return
		}
	}

	report, err := h.takeoff.MissingInfo(c.Request.Context(), planID, req.Annotations)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, report)
}

// Export handles GET /api/v1/plans/:id/takeoff/export?format=csv|xlsx&upload=true
// With upload the file is stored and a presigned URL is returned instead of the body.
func (h *TakeoffHandler) Export(c *gin.Context) {
	planID, ok := parseID(c, "id", "plan")
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	upload, _ := strconv.ParseBool(c.Query("upload"))

	res, err := h.takeoff.Export(c.Request.Context(), planID, format, upload)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	if res.URL != "" {
		RespondOK(c, gin.H{"file_name": res.FileName, "url": res.URL})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+res.FileName+`"`)
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

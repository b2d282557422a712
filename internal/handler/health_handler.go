package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger checks a dependency is reachable. *sqlx.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Capabilities reports which optional backends are configured.
type Capabilities struct {
	Embedding       bool     `json:"embedding"`
	OCR             bool     `json:"ocr"`
	VisionProviders []string `json:"vision_providers"`
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db   Pinger
	caps Capabilities
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, caps Capabilities) *HealthHandler {
	if caps.VisionProviders == nil {
		caps.VisionProviders = []string{}
	}
	return &HealthHandler{db: db, caps: caps}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not reachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "capabilities": h.caps})
}

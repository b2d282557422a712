package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planbid/internal/handler"
	"planbid/internal/middleware"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Health  *handler.HealthHandler
	Plan    *handler.PlanHandler
	Takeoff *handler.TakeoffHandler
	Job     *handler.JobHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(h Handlers, allowedOrigins []string, l *zap.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(l))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(l))
	r.Use(middleware.CORS(allowedOrigins))

	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	v1 := r.Group("/api/v1")

	plans := v1.Group("/plans/:id")
	plans.POST("/ingest", h.Plan.Ingest)
	plans.GET("/chunks", h.Plan.ListChunks)
	plans.GET("/chunks/search", h.Plan.Search)
	plans.POST("/takeoff", h.Takeoff.Enqueue)
	plans.GET("/takeoff", h.Takeoff.Latest)
	plans.POST("/takeoff/missing-info", h.Takeoff.MissingInfo)
	plans.GET("/takeoff/export", h.Takeoff.Export)

	v1.GET("/jobs/:id", h.Job.Get)

	return r
}

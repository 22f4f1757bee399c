package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Deps wires the router. Health is optional; without it /healthz only proves
// the process is up.
type Deps struct {
	Jobs   *JobsHandler
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := gin.New()
	r.Use(RequestLogger(deps.Logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", RequireIdentity())
	api.POST("/jobs", deps.Jobs.Submit)
	api.GET("/jobs", deps.Jobs.List)
	api.GET("/jobs/export", deps.Jobs.Export)
	api.GET("/jobs/:id", deps.Jobs.Get)
	api.DELETE("/jobs/:id", deps.Jobs.Delete)

	return r
}

// Package api serves the status store over HTTP: listing with pagination
// and filters, single status lookup, kill requests and clearing.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mohans/jobstatus"
)

// Dependencies holds everything the handlers need. Client is optional; without
// it the enqueue endpoint is not registered.
type Dependencies struct {
	Logger *slog.Logger
	Store  *jobstatus.Store
	Client *jobstatus.Client
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "jobstatus",
		})
	})

	h := NewStatusHandler(deps)

	statuses := r.Group("/statuses")
	{
		statuses.GET("", h.ListStatuses)
		statuses.GET("/:id", h.GetStatus)
		statuses.DELETE("/:id", h.RemoveStatus)
		statuses.POST("/:id/kill", h.KillStatus)
		statuses.POST("/kill", h.KillStatuses)
		statuses.POST("/clear", h.ClearStatuses)
		statuses.POST("/clear/:scope", h.ClearStatuses)
		if deps.Client != nil {
			statuses.POST("", h.EnqueueJob)
		}
	}

	return r
}

package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"habit-tracker/middleware"
	"habit-tracker/models"
	"habit-tracker/utils"

	"github.com/gin-gonic/gin"
)

// PingFunc checks one backing service.
type PingFunc func(ctx context.Context) error

type IndexStatusLister interface {
	List(ctx context.Context, statuses ...string) ([]models.IndexRequest, error)
}

// SetupSystemRoutes registers health, version, categories and index status.
func SetupSystemRoutes(router *gin.Engine, version string, mongoPing, redisPing PingFunc, indexes IndexStatusLister, authMiddleware *middleware.AuthMiddleware, log *slog.Logger) {
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		resp := models.HealthResponse{
			Status:    "healthy",
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Database:  "connected",
			Redis:     "connected",
		}
		status := http.StatusOK
		if err := mongoPing(ctx); err != nil {
			log.Warn("Health check: database unreachable", "error", err)
			resp.Status, resp.Database = "unhealthy", "disconnected"
			status = http.StatusServiceUnavailable
		}
		// Redis only backs sessions and the index queue; reads keep working without it.
		if err := redisPing(ctx); err != nil {
			log.Warn("Health check: redis unreachable", "error", err)
			resp.Redis = "disconnected"
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		}
		c.JSON(status, resp)
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version})
	})

	router.GET("/api/categories", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.Categories)
	})

	router.GET("/api/indexes", authMiddleware.RequireAuth(), func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		list, err := indexes.List(ctx)
		if err != nil {
			log.Error("Failed to list index requests", "error", err)
			utils.RespondWithInternalError(c, "Failed to list index requests")
			return
		}
		if list == nil {
			list = []models.IndexRequest{}
		}
		c.JSON(http.StatusOK, list)
	})
}

package routes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"habit-tracker/middleware"
	"habit-tracker/models"
	"habit-tracker/utils"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AnalyticsAPI interface {
	Stats(ctx context.Context, userID string, days int) models.StatsResponse
	ExportLogs(ctx context.Context, userID string, days int, w io.Writer) error
}

func SetupAnalyticsRoutes(router *gin.Engine, analytics AnalyticsAPI, authMiddleware *middleware.AuthMiddleware, log *slog.Logger) {
	group := router.Group("/api/analytics")
	group.Use(authMiddleware.RequireAuth())

	group.GET("/stats", func(c *gin.Context) {
		days, ok := daysParam(c)
		if !ok {
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		c.JSON(http.StatusOK, analytics.Stats(ctx, middleware.GetUserID(c), days))
	})

	group.GET("/export", func(c *gin.Context) {
		days, ok := daysParam(c)
		if !ok {
			return
		}
		userID := middleware.GetUserID(c)

		ctx, cancel := utils.WithExportTimeout(c.Request.Context())
		defer cancel()

		// Buffered so a failed export can still answer with an error body.
		var buf bytes.Buffer
		if err := analytics.ExportLogs(ctx, userID, days, &buf); err != nil {
			log.Error("Export failed", "error", err, "user_id", userID, "request_id", middleware.GetRequestID(c))
			utils.RespondWithInternalError(c, "Failed to export habit logs")
			return
		}

		filename := fmt.Sprintf("habit-logs-%s-%s.xlsx", userID, time.Now().Format("20060102"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	})
}

// daysParam reads ?days=N; absent means the service default.
func daysParam(c *gin.Context) (int, bool) {
	raw := c.Query("days")
	if raw == "" {
		return 0, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		utils.RespondWithBadRequest(c, "days must be a positive number", nil)
		return 0, false
	}
	return days, true
}

package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"habit-tracker/middleware"
	"habit-tracker/models"
	"habit-tracker/services"
	"habit-tracker/utils"

	"github.com/gin-gonic/gin"
)

type UserAPI interface {
	ListUsers(ctx context.Context) ([]models.UserInfo, error)
	Settings(ctx context.Context, userID string) (models.UserSettings, error)
	UpdateSettings(ctx context.Context, userID string, upd models.SettingsUpdate) (models.UserSettings, error)
}

func SetupUserRoutes(router *gin.Engine, users UserAPI, authMiddleware *middleware.AuthMiddleware, log *slog.Logger) {
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())

	api.GET("/users", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		list, err := users.ListUsers(ctx)
		if err != nil {
			log.Error("Failed to list users", "error", err)
			utils.RespondWithInternalError(c, "Failed to list users")
			return
		}
		c.JSON(http.StatusOK, list)
	})

	api.GET("/settings", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		settings, err := users.Settings(ctx, middleware.GetUserID(c))
		if err != nil {
			respondUserError(c, log, "Failed to load settings", err)
			return
		}
		c.JSON(http.StatusOK, settings)
	})

	api.PUT("/settings", func(c *gin.Context) {
		var req models.SettingsUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		settings, err := users.UpdateSettings(ctx, middleware.GetUserID(c), req)
		if err != nil {
			respondUserError(c, log, "Failed to save settings", err)
			return
		}
		c.JSON(http.StatusOK, settings)
	})
}

func respondUserError(c *gin.Context, log *slog.Logger, message string, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		utils.RespondWithNotFound(c, "User not found")
	case errors.Is(err, services.ErrInvalidSettings):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	default:
		log.Error(message, "error", err, "user_id", middleware.GetUserID(c))
		utils.RespondWithInternalError(c, message)
	}
}

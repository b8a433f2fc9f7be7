package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"habit-tracker/middleware"
	"habit-tracker/models"
	"habit-tracker/services"
	"habit-tracker/utils"

	"github.com/gin-gonic/gin"
)

// HabitAPI is what the habit endpoints need from the habit service.
type HabitAPI interface {
	AddHabit(ctx context.Context, userID, name, category string) (*models.Habit, error)
	ListHabits(ctx context.Context, userID string) []models.Habit
	DeleteHabit(ctx context.Context, userID, habitID string) error
	LogCompletion(ctx context.Context, userID, habitID, day string, completed bool) (*models.HabitLog, error)
	TodayLogs(ctx context.Context, userID string) []models.HabitLog
	HabitLogs(ctx context.Context, userID, habitID string, since time.Time) ([]models.HabitLog, error)
	Location() *time.Location
}

func SetupHabitRoutes(router *gin.Engine, habits HabitAPI, authMiddleware *middleware.AuthMiddleware, log *slog.Logger) {
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())

	api.GET("/habits", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		c.JSON(http.StatusOK, habits.ListHabits(ctx, middleware.GetUserID(c)))
	})

	api.POST("/habits", func(c *gin.Context) {
		var req models.CreateHabitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		habit, err := habits.AddHabit(ctx, middleware.GetUserID(c), req.Name, req.Category)
		if err != nil {
			respondHabitError(c, log, "Failed to create habit", err)
			return
		}
		c.JSON(http.StatusCreated, habit)
	})

	api.DELETE("/habits/:id", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		if err := habits.DeleteHabit(ctx, middleware.GetUserID(c), c.Param("id")); err != nil {
			respondHabitError(c, log, "Failed to delete habit", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Habit deleted"})
	})

	api.PUT("/habits/:id/completion", func(c *gin.Context) {
		var req models.CompletionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		entry, err := habits.LogCompletion(ctx, middleware.GetUserID(c), c.Param("id"), req.Date, *req.Completed)
		if err != nil {
			respondHabitError(c, log, "Failed to save completion", err)
			return
		}
		c.JSON(http.StatusOK, entry)
	})

	api.GET("/habits/:id/logs", func(c *gin.Context) {
		loc := habits.Location()
		since := utils.StartOfDay(time.Now(), loc).AddDate(0, 0, -(services.DefaultStatsDays - 1))
		if s := c.Query("since"); s != "" {
			day, err := utils.ParseDay(s, loc)
			if err != nil {
				utils.RespondWithBadRequest(c, "since must be YYYY-MM-DD", nil)
				return
			}
			since = day
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		logs, err := habits.HabitLogs(ctx, middleware.GetUserID(c), c.Param("id"), since)
		if err != nil {
			respondHabitError(c, log, "Failed to load habit logs", err)
			return
		}
		c.JSON(http.StatusOK, logs)
	})

	api.GET("/logs/today", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		c.JSON(http.StatusOK, habits.TodayLogs(ctx, middleware.GetUserID(c)))
	})
}

func respondHabitError(c *gin.Context, log *slog.Logger, message string, err error) {
	switch {
	case errors.Is(err, services.ErrHabitNotFound):
		utils.RespondWithNotFound(c, "Habit not found")
	case errors.Is(err, services.ErrInvalidHabit), errors.Is(err, services.ErrInvalidDate):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	default:
		log.Error(message, "error", err, "user_id", middleware.GetUserID(c), "request_id", middleware.GetRequestID(c))
		utils.RespondWithInternalError(c, message)
	}
}

package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"habit-tracker/internal/auth"
	"habit-tracker/middleware"
	"habit-tracker/models"
	"habit-tracker/services"
	"habit-tracker/utils"

	"github.com/gin-gonic/gin"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*models.TokenPairResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPairResponse, error)
	Logout(ctx context.Context, access *auth.Claims, refreshToken string) error
}

func SetupAuthRoutes(router *gin.Engine, users AuthAPI, authMiddleware *middleware.AuthMiddleware, log *slog.Logger) {
	group := router.Group("/auth")

	// Login endpoint
	group.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		resp, err := users.Login(ctx, req.Username, req.Password)
		if errors.Is(err, services.ErrInvalidCredentials) {
			utils.RespondWithError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password", nil)
			return
		}
		if err != nil {
			log.Error("Login failed", "error", err, "request_id", middleware.GetRequestID(c))
			utils.RespondWithInternalError(c, "Failed to log in")
			return
		}

		setSessionCookies(c, resp)
		c.JSON(http.StatusOK, resp)
	})

	// Refresh token endpoint; the token comes from the body or the cookie.
	group.POST("/refresh", func(c *gin.Context) {
		var req models.RefreshRequest
		_ = c.ShouldBindJSON(&req)
		token := req.RefreshToken
		if token == "" {
			token, _ = c.Cookie(refreshCookie)
		}
		if token == "" {
			utils.RespondWithUnauthorized(c, "Refresh token is required")
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		resp, err := users.Refresh(ctx, token)
		switch {
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrRevokedToken), errors.Is(err, services.ErrUserNotFound):
			utils.RespondWithError(c, http.StatusUnauthorized, "session_expired", "Your session has expired. Please log in again.", nil)
			return
		case err != nil:
			log.Error("Token refresh failed", "error", err, "request_id", middleware.GetRequestID(c))
			utils.RespondWithInternalError(c, "Failed to refresh token")
			return
		}

		setSessionCookies(c, resp)
		c.JSON(http.StatusOK, resp)
	})

	group.POST("/logout", authMiddleware.RequireAuth(), func(c *gin.Context) {
		var req models.RefreshRequest
		_ = c.ShouldBindJSON(&req)
		token := req.RefreshToken
		if token == "" {
			token, _ = c.Cookie(refreshCookie)
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		if err := users.Logout(ctx, middleware.GetClaims(c), token); err != nil {
			log.Error("Logout failed", "error", err, "user_id", middleware.GetUserID(c))
			utils.RespondWithInternalError(c, "Failed to log out")
			return
		}

		clearSessionCookies(c)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	})
}

func setSessionCookies(c *gin.Context, resp *models.TokenPairResponse) {
	secure := c.Request.TLS != nil
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, resp.AccessToken, maxAge(resp.AccessExp), "/", "", secure, true)
	c.SetCookie(refreshCookie, resp.RefreshToken, maxAge(resp.RefreshExp), "/auth", "", secure, true)
}

func clearSessionCookies(c *gin.Context) {
	secure := c.Request.TLS != nil
	c.SetCookie(accessCookie, "", -1, "/", "", secure, true)
	c.SetCookie(refreshCookie, "", -1, "/auth", "", secure, true)
}

func maxAge(exp time.Time) int {
	if exp.IsZero() {
		return 0
	}
	return int(time.Until(exp).Seconds())
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"habit-tracker/internal/auth"
	"habit-tracker/internal/database"
	"habit-tracker/models"
	"habit-tracker/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidSettings    = errors.New("invalid settings")
)

// KnownUsers are the two accounts the tracker is built for.
var KnownUsers = []models.UserInfo{
	{ID: "el", Username: "el", DisplayName: "El"},
	{ID: "lin", Username: "lin", DisplayName: "Lin"},
}

type UserStore interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateSettings(ctx context.Context, id string, s models.UserSettings) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

type TokenIssuer interface {
	IssueTokenPair(ctx context.Context, userID string) (*auth.TokenPair, error)
	ValidateRefreshToken(ctx context.Context, token string) (*auth.Claims, error)
	Revoke(ctx context.Context, jti string, isRefresh bool) error
}

type UserService struct {
	users  UserStore
	tokens TokenIssuer
	log    *slog.Logger
	now    func() time.Time
}

func NewUserService(users UserStore, tokens TokenIssuer, log *slog.Logger) *UserService {
	return &UserService{users: users, tokens: tokens, log: log, now: time.Now}
}

func (s *UserService) Login(ctx context.Context, username, password string) (*models.TokenPairResponse, error) {
	u, err := s.users.FindByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		s.log.Warn("Failed login", "username", username)
		return nil, ErrInvalidCredentials
	}

	if err := s.users.TouchLogin(ctx, u.ID, s.now().UTC()); err != nil {
		s.log.Warn("Last login not recorded", "user_id", u.ID, "error", err)
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPairResponse, error) {
	claims, err := s.tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Revoke(ctx, claims.ID, true); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	u, err := s.users.FindUser(ctx, claims.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

// Logout revokes the access token and, when given, the refresh token.
func (s *UserService) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, access.ID, false); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil || claims.UserID != access.UserID {
		return nil
	}
	return s.tokens.Revoke(ctx, claims.ID, true)
}

func (s *UserService) issue(ctx context.Context, u *models.User) (*models.TokenPairResponse, error) {
	pair, err := s.tokens.IssueTokenPair(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &models.TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		AccessExp:    pair.AccessExp,
		RefreshExp:   pair.RefreshExp,
		User:         u.Info(),
	}, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.UserInfo, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]models.UserInfo, 0, len(users))
	for i := range users {
		infos = append(infos, users[i].Info())
	}
	return infos, nil
}

func (s *UserService) Settings(ctx context.Context, userID string) (models.UserSettings, error) {
	u, err := s.users.FindUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return models.UserSettings{}, ErrUserNotFound
	}
	if err != nil {
		return models.UserSettings{}, err
	}
	return withDefaults(u.Settings), nil
}

func (s *UserService) UpdateSettings(ctx context.Context, userID string, upd models.SettingsUpdate) (models.UserSettings, error) {
	current, err := s.Settings(ctx, userID)
	if err != nil {
		return models.UserSettings{}, err
	}

	if upd.Theme != nil {
		if *upd.Theme != models.ThemeLight && *upd.Theme != models.ThemeDark {
			return models.UserSettings{}, fmt.Errorf("%w: theme must be light or dark", ErrInvalidSettings)
		}
		current.Theme = *upd.Theme
	}
	if upd.ThemeColor != nil {
		if !models.IsThemeColor(*upd.ThemeColor) {
			return models.UserSettings{}, fmt.Errorf("%w: unknown theme color %q", ErrInvalidSettings, *upd.ThemeColor)
		}
		current.ThemeColor = *upd.ThemeColor
	}
	if upd.Notifications != nil {
		current.Notifications = *upd.Notifications
	}

	if err := s.users.UpdateSettings(ctx, userID, current); err != nil {
		return models.UserSettings{}, err
	}
	return current, nil
}

// withDefaults fills settings never saved by older records.
func withDefaults(s models.UserSettings) models.UserSettings {
	d := models.DefaultSettings()
	if s.Theme == "" && s.ThemeColor == "" {
		return d
	}
	if s.Theme == "" {
		s.Theme = d.Theme
	}
	if s.ThemeColor == "" {
		s.ThemeColor = d.ThemeColor
	}
	return s
}

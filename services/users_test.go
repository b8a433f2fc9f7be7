package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"habit-tracker/internal/auth"
	"habit-tracker/internal/database"
	"habit-tracker/models"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUsers(t *testing.T, password string) *memUsers {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	m := &memUsers{users: make(map[string]*models.User)}
	for _, k := range KnownUsers {
		m.users[k.ID] = &models.User{ID: k.ID, Username: k.Username, DisplayName: k.DisplayName, PasswordHash: string(hash)}
	}
	return m
}

func (m *memUsers) FindUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memUsers) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, k := range KnownUsers {
		if u, ok := m.users[k.ID]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) UpdateSettings(_ context.Context, id string, s models.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.Settings = s
	return nil
}

func (m *memUsers) TouchLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

type fakeTokens struct {
	mu      sync.Mutex
	issued  int
	refresh map[string]string // token -> user
	revoked []string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{refresh: make(map[string]string)}
}

func (f *fakeTokens) IssueTokenPair(_ context.Context, userID string) (*auth.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	rt := userID + "-refresh-" + string(rune('0'+f.issued))
	f.refresh[rt] = userID
	return &auth.TokenPair{AccessToken: userID + "-access", RefreshToken: rt}, nil
}

func (f *fakeTokens) ValidateRefreshToken(_ context.Context, token string) (*auth.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.refresh[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	c := &auth.Claims{UserID: userID}
	c.ID = token
	return c, nil
}

func (f *fakeTokens) Revoke(_ context.Context, jti string, isRefresh bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if isRefresh {
		delete(f.refresh, jti)
	}
	f.revoked = append(f.revoked, jti)
	return nil
}

func TestLogin(t *testing.T) {
	users := newMemUsers(t, "s3cret")
	s := NewUserService(users, newFakeTokens(), quietLogger())
	ctx := context.Background()

	resp, err := s.Login(ctx, " EL ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "el-access", resp.AccessToken)
	assert.Equal(t, "El", resp.User.DisplayName)
	assert.NotNil(t, users.users["el"].LastLogin)

	_, err = s.Login(ctx, "el", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotatesToken(t *testing.T) {
	tokens := newFakeTokens()
	s := NewUserService(newMemUsers(t, "pw"), tokens, quietLogger())
	ctx := context.Background()

	first, err := s.Login(ctx, "lin", "pw")
	require.NoError(t, err)

	second, err := s.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = s.Refresh(ctx, first.RefreshToken)
	assert.True(t, errors.Is(err, auth.ErrInvalidToken), "old refresh token is spent")
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	tokens := newFakeTokens()
	s := NewUserService(newMemUsers(t, "pw"), tokens, quietLogger())
	ctx := context.Background()

	pair, err := s.Login(ctx, "el", "pw")
	require.NoError(t, err)

	access := &auth.Claims{UserID: "el"}
	access.ID = "access-jti"
	require.NoError(t, s.Logout(ctx, access, pair.RefreshToken))
	assert.Equal(t, []string{"access-jti", pair.RefreshToken}, tokens.revoked)

	// A refresh token of another user is left alone.
	other, err := s.Login(ctx, "lin", "pw")
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx, access, other.RefreshToken))
	assert.NotContains(t, tokens.revoked, other.RefreshToken)
}

func TestListUsers(t *testing.T) {
	s := NewUserService(newMemUsers(t, "pw"), newFakeTokens(), quietLogger())
	got, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KnownUsers, got)
}

func TestSettingsDefaultsAndUpdate(t *testing.T) {
	users := newMemUsers(t, "pw")
	s := NewUserService(users, newFakeTokens(), quietLogger())
	ctx := context.Background()

	got, err := s.Settings(ctx, "el")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), got)

	dark := models.ThemeDark
	off := false
	got, err = s.UpdateSettings(ctx, "el", models.SettingsUpdate{Theme: &dark, Notifications: &off})
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, got.Theme)
	assert.Equal(t, models.DefaultSettings().ThemeColor, got.ThemeColor)
	assert.False(t, got.Notifications)
	assert.Equal(t, got, users.users["el"].Settings)

	bad := "neon"
	_, err = s.UpdateSettings(ctx, "el", models.SettingsUpdate{Theme: &bad})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	_, err = s.UpdateSettings(ctx, "el", models.SettingsUpdate{ThemeColor: &bad})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	_, err = s.Settings(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	issuer     = "habit-tracker"
	accessTTL  = time.Hour
	refreshTTL = 7 * 24 * time.Hour

	accessPrefix  = "access:"
	refreshPrefix = "refresh:"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token revoked or expired")
)

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_exp"`
	RefreshExp   time.Time `json:"refresh_exp"`
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Registry remembers which token IDs are still live.
type Registry interface {
	Store(ctx context.Context, key, userID string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	registry      Registry
	now           func() time.Time
}

func NewTokenManager(accessSecret, refreshSecret string, registry Registry) (*TokenManager, error) {
	if len(accessSecret) < 32 || len(refreshSecret) < 32 {
		return nil, fmt.Errorf("ACCESS_SECRET and REFRESH_SECRET must be configured and at least 32 characters")
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		registry:      registry,
		now:           time.Now,
	}, nil
}

func (m *TokenManager) IssueTokenPair(ctx context.Context, userID string) (*TokenPair, error) {
	now := m.now()
	accessJTI := uuid.NewString()
	refreshJTI := uuid.NewString()

	accessExp := now.Add(accessTTL)
	accessString, err := m.sign(userID, accessJTI, now, accessExp, m.accessSecret)
	if err != nil {
		return nil, err
	}

	refreshExp := now.Add(refreshTTL)
	refreshString, err := m.sign(userID, refreshJTI, now, refreshExp, m.refreshSecret)
	if err != nil {
		return nil, err
	}

	if err := m.registry.Store(ctx, accessPrefix+accessJTI, userID, accessTTL); err != nil {
		return nil, err
	}
	if err := m.registry.Store(ctx, refreshPrefix+refreshJTI, userID, refreshTTL); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessString,
		RefreshToken: refreshString,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (m *TokenManager) sign(userID, jti string, now, exp time.Time, secret []byte) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *TokenManager) ValidateAccessToken(ctx context.Context, token string) (*Claims, error) {
	return m.validate(ctx, token, m.accessSecret, accessPrefix)
}

func (m *TokenManager) ValidateRefreshToken(ctx context.Context, token string) (*Claims, error) {
	return m.validate(ctx, token, m.refreshSecret, refreshPrefix)
}

func (m *TokenManager) validate(ctx context.Context, tokenString string, secret []byte, prefix string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	exists, err := m.registry.Exists(ctx, prefix+claims.ID)
	if err != nil || !exists {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke drops a token ID so later validation fails.
func (m *TokenManager) Revoke(ctx context.Context, jti string, isRefresh bool) error {
	prefix := accessPrefix
	if isRefresh {
		prefix = refreshPrefix
	}
	return m.registry.Delete(ctx, prefix+jti)
}

// RedisRegistry keeps token IDs as expiring Redis keys.
type RedisRegistry struct {
	rdb *redis.Client
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb}
}

func (r *RedisRegistry) Store(ctx context.Context, key, userID string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, userID, ttl).Err()
}

func (r *RedisRegistry) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

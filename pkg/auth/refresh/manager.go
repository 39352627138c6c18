package refresh

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/kv"
)

const (
	refreshTokenBytes = 32
	keyPrefix         = "refresh:"
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Manager handles refresh token creation, storage, and rotation. Each token
// maps to the user it was issued for.
type Manager struct {
	store kv.Store
	ttl   time.Duration
}

// NewManager constructs a refresh manager backed by the given store.
func NewManager(store kv.Store, cfg config.JWTConfig) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("kv store is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Issue creates a refresh token for the user and stores the mapping.
func (m *Manager) Issue(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id is required")
	}
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, tokenKey(token), userID, m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate consumes the provided token and issues a replacement for the same user.
func (m *Manager) Rotate(ctx context.Context, provided string) (string, string, error) {
	provided = strings.TrimSpace(provided)
	if provided == "" {
		return "", "", ErrInvalidRefreshToken
	}

	key := tokenKey(provided)
	userID, err := m.store.Get(ctx, key)
	if err != nil {
		return "", "", wrapNotFound(err)
	}

	newToken, err := m.Issue(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if err := m.store.Del(ctx, key); err != nil {
		return "", "", err
	}
	return userID, newToken, nil
}

// Revoke deletes the mapping for the token.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("refresh token is required")
	}
	return m.store.Del(ctx, tokenKey(token))
}

func tokenKey(token string) string {
	return keyPrefix + token
}

func generateRefreshToken() (string, error) {
	bytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, kv.ErrNotFound) {
		return ErrInvalidRefreshToken
	}
	return err
}

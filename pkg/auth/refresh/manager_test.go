package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/kv"
)

func TestManagerIssueAndRotate(t *testing.T) {
	store := kv.NewMemoryStore()
	manager := &Manager{store: store, ttl: time.Hour}

	ctx := context.Background()
	token, err := manager.Issue(ctx, "user-123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if stored, _ := store.Get(ctx, tokenKey(token)); stored != "user-123" {
		t.Fatalf("expected stored user id, got %q", stored)
	}

	if _, _, err := manager.Rotate(ctx, "wrong"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token error, got %v", err)
	}

	userID, newToken, err := manager.Rotate(ctx, token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("expected user-123, got %q", userID)
	}
	if newToken == token {
		t.Fatal("expected a fresh token")
	}
	if _, err := store.Get(ctx, tokenKey(token)); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("old token left behind: %v", err)
	}
	if _, _, err := manager.Rotate(ctx, token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected reused token to be rejected, got %v", err)
	}
}

func TestManagerRevoke(t *testing.T) {
	store := kv.NewMemoryStore()
	manager := &Manager{store: store, ttl: time.Hour}
	ctx := context.Background()

	token, err := manager.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := manager.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, _, err := manager.Rotate(ctx, token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestNewManagerValidatesTTL(t *testing.T) {
	store := kv.NewMemoryStore()
	if _, err := NewManager(nil, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60}); err == nil {
		t.Fatal("expected nil store error")
	}
	if _, err := NewManager(store, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 10}); err == nil {
		t.Fatal("expected ttl ordering error")
	}
	if _, err := NewManager(store, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

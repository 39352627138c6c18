package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "loyalty-stub",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	payload := AccessTokenPayload{
		UserID:     "user-1",
		Email:      "owner@cafe.test",
		Role:       enums.RoleMerchant,
		BusinessID: "biz-1",
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != "user-1" || claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q/%q", claims.UserID, claims.Subject)
	}
	if claims.Role != enums.RoleMerchant {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.BusinessID != "biz-1" {
		t.Fatalf("business id not preserved")
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: "u", Role: enums.RoleAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: "u", Role: enums.RoleAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMintAccessTokenInvalidRole(t *testing.T) {
	if _, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{UserID: "u"}); err == nil {
		t.Fatal("expected invalid role error")
	}
}

func TestDecodeAccessTokenSkipsSignature(t *testing.T) {
	token, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{UserID: "u", Role: enums.RoleAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	other := testJWTConfig()
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("verification with a different secret should fail")
	}
	claims, err := DecodeAccessToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Role != enums.RoleAdmin {
		t.Fatalf("unexpected role %s", claims.Role)
	}
}

func TestIsExpired(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()

	fresh, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: "u", Role: enums.RoleMerchant})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	stale, err := MintAccessToken(cfg, now.Add(-time.Hour), AccessTokenPayload{UserID: "u", Role: enums.RoleMerchant})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	noExp := signMapClaims(t, jwt.MapClaims{"role": "admin"})
	future := now.Add(time.Hour).Unix()
	numericUser := signMapClaims(t, jwt.MapClaims{"userId": 42, "exp": future})
	objectRole := signMapClaims(t, jwt.MapClaims{"role": map[string]any{"name": "admin"}, "exp": future})
	textExp := signMapClaims(t, jwt.MapClaims{"exp": "tomorrow"})

	cases := []struct {
		name  string
		token string
		at    time.Time
		want  bool
	}{
		{name: "fresh", token: fresh, at: now, want: false},
		{name: "stale", token: stale, at: now, want: true},
		{name: "exactly at expiry", token: fresh, at: now.Add(30 * time.Minute).Truncate(time.Second), want: true},
		{name: "missing exp", token: noExp, at: now, want: true},
		{name: "numeric user id", token: numericUser, at: now, want: false},
		{name: "object role", token: objectRole, at: now, want: false},
		{name: "non-numeric exp", token: textExp, at: now, want: true},
		{name: "garbage", token: "not-a-jwt", at: now, want: true},
		{name: "empty", token: "", at: now, want: true},
	}
	for _, tc := range cases {
		if got := IsExpired(tc.token, tc.at); got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}

func signMapClaims(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

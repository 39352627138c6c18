package auth

import (
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID     string
	Email      string
	Role       enums.Role
	BusinessID string
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID     string     `json:"userId"`
	Email      string     `json:"email,omitempty"`
	Role       enums.Role `json:"role"`
	BusinessID string     `json:"businessId,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is the bearer credential set issued at login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// IsZero reports whether no access token is present.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == ""
}

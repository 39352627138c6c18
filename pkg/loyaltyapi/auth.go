package loyaltyapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/angelmondragon/loyalty-portal/pkg/auth"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
)

const (
	CallLogin    = "login"
	CallRegister = "register"
	CallRefresh  = "refresh_token"
)

// LoginResult is the data of a successful login.
type LoginResult struct {
	User     types.Identity         `json:"user"`
	Tokens   auth.TokenPair         `json:"tokens"`
	Business *types.BusinessProfile `json:"business,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResult struct {
	Tokens auth.TokenPair `json:"tokens"`
}

// Login exchanges credentials for an identity and token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	req, err := jsonRequest(CallLogin, http.MethodPost, "/auth/login", loginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var result LoginResult
	if err := decodeData(CallLogin, data, &result); err != nil {
		return nil, err
	}
	if result.Tokens.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "login response missing access token")
	}
	return &result, nil
}

// Register creates an account and returns the server payload untouched.
func (c *Client) Register(ctx context.Context, fields types.RegistrationFields) (json.RawMessage, error) {
	req, err := jsonRequest(CallRegister, http.MethodPost, "/auth/register", fields)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req)
}

// RefreshToken trades a refresh token for a new pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	req, err := jsonRequest(CallRefresh, http.MethodPost, "/auth/refresh-token", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return auth.TokenPair{}, err
	}
	data, err := c.do(ctx, req)
	if err != nil {
		return auth.TokenPair{}, err
	}

	var result refreshResult
	if err := decodeData(CallRefresh, data, &result); err != nil {
		return auth.TokenPair{}, err
	}
	if result.Tokens.AccessToken == "" {
		return auth.TokenPair{}, pkgerrors.New(pkgerrors.CodeDependency, "refresh response missing access token")
	}
	return result.Tokens, nil
}

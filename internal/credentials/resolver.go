// Package credentials decides which bearer token authorizes the next call.
//
// Two slots exist. The persisted slot is the session store's pair. The
// transient slot is the pair an onboarding flow obtained right after
// registration, which is never written to durable storage. While a
// transient pair is held it takes precedence; otherwise the persisted pair
// is used.
package credentials

import (
	"context"

	"github.com/angelmondragon/loyalty-portal/pkg/auth"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
)

type Slot string

const (
	SlotNone      Slot = ""
	SlotPersisted Slot = "persisted"
	SlotTransient Slot = "transient"
)

// PersistedSource exposes the session store's access token.
type PersistedSource interface {
	GetAccessToken(ctx context.Context) (string, bool)
}

// TransientSource exposes an onboarding flow's registration-scoped pair.
type TransientSource interface {
	TransientCredentials() (auth.TokenPair, bool)
}

// Credential is the resolved bearer and the slot it came from.
type Credential struct {
	Slot        Slot
	AccessToken string
}

type Resolver struct {
	persisted PersistedSource
	transient TransientSource
}

// NewResolver accepts nil for either source.
func NewResolver(persisted PersistedSource, transient TransientSource) *Resolver {
	return &Resolver{persisted: persisted, transient: transient}
}

// WithTransient returns a resolver sharing the persisted source.
func (r *Resolver) WithTransient(transient TransientSource) *Resolver {
	return &Resolver{persisted: r.persisted, transient: transient}
}

// Resolve returns the current credential, or SlotNone when neither slot holds one.
func (r *Resolver) Resolve(ctx context.Context) Credential {
	if r == nil {
		return Credential{}
	}
	if r.transient != nil {
		if pair, ok := r.transient.TransientCredentials(); ok && pair.AccessToken != "" {
			return Credential{Slot: SlotTransient, AccessToken: pair.AccessToken}
		}
	}
	if r.persisted != nil {
		if token, ok := r.persisted.GetAccessToken(ctx); ok && token != "" {
			return Credential{Slot: SlotPersisted, AccessToken: token}
		}
	}
	return Credential{}
}

// AccessToken returns the current bearer or an UNAUTHORIZED error.
func (r *Resolver) AccessToken(ctx context.Context) (string, error) {
	cred := r.Resolve(ctx)
	if cred.Slot == SlotNone {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	return cred.AccessToken, nil
}

// AuthorizationHeader formats the current bearer for an Authorization header.
func (r *Resolver) AuthorizationHeader(ctx context.Context) (string, error) {
	token, err := r.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// Package session owns the authenticated identity and its token pair, keeps
// them in the durable key-value store, and restores them on start.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/angelmondragon/loyalty-portal/pkg/auth"
	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/kv"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
	"github.com/angelmondragon/loyalty-portal/pkg/loyaltyapi"
	"github.com/angelmondragon/loyalty-portal/pkg/metrics"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
)

// API is the slice of the loyalty API the store calls.
type API interface {
	Login(ctx context.Context, email, password string) (*loyaltyapi.LoginResult, error)
	Register(ctx context.Context, fields types.RegistrationFields) (json.RawMessage, error)
	RefreshToken(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

// Keys names the durable storage entries. LegacyAccessToken mirrors
// AccessToken when set.
type Keys struct {
	Identity          string
	AccessToken       string
	RefreshToken      string
	Business          string
	LegacyAccessToken string
}

// KeysFromConfig reads the key names from the storage config.
func KeysFromConfig(cfg config.StorageConfig) Keys {
	return Keys{
		Identity:          cfg.IdentityKey,
		AccessToken:       cfg.AccessTokenKey,
		RefreshToken:      cfg.RefreshTokenKey,
		Business:          cfg.BusinessKey,
		LegacyAccessToken: cfg.LegacyAccessTokenKey,
	}
}

// DefaultKeys matches the defaults of config.StorageConfig.
func DefaultKeys() Keys {
	return Keys{
		Identity:          "user",
		AccessToken:       "accessToken",
		RefreshToken:      "refreshToken",
		Business:          "business",
		LegacyAccessToken: "token",
	}
}

func (k Keys) all() []string {
	keys := []string{k.Identity, k.AccessToken, k.RefreshToken, k.Business}
	if k.LegacyAccessToken != "" {
		keys = append(keys, k.LegacyAccessToken)
	}
	return keys
}

// Store is the single owner of session state for the process. Create it once
// and pass it to the components that need credentials.
type Store struct {
	api     API
	kv      kv.Store
	keys    Keys
	logg    *logger.Logger
	metrics *metrics.SessionMetrics
	now     func() time.Time

	mu       sync.RWMutex
	ready    bool
	busy     bool
	notice   types.Notice
	identity *types.Identity
	tokens   auth.TokenPair
	business *types.BusinessProfile
}

// Option configures optional store behavior.
type Option func(*Store)

func WithKeys(keys Keys) Option {
	return func(s *Store) {
		s.keys = keys
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(s *Store) {
		if logg != nil {
			s.logg = logg
		}
	}
}

func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds an uninitialized store. Call Initialize before reading state.
func New(api API, store kv.Store, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "loyalty api is required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "kv store is required")
	}
	s := &Store{
		api:  api,
		kv:   store,
		keys: DefaultKeys(),
		logg: logger.Nop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.keys.Identity == "" || s.keys.AccessToken == "" || s.keys.RefreshToken == "" || s.keys.Business == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "storage key names are required")
	}
	return s, nil
}

// Ready reports whether Initialize has completed.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Busy reports whether a login, registration or refresh is in flight.
func (s *Store) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Notice returns the current user-facing message.
func (s *Store) Notice() types.Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notice
}

// ClearNotice drops the current message.
func (s *Store) ClearNotice() {
	s.mu.Lock()
	s.notice = types.Notice{}
	s.mu.Unlock()
}

// Identity returns a copy of the signed-in identity.
func (s *Store) Identity() (types.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return types.Identity{}, false
	}
	return *s.identity, true
}

// Tokens returns the in-memory token pair.
func (s *Store) Tokens() auth.TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Business returns a copy of the stored business profile.
func (s *Store) Business() (types.BusinessProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.business == nil {
		return types.BusinessProfile{}, false
	}
	return *s.business, true
}

// IsAuthenticated reports whether an identity and access token are held.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.tokens.AccessToken != ""
}

func (s *Store) IsAdmin() bool {
	return s.hasRole(enums.RoleAdmin)
}

func (s *Store) IsMerchant() bool {
	return s.hasRole(enums.RoleMerchant)
}

func (s *Store) hasRole(role enums.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.identity.Role == role
}

// IsTokenExpired treats undecodable or missing tokens as expired.
func (s *Store) IsTokenExpired(token string) bool {
	return auth.IsExpired(token, s.now())
}

// beginAction marks the store busy and clears the current notice. A second
// remote-backed action while one is in flight is refused.
func (s *Store) beginAction(operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return pkgerrors.New(pkgerrors.CodeStateConflict, operation+" already in progress")
	}
	s.busy = true
	s.notice = types.Notice{}
	return nil
}

func (s *Store) endAction(notice types.Notice) {
	s.mu.Lock()
	s.busy = false
	s.notice = notice
	s.mu.Unlock()
}

// Package accounts is the in-memory account and merchant book behind the
// stub loyalty API. It keeps no approval workflow: new businesses are either
// approved on creation or left pending.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/loyalty-portal/pkg/auth"
	"github.com/angelmondragon/loyalty-portal/pkg/auth/refresh"
	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
	"github.com/angelmondragon/loyalty-portal/pkg/loyaltyapi"
	"github.com/angelmondragon/loyalty-portal/pkg/security"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
	"github.com/google/uuid"
)

const (
	invalidCredentialsMessage = "Invalid email or password"
	invalidRefreshMessage     = "Invalid or expired refresh token"
)

// Service is the account surface used by the stub controllers.
type Service interface {
	Register(ctx context.Context, fields types.RegistrationFields) (*types.Identity, error)
	Login(ctx context.Context, email, password string) (*loyaltyapi.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	CreateMerchant(ctx context.Context, ownerID string, profile types.BusinessProfile) (*types.BusinessProfile, error)
	AttachMedia(ctx context.Context, ownerID, businessID string, kind enums.MediaKind, file types.MediaFile) (*types.BusinessProfile, error)
	SetBusinessStatus(ctx context.Context, businessID string, status enums.BusinessStatus) (*types.BusinessProfile, error)
}

type refreshManager interface {
	Issue(ctx context.Context, userID string) (string, error)
	Rotate(ctx context.Context, provided string) (string, string, error)
}

type userRecord struct {
	identity     types.Identity
	passwordHash string
}

type merchantRecord struct {
	profile types.BusinessProfile
	ownerID string
	media   map[enums.MediaKind]types.MediaFile
}

// Params bundles the dependencies required to build the service.
type Params struct {
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Stub     config.StubConfig
	Refresh  refreshManager
	Logger   *logger.Logger
}

type service struct {
	jwtCfg      config.JWTConfig
	hasher      *security.Hasher
	autoApprove bool
	refresh     refreshManager
	logg        *logger.Logger
	now         func() time.Time

	mu          sync.RWMutex
	usersByMail map[string]*userRecord
	usersByID   map[string]*userRecord
	merchants   map[string]*merchantRecord
	ownerIndex  map[string]string
}

// NewService builds the account book and seeds the configured admin, if any.
func NewService(ctx context.Context, params Params) (Service, error) {
	if params.Refresh == nil {
		return nil, fmt.Errorf("refresh manager is required")
	}
	if strings.TrimSpace(params.JWT.Secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	s := &service{
		jwtCfg:      params.JWT,
		hasher:      security.NewHasher(params.Password),
		autoApprove: params.Stub.AutoApprove,
		refresh:     params.Refresh,
		logg:        logg,
		now:         time.Now,
		usersByMail: make(map[string]*userRecord),
		usersByID:   make(map[string]*userRecord),
		merchants:   make(map[string]*merchantRecord),
		ownerIndex:  make(map[string]string),
	}

	if email := strings.TrimSpace(params.Stub.AdminEmail); email != "" && params.Stub.AdminPass != "" {
		_, err := s.Register(ctx, types.RegistrationFields{
			FirstName:   "Portal",
			LastName:    "Admin",
			Email:       email,
			Password:    params.Stub.AdminPass,
			PhoneNumber: "000-0000",
			Role:        enums.RoleAdmin,
		})
		if err != nil {
			return nil, fmt.Errorf("seeding admin: %w", err)
		}
		logg.Info(logg.WithField(ctx, "email", email), "admin account seeded")
	}
	return s, nil
}

func (s *service) Register(ctx context.Context, fields types.RegistrationFields) (*types.Identity, error) {
	email := normalizeEmail(fields.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !fields.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	hash, err := s.hasher.Hash(fields.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByMail[email]; exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Email already registered")
	}
	record := &userRecord{
		identity: types.Identity{
			ID:          uuid.NewString(),
			Email:       email,
			Role:        fields.Role,
			FirstName:   strings.TrimSpace(fields.FirstName),
			LastName:    strings.TrimSpace(fields.LastName),
			PhoneNumber: strings.TrimSpace(fields.PhoneNumber),
		},
		passwordHash: hash,
	}
	s.usersByMail[email] = record
	s.usersByID[record.identity.ID] = record

	identity := record.identity
	return &identity, nil
}

// Login verifies the credentials. A merchant's business is returned as is,
// whatever its status; clients decide whether that status admits a session.
func (s *service) Login(ctx context.Context, email, password string) (*loyaltyapi.LoginResult, error) {
	s.mu.RLock()
	record, ok := s.usersByMail[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	s.mu.RLock()
	stored := record.passwordHash
	s.mu.RUnlock()
	matches, err := s.hasher.Verify(password, stored)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !matches {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if s.hasher.NeedsRehash(stored) {
		s.rehash(ctx, record, password)
	}

	business := s.businessOf(record.identity.ID)
	tokens, err := s.issuePair(ctx, record.identity, business)
	if err != nil {
		return nil, err
	}

	return &loyaltyapi.LoginResult{
		User:     record.identity,
		Tokens:   tokens,
		Business: business,
	}, nil
}

// rehash upgrades a stored hash to the current cost. Failure keeps the old hash.
func (s *service) rehash(ctx context.Context, record *userRecord, password string) {
	upgraded, err := s.hasher.Hash(password)
	if err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, record.identity.ID), "password rehash failed")
		return
	}
	s.mu.Lock()
	record.passwordHash = upgraded
	s.mu.Unlock()
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	userID, rotated, err := s.refresh.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrInvalidRefreshToken) {
			return auth.TokenPair{}, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidRefreshMessage)
		}
		return auth.TokenPair{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate refresh token")
	}

	s.mu.RLock()
	record, ok := s.usersByID[userID]
	s.mu.RUnlock()
	if !ok {
		return auth.TokenPair{}, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidRefreshMessage)
	}

	access, err := s.mintAccess(record.identity, s.businessOf(userID))
	if err != nil {
		return auth.TokenPair{}, err
	}
	return auth.TokenPair{AccessToken: access, RefreshToken: rotated}, nil
}

func (s *service) CreateMerchant(ctx context.Context, ownerID string, profile types.BusinessProfile) (*types.BusinessProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.usersByID[ownerID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown account")
	}
	if owner.identity.Role != enums.RoleMerchant {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Only merchant accounts can create a business")
	}
	if _, exists := s.ownerIndex[ownerID]; exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "A business already exists for this account")
	}

	status := enums.BusinessStatusPending
	if s.autoApprove {
		status = enums.BusinessStatusApproved
	}
	profile.ID = uuid.NewString()
	profile.Status = status
	profile.LogoURL = ""
	profile.BannerURL = ""
	for i := range profile.BusinessHours {
		profile.BusinessHours[i].Day = types.Weekdays[i]
	}

	s.merchants[profile.ID] = &merchantRecord{
		profile: profile,
		ownerID: ownerID,
		media:   make(map[enums.MediaKind]types.MediaFile),
	}
	s.ownerIndex[ownerID] = profile.ID

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"business_id": profile.ID,
		"status":      status,
	}), "merchant created")

	created := profile
	return &created, nil
}

func (s *service) AttachMedia(ctx context.Context, ownerID, businessID string, kind enums.MediaKind, file types.MediaFile) (*types.BusinessProfile, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported media kind %q", kind))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merchant, ok := s.merchants[businessID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Business not found")
	}
	if merchant.ownerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You do not own this business")
	}

	merchant.media[kind] = file
	url := fmt.Sprintf("/media/%s/%s", businessID, kind)
	switch kind {
	case enums.MediaKindLogo:
		merchant.profile.LogoURL = url
	case enums.MediaKindBanner:
		merchant.profile.BannerURL = url
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"business_id": businessID,
		"asset":       kind,
		"size":        file.Size(),
	}), "merchant media stored")

	updated := merchant.profile
	return &updated, nil
}

func (s *service) SetBusinessStatus(ctx context.Context, businessID string, status enums.BusinessStatus) (*types.BusinessProfile, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merchant, ok := s.merchants[businessID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Business not found")
	}
	merchant.profile.Status = status

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"business_id": businessID,
		"status":      status,
	}), "merchant status changed")

	updated := merchant.profile
	return &updated, nil
}

func (s *service) businessOf(userID string) *types.BusinessProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ownerIndex[userID]
	if !ok {
		return nil
	}
	profile := s.merchants[id].profile
	return &profile
}

func (s *service) issuePair(ctx context.Context, identity types.Identity, business *types.BusinessProfile) (auth.TokenPair, error) {
	access, err := s.mintAccess(identity, business)
	if err != nil {
		return auth.TokenPair{}, err
	}
	refreshToken, err := s.refresh.Issue(ctx, identity.ID)
	if err != nil {
		return auth.TokenPair{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue refresh token")
	}
	return auth.TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
}

func (s *service) mintAccess(identity types.Identity, business *types.BusinessProfile) (string, error) {
	payload := auth.AccessTokenPayload{
		UserID: identity.ID,
		Email:  identity.Email,
		Role:   identity.Role,
	}
	if business != nil {
		payload.BusinessID = business.ID
	}
	token, err := auth.MintAccessToken(s.jwtCfg, s.now(), payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

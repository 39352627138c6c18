package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/loyalty-portal/pkg/auth"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/kv"
	"github.com/angelmondragon/loyalty-portal/pkg/loyaltyapi"
	"github.com/angelmondragon/loyalty-portal/pkg/metrics"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
	"github.com/angelmondragon/loyalty-portal/pkg/validate"
	"go.uber.org/multierr"
)

const (
	opLogin    = "login"
	opRegister = "register"
	opRefresh  = "refresh"
	opLogout   = "logout"
)

const (
	msgLoginSuccess    = "Login successful"
	msgRegisterSuccess = "Registration successful"
	msgBusinessPending = "Your business registration is pending approval."
	msgBusinessBlocked = "Your business registration has been rejected. Please contact support."
)

type restored struct {
	identity *types.Identity
	tokens   auth.TokenPair
	business *types.BusinessProfile
}

// Initialize rebuilds the session from durable storage. Stored data that
// cannot be decoded is erased and the store starts empty. Ready is true once
// this returns, whatever the outcome.
func (s *Store) Initialize(ctx context.Context) error {
	state, err := s.restore(ctx)

	s.mu.Lock()
	s.identity = state.identity
	s.tokens = state.tokens
	s.business = state.business
	s.ready = true
	s.mu.Unlock()

	if err != nil {
		s.logg.Error(ctx, "session restore failed", err)
	}
	return err
}

func (s *Store) restore(ctx context.Context) (restored, error) {
	rawIdentity, err := s.read(ctx, s.keys.Identity)
	if err != nil {
		return restored{}, err
	}
	access, err := s.readAccessToken(ctx)
	if err != nil {
		return restored{}, err
	}
	refresh, err := s.read(ctx, s.keys.RefreshToken)
	if err != nil {
		return restored{}, err
	}
	rawBusiness, err := s.read(ctx, s.keys.Business)
	if err != nil {
		return restored{}, err
	}

	if rawIdentity == "" && access == "" && refresh == "" && rawBusiness == "" {
		s.logg.Debug(ctx, "no stored session")
		return restored{}, nil
	}

	var (
		state  restored
		reason string
	)
	identity, ok := decodeIdentity(rawIdentity)
	switch {
	case rawIdentity == "":
		reason = "identity missing"
	case !ok:
		reason = "identity malformed"
	case access == "":
		reason = "access token missing"
	}
	if reason == "" && rawBusiness != "" {
		business, ok := decodeBusiness(rawBusiness)
		if !ok {
			reason = "business profile malformed"
		}
		state.business = business
	}

	if reason != "" {
		s.metrics.IncStorageWipe()
		s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "discarding stored session")
		if err := s.wipe(ctx); err != nil {
			return restored{}, err
		}
		return restored{}, nil
	}

	state.identity = identity
	state.tokens = auth.TokenPair{AccessToken: access, RefreshToken: refresh}
	ctx = s.logg.WithUserID(ctx, identity.ID)
	s.logg.Info(s.logg.WithActorRole(ctx, identity.Role.String()), "session restored")
	return state, nil
}

// Login authenticates and persists the session. A merchant whose business is
// pending or rejected is refused and nothing is stored.
func (s *Store) Login(ctx context.Context, email, password string) (*types.Identity, error) {
	if err := s.beginAction(opLogin); err != nil {
		return nil, err
	}
	started := time.Now()

	identity, err := s.login(ctx, email, password)
	if err != nil {
		s.metrics.Observe(opLogin, outcomeFor(err), time.Since(started))
		s.endAction(types.ErrorNotice(pkgerrors.UserMessage(err)))
		return nil, err
	}
	s.metrics.Observe(opLogin, metrics.OutcomeSuccess, time.Since(started))
	s.endAction(types.SuccessNotice(msgLoginSuccess))
	return identity, nil
}

func (s *Store) login(ctx context.Context, email, password string) (*types.Identity, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	result, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error_code", pkgerrors.CodeOf(err)), "login failed")
		return nil, err
	}

	if result.Business != nil && result.Business.Status.BlocksLogin() {
		ctx = s.logg.WithBusinessID(s.logg.WithUserID(ctx, result.User.ID), result.Business.ID)
		s.logg.Info(s.logg.WithField(ctx, "business_status", result.Business.Status), "login refused for unapproved business")
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, blockedLoginMessage(result.Business.Status)).
			WithDetails(map[string]any{"status": result.Business.Status})
	}
	if !result.User.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "login response missing user")
	}

	identity := result.User
	if err := s.persistSession(ctx, identity, result.Tokens, result.Business); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.identity = &identity
	s.tokens = result.Tokens
	s.business = cloneBusiness(result.Business)
	s.mu.Unlock()

	ctx = s.logg.WithUserID(ctx, identity.ID)
	s.logg.Info(s.logg.WithActorRole(ctx, identity.Role.String()), "login succeeded")
	return &identity, nil
}

func blockedLoginMessage(status enums.BusinessStatus) string {
	if status == enums.BusinessStatusRejected {
		return msgBusinessBlocked
	}
	return msgBusinessPending
}

// Register forwards the registration. Session state is not touched.
func (s *Store) Register(ctx context.Context, fields types.RegistrationFields) (json.RawMessage, error) {
	if err := s.beginAction(opRegister); err != nil {
		return nil, err
	}
	started := time.Now()

	payload, err := s.register(ctx, fields)
	if err != nil {
		s.metrics.Observe(opRegister, outcomeFor(err), time.Since(started))
		s.endAction(types.ErrorNotice(pkgerrors.UserMessage(err)))
		return nil, err
	}
	s.metrics.Observe(opRegister, metrics.OutcomeSuccess, time.Since(started))
	s.endAction(types.SuccessNotice(msgRegisterSuccess))
	return payload, nil
}

func (s *Store) register(ctx context.Context, fields types.RegistrationFields) (json.RawMessage, error) {
	if err := validate.Struct(fields); err != nil {
		return nil, err
	}
	payload, err := s.api.Register(ctx, fields)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error_code", pkgerrors.CodeOf(err)), "registration failed")
		return nil, err
	}
	s.logg.Info(s.logg.WithActorRole(ctx, fields.Role.String()), "registration succeeded")
	return payload, nil
}

// RefreshAccessToken trades the refresh token for a new pair. Any failure
// ends the session before the error is returned.
func (s *Store) RefreshAccessToken(ctx context.Context) (auth.TokenPair, error) {
	if err := s.beginAction(opRefresh); err != nil {
		return auth.TokenPair{}, err
	}
	started := time.Now()

	pair, err := s.refresh(ctx)
	if err != nil {
		if clearErr := s.clear(ctx); clearErr != nil {
			s.logg.Error(ctx, "logout after failed refresh incomplete", clearErr)
		}
		s.metrics.Observe(opRefresh, outcomeFor(err), time.Since(started))
		s.endAction(types.ErrorNotice(pkgerrors.UserMessage(err)))
		return auth.TokenPair{}, err
	}
	s.metrics.Observe(opRefresh, metrics.OutcomeSuccess, time.Since(started))
	s.endAction(types.Notice{})
	return pair, nil
}

func (s *Store) refresh(ctx context.Context) (auth.TokenPair, error) {
	current := s.Tokens().RefreshToken
	if current == "" {
		stored, err := s.read(ctx, s.keys.RefreshToken)
		if err != nil {
			return auth.TokenPair{}, err
		}
		current = stored
	}
	if current == "" {
		return auth.TokenPair{}, pkgerrors.New(pkgerrors.CodeSessionInvalid, pkgerrors.MetadataFor(pkgerrors.CodeSessionInvalid).PublicMessage)
	}

	pair, err := s.api.RefreshToken(ctx, current)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error_code", pkgerrors.CodeOf(err)), "token refresh failed")
		if loyaltyapi.IsRejection(err) {
			return auth.TokenPair{}, pkgerrors.Wrap(pkgerrors.CodeSessionInvalid, err, pkgerrors.MetadataFor(pkgerrors.CodeSessionInvalid).PublicMessage)
		}
		return auth.TokenPair{}, err
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = current
	}

	if err := s.persistTokens(ctx, pair); err != nil {
		return auth.TokenPair{}, err
	}

	s.mu.Lock()
	s.tokens = pair
	s.mu.Unlock()

	s.logg.Info(ctx, "access token refreshed")
	return pair, nil
}

// Logout erases the durable session and nulls in-memory state. It makes no
// remote call and is safe to repeat.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.notice = types.Notice{}
	s.mu.Unlock()

	err := s.clear(ctx)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.Observe(opLogout, outcome, 0)
	return err
}

func (s *Store) clear(ctx context.Context) error {
	s.mu.Lock()
	hadSession := s.identity != nil
	s.identity = nil
	s.tokens = auth.TokenPair{}
	s.business = nil
	s.mu.Unlock()

	err := s.wipe(ctx)
	if hadSession {
		s.logg.Info(ctx, "session cleared")
	}
	return err
}

// GetAccessToken prefers the in-memory token and falls back to storage for
// callers that run before Initialize has finished.
func (s *Store) GetAccessToken(ctx context.Context) (string, bool) {
	if token := s.Tokens().AccessToken; token != "" {
		return token, true
	}
	token, err := s.readAccessToken(ctx)
	if err != nil {
		s.logg.Warn(ctx, "reading stored access token failed")
		return "", false
	}
	return token, token != ""
}

// UpdateIdentity overwrites the stored and in-memory identity.
func (s *Store) UpdateIdentity(ctx context.Context, identity types.Identity) error {
	if !identity.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "identity requires an email and a known role")
	}
	raw, err := json.Marshal(identity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode identity")
	}
	if err := s.kv.Set(ctx, s.keys.Identity, string(raw), 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "store identity")
	}

	s.mu.Lock()
	s.identity = &identity
	s.mu.Unlock()
	return nil
}

// UpdateBusinessProfile overwrites the stored business profile. Nil removes it.
func (s *Store) UpdateBusinessProfile(ctx context.Context, profile *types.BusinessProfile) error {
	if profile == nil {
		if err := s.kv.Del(ctx, s.keys.Business); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "remove business profile")
		}
	} else {
		raw, err := json.Marshal(profile)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode business profile")
		}
		if err := s.kv.Set(ctx, s.keys.Business, string(raw), 0); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "store business profile")
		}
	}

	s.mu.Lock()
	s.business = cloneBusiness(profile)
	s.mu.Unlock()
	return nil
}

func (s *Store) persistSession(ctx context.Context, identity types.Identity, tokens auth.TokenPair, business *types.BusinessProfile) error {
	rawIdentity, err := json.Marshal(identity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode identity")
	}
	var rawBusiness []byte
	if business != nil {
		if rawBusiness, err = json.Marshal(business); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode business profile")
		}
	}

	err = s.kv.Set(ctx, s.keys.Identity, string(rawIdentity), 0)
	if err == nil {
		err = s.persistTokens(ctx, tokens)
	}
	if err == nil {
		if business != nil {
			err = s.kv.Set(ctx, s.keys.Business, string(rawBusiness), 0)
		} else {
			err = s.kv.Del(ctx, s.keys.Business)
		}
	}
	if err != nil {
		s.logg.Error(ctx, "persisting session failed", err)
		err = multierr.Append(err, s.wipe(ctx))
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, pkgerrors.MetadataFor(pkgerrors.CodeStorage).PublicMessage)
	}
	return nil
}

// persistTokens writes the access token together with its legacy mirror.
func (s *Store) persistTokens(ctx context.Context, tokens auth.TokenPair) error {
	err := s.kv.Set(ctx, s.keys.AccessToken, tokens.AccessToken, 0)
	if err == nil && s.keys.LegacyAccessToken != "" {
		err = s.kv.Set(ctx, s.keys.LegacyAccessToken, tokens.AccessToken, 0)
	}
	if err == nil {
		if tokens.RefreshToken != "" {
			err = s.kv.Set(ctx, s.keys.RefreshToken, tokens.RefreshToken, 0)
		} else {
			err = s.kv.Del(ctx, s.keys.RefreshToken)
		}
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, pkgerrors.MetadataFor(pkgerrors.CodeStorage).PublicMessage)
	}
	return nil
}

// wipe deletes every session key, continuing past individual failures.
func (s *Store) wipe(ctx context.Context) error {
	var errs error
	for _, key := range s.keys.all() {
		errs = multierr.Append(errs, s.kv.Del(ctx, key))
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, errs, "clear stored session")
	}
	return nil
}

func (s *Store) read(ctx context.Context, key string) (string, error) {
	value, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read "+key)
	}
	return value, nil
}

func (s *Store) readAccessToken(ctx context.Context) (string, error) {
	token, err := s.read(ctx, s.keys.AccessToken)
	if err != nil || token != "" || s.keys.LegacyAccessToken == "" {
		return token, err
	}
	return s.read(ctx, s.keys.LegacyAccessToken)
}

func decodeIdentity(raw string) (*types.Identity, bool) {
	if raw == "" {
		return nil, false
	}
	var identity types.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return nil, false
	}
	if !identity.Valid() {
		return nil, false
	}
	return &identity, true
}

func decodeBusiness(raw string) (*types.BusinessProfile, bool) {
	var business types.BusinessProfile
	if err := json.Unmarshal([]byte(raw), &business); err != nil {
		return nil, false
	}
	return &business, true
}

func cloneBusiness(profile *types.BusinessProfile) *types.BusinessProfile {
	if profile == nil {
		return nil
	}
	clone := *profile
	return &clone
}

func outcomeFor(err error) string {
	if loyaltyapi.IsRejection(err) {
		return metrics.OutcomeRejected
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeValidation, pkgerrors.CodeForbidden, pkgerrors.CodeSessionInvalid:
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeFailure
}

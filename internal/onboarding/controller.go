// Package onboarding drives a newly registered merchant through the business
// profile wizard: three local steps, profile creation, then logo and banner
// uploads, ending in review.
//
// The registration-scoped token pair obtained right after sign-up lives only
// inside the Controller and is discarded once the wizard reaches review.
package onboarding

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/angelmondragon/loyalty-portal/internal/credentials"
	"github.com/angelmondragon/loyalty-portal/pkg/auth"
	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
	"github.com/angelmondragon/loyalty-portal/pkg/loyaltyapi"
	"github.com/angelmondragon/loyalty-portal/pkg/metrics"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
)

const (
	StepBasicInfo = 1
	StepAddress   = 2
	StepDetails   = 3
	StepMedia     = 4
)

// API is the slice of the loyalty API the wizard calls.
type API interface {
	Register(ctx context.Context, fields types.RegistrationFields) (json.RawMessage, error)
	Login(ctx context.Context, email, password string) (*loyaltyapi.LoginResult, error)
	CreateMerchant(ctx context.Context, bearer string, profile types.BusinessProfile) (*types.BusinessProfile, error)
	UploadMedia(ctx context.Context, bearer, businessID string, kind enums.MediaKind, file types.MediaFile) error
}

// Timer is the handle of a scheduled reset.
type Timer interface {
	Stop() bool
}

// AfterFunc runs f once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Limits bounds staged media and sets the review reset delay.
type Limits struct {
	LogoMaxBytes   int64
	BannerMaxBytes int64
	ResetDelay     time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		LogoMaxBytes:   5 * 1024 * 1024,
		BannerMaxBytes: 10 * 1024 * 1024,
		ResetDelay:     3 * time.Second,
	}
}

func LimitsFromConfig(cfg config.OnboardingConfig) Limits {
	limits := DefaultLimits()
	if cfg.LogoMaxBytes > 0 {
		limits.LogoMaxBytes = cfg.LogoMaxBytes
	}
	if cfg.BannerMaxBytes > 0 {
		limits.BannerMaxBytes = cfg.BannerMaxBytes
	}
	if cfg.ResetDelay > 0 {
		limits.ResetDelay = cfg.ResetDelay
	}
	return limits
}

// Controller is the wizard state machine. Methods are safe for concurrent
// use, but remote-backed actions refuse to start while another is in flight.
type Controller struct {
	api       API
	resolver  *credentials.Resolver
	logg      *logger.Logger
	metrics   *metrics.OnboardingMetrics
	limits    Limits
	afterFunc AfterFunc

	mu          sync.Mutex
	phase       enums.OnboardingPhase
	step        int
	busy        bool
	notice      types.Notice
	fieldErrors map[string]string
	draft       Draft
	media       map[enums.MediaKind]*stagedFile
	uploaded    map[enums.MediaKind]bool
	businessID  string
	transient   auth.TokenPair
	resetTimer  Timer
	generation  uint64
}

// Option configures optional controller behavior.
type Option func(*Controller)

func WithLogger(logg *logger.Logger) Option {
	return func(c *Controller) {
		if logg != nil {
			c.logg = logg
		}
	}
}

func WithMetrics(m *metrics.OnboardingMetrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithLimits(limits Limits) Option {
	return func(c *Controller) {
		c.limits = limits
	}
}

// WithAfterFunc replaces the timer used for the review reset.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.afterFunc = fn
		}
	}
}

// WithPersistedCredentials lets the wizard fall back to the session store's
// token when it holds no registration-scoped pair of its own.
func WithPersistedCredentials(source credentials.PersistedSource) Option {
	return func(c *Controller) {
		c.resolver = credentials.NewResolver(source, c)
	}
}

// New builds a controller showing the registration form.
func New(api API, opts ...Option) (*Controller, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "loyalty api is required")
	}
	c := &Controller{
		api:       api,
		logg:      logger.Nop(),
		limits:    DefaultLimits(),
		afterFunc: realAfterFunc,
		phase:     enums.OnboardingPhaseRegister,
		media:     make(map[enums.MediaKind]*stagedFile),
		uploaded:  make(map[enums.MediaKind]bool),
	}
	c.resolver = credentials.NewResolver(nil, c)
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// State is a point-in-time copy of the wizard for rendering.
type State struct {
	Phase       enums.OnboardingPhase `json:"phase"`
	Step        int                   `json:"step,omitempty"`
	Busy        bool                  `json:"busy"`
	Notice      types.Notice          `json:"notice"`
	FieldErrors map[string]string     `json:"fieldErrors,omitempty"`
	Draft       Draft                 `json:"draft"`
	Logo        *StagedMedia          `json:"logo,omitempty"`
	Banner      *StagedMedia          `json:"banner,omitempty"`
	BusinessID  string                `json:"businessId,omitempty"`
	CanComplete bool                  `json:"canComplete"`
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := State{
		Phase:      c.phase,
		Step:       c.step,
		Busy:       c.busy,
		Notice:     c.notice,
		Draft:      c.draft,
		BusinessID: c.businessID,
		Logo:       c.summaryLocked(enums.MediaKindLogo),
		Banner:     c.summaryLocked(enums.MediaKindBanner),
	}
	if len(c.fieldErrors) > 0 {
		state.FieldErrors = make(map[string]string, len(c.fieldErrors))
		for field, msg := range c.fieldErrors {
			state.FieldErrors[field] = msg
		}
	}
	state.CanComplete = c.canCompleteLocked()
	return state
}

// Phase returns the current phase.
func (c *Controller) Phase() enums.OnboardingPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Busy reports whether a remote call is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// TransientCredentials returns the registration-scoped pair, if held.
func (c *Controller) TransientCredentials() (auth.TokenPair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transient, !c.transient.IsZero()
}

// ShowLogin switches the pre-wizard view to the login form.
func (c *Controller) ShowLogin() error {
	return c.switchEntry(enums.OnboardingPhaseLogin)
}

// ShowRegister switches the pre-wizard view to the registration form.
func (c *Controller) ShowRegister() error {
	return c.switchEntry(enums.OnboardingPhaseRegister)
}

func (c *Controller) switchEntry(target enums.OnboardingPhase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return c.conflictLocked("wait for the current request to finish")
	}
	if c.phase != enums.OnboardingPhaseRegister && c.phase != enums.OnboardingPhaseLogin {
		return c.conflictLocked("cannot leave the business setup from here")
	}
	c.clearNoticeLocked()
	c.transitionLocked(context.Background(), target, 0)
	return nil
}

// Reset abandons the flow, drops every wizard-local value and shows the
// login form.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return c.conflictLocked("wait for the current request to finish")
	}
	c.resetLocked(context.Background())
	return nil
}

// Close cancels a pending review reset.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

func (c *Controller) resetLocked(ctx context.Context) {
	c.stopTimerLocked()
	c.generation++
	c.draft = Draft{}
	c.media = make(map[enums.MediaKind]*stagedFile)
	c.uploaded = make(map[enums.MediaKind]bool)
	c.businessID = ""
	c.transient = auth.TokenPair{}
	c.fieldErrors = nil
	c.notice = types.Notice{}
	c.transitionLocked(ctx, enums.OnboardingPhaseLogin, 0)
}

func (c *Controller) stopTimerLocked() {
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
}

func (c *Controller) transitionLocked(ctx context.Context, phase enums.OnboardingPhase, step int) {
	from := c.phase
	c.phase = phase
	c.step = step
	if from != phase {
		c.metrics.IncTransition(from.String(), phase.String())
	}
	c.logg.Debug(c.logg.WithStep(ctx, phase.String(), step), "onboarding transition")
}

func (c *Controller) clearNoticeLocked() {
	c.notice = types.Notice{}
	c.fieldErrors = nil
}

// conflictLocked records and returns a STATE_CONFLICT error.
func (c *Controller) conflictLocked(message string) error {
	c.notice = types.ErrorNotice(message)
	return pkgerrors.New(pkgerrors.CodeStateConflict, message)
}

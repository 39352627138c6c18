package onboarding

import (
	"context"
	"fmt"

	"github.com/angelmondragon/loyalty-portal/pkg/auth"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/loyaltyapi"
	"github.com/angelmondragon/loyalty-portal/pkg/metrics"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
	"github.com/angelmondragon/loyalty-portal/pkg/validate"
)

const (
	msgAdminRegistered   = "Registration successful. Please sign in."
	msgMerchantReady     = "Account created. Tell us about your business."
	msgProfileCreated    = "Business profile created. Add your logo and banner to finish."
	msgSubmittedInReview = "Your business has been submitted and is pending review. You can sign in once it is approved."
	msgMediaRequired     = "Both a logo and a banner are required."
	msgBusy              = "wait for the current request to finish"
)

// uploadOrder is the fixed sequence of media uploads.
var uploadOrder = []enums.MediaKind{enums.MediaKindLogo, enums.MediaKindBanner}

// Register creates the account. An admin is sent to the login form. A
// merchant is signed in with a registration-scoped pair held only by the
// controller, and the wizard opens at step 1.
func (c *Controller) Register(ctx context.Context, fields types.RegistrationFields) error {
	c.mu.Lock()
	if c.busy {
		defer c.mu.Unlock()
		return c.conflictLocked(msgBusy)
	}
	if c.phase != enums.OnboardingPhaseRegister {
		defer c.mu.Unlock()
		return c.conflictLocked("registration is not open")
	}
	c.clearNoticeLocked()
	if err := validate.Struct(fields); err != nil {
		c.notice = types.ErrorNotice(pkgerrors.UserMessage(err))
		c.fieldErrors = validate.Fields(err)
		c.mu.Unlock()
		return err
	}
	c.busy = true
	c.mu.Unlock()

	ctx = c.logg.WithActorRole(ctx, fields.Role.String())
	_, err := c.api.Register(ctx, fields)
	c.metrics.IncCall(loyaltyapi.CallRegister, callOutcome(err))
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error_code", pkgerrors.CodeOf(err)), "registration failed")
		c.finish(types.ErrorNotice(pkgerrors.UserMessage(err)), nil)
		return err
	}

	if fields.Role != enums.RoleMerchant {
		c.logg.Info(ctx, "registration succeeded")
		c.finish(types.SuccessNotice(msgAdminRegistered), func() {
			c.transitionLocked(ctx, enums.OnboardingPhaseLogin, 0)
		})
		return nil
	}

	result, err := c.api.Login(ctx, fields.Email, fields.Password)
	c.metrics.IncCall(loyaltyapi.CallLogin, callOutcome(err))
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error_code", pkgerrors.CodeOf(err)), "sign-in after registration failed")
		message := fmt.Sprintf("Your account was created but signing in failed: %s", pkgerrors.UserMessage(err))
		c.finish(types.ErrorNotice(message), func() {
			c.transitionLocked(ctx, enums.OnboardingPhaseLogin, 0)
		})
		return err
	}

	ctx = c.logg.WithUserID(ctx, result.User.ID)
	c.logg.Info(ctx, "merchant registered, starting business setup")
	c.finish(types.SuccessNotice(msgMerchantReady), func() {
		c.transient = result.Tokens
		c.draft = newDraft(fields.Email, fields.PhoneNumber)
		c.transitionLocked(ctx, enums.OnboardingPhaseAwaitingProfile, StepBasicInfo)
	})
	return nil
}

// Continue advances the wizard. Steps 1 and 2 only validate locally. Step 3
// submits the profile. Step 4 runs CompleteSetup.
func (c *Controller) Continue(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == enums.OnboardingPhaseAwaitingMedia && !c.busy {
		c.mu.Unlock()
		return c.CompleteSetup(ctx)
	}
	if c.busy {
		defer c.mu.Unlock()
		return c.conflictLocked(msgBusy)
	}
	if c.phase != enums.OnboardingPhaseAwaitingProfile {
		defer c.mu.Unlock()
		return c.conflictLocked("nothing to continue")
	}
	c.clearNoticeLocked()

	step := c.step
	if fields := validateStep(step, c.draft); len(fields) > 0 {
		err := stepValidationError(fields)
		c.notice = types.ErrorNotice(pkgerrors.UserMessage(err))
		c.fieldErrors = fields
		c.mu.Unlock()
		return err
	}
	if step < StepDetails {
		c.transitionLocked(ctx, enums.OnboardingPhaseAwaitingProfile, step+1)
		c.mu.Unlock()
		return nil
	}

	profile := c.draft.Profile()
	c.busy = true
	c.transitionLocked(ctx, enums.OnboardingPhaseCreatingProfile, StepDetails)
	c.mu.Unlock()

	return c.createProfile(ctx, profile)
}

func (c *Controller) createProfile(ctx context.Context, profile types.BusinessProfile) error {
	ctx = c.logg.WithStep(ctx, enums.OnboardingPhaseCreatingProfile.String(), StepDetails)

	token, err := c.resolver.AccessToken(ctx)
	var created *types.BusinessProfile
	if err == nil {
		created, err = c.api.CreateMerchant(ctx, token, profile)
		c.metrics.IncCall(loyaltyapi.CallCreateMerchant, callOutcome(err))
	}
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error_code", pkgerrors.CodeOf(err)), "business profile creation failed")
		c.finish(types.ErrorNotice(pkgerrors.UserMessage(err)), func() {
			c.transitionLocked(ctx, enums.OnboardingPhaseAwaitingProfile, StepDetails)
		})
		return err
	}

	ctx = c.logg.WithBusinessID(ctx, created.ID)
	c.logg.Info(ctx, "business profile created")
	c.finish(types.SuccessNotice(msgProfileCreated), func() {
		c.businessID = created.ID
		c.transitionLocked(ctx, enums.OnboardingPhaseAwaitingMedia, StepMedia)
	})
	return nil
}

// CompleteSetup uploads the logo, then the banner, to the created business.
// An asset already uploaded in an earlier attempt is not sent again.
func (c *Controller) CompleteSetup(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		defer c.mu.Unlock()
		return c.conflictLocked(msgBusy)
	}
	if c.phase != enums.OnboardingPhaseAwaitingMedia || c.businessID == "" {
		defer c.mu.Unlock()
		return c.conflictLocked("create the business profile before uploading media")
	}
	c.clearNoticeLocked()
	if !c.canCompleteLocked() {
		missing := map[string]string{}
		for _, kind := range uploadOrder {
			if _, ok := c.media[kind]; !ok {
				missing[kind.String()] = "is required"
			}
		}
		c.notice = types.ErrorNotice(msgMediaRequired)
		c.fieldErrors = missing
		c.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, msgMediaRequired).WithDetails(missing)
	}

	businessID := c.businessID
	pending := make([]enums.MediaKind, 0, len(uploadOrder))
	files := make(map[enums.MediaKind]types.MediaFile, len(uploadOrder))
	for _, kind := range uploadOrder {
		if !c.uploaded[kind] {
			pending = append(pending, kind)
			files[kind] = c.media[kind].file
		}
	}
	c.busy = true
	c.transitionLocked(ctx, enums.OnboardingPhaseUploadingMedia, StepMedia)
	c.mu.Unlock()

	ctx = c.logg.WithBusinessID(c.logg.WithStep(ctx, enums.OnboardingPhaseUploadingMedia.String(), StepMedia), businessID)
	for _, kind := range pending {
		if err := c.upload(ctx, businessID, kind, files[kind]); err != nil {
			message := fmt.Sprintf("%s upload failed: %s", kind.Label(), pkgerrors.UserMessage(err))
			c.finish(types.ErrorNotice(message), func() {
				c.fieldErrors = map[string]string{kind.String(): message}
				c.transitionLocked(ctx, enums.OnboardingPhaseAwaitingMedia, StepMedia)
			})
			return pkgerrors.Wrap(pkgerrors.CodeOf(err), err, message).WithDetails(map[string]any{"asset": kind})
		}
		c.mu.Lock()
		c.uploaded[kind] = true
		c.mu.Unlock()
	}

	c.logg.Info(ctx, "business setup submitted for review")
	c.finish(types.SuccessNotice(msgSubmittedInReview), func() {
		c.enterReviewLocked(ctx)
	})
	return nil
}

func (c *Controller) upload(ctx context.Context, businessID string, kind enums.MediaKind, file types.MediaFile) error {
	token, err := c.resolver.AccessToken(ctx)
	if err != nil {
		return err
	}
	err = c.api.UploadMedia(ctx, token, businessID, kind, file)
	c.metrics.IncCall(uploadCallName(kind), callOutcome(err))
	if err != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"asset":      kind,
			"error_code": pkgerrors.CodeOf(err),
		}), "media upload failed")
	}
	return err
}

// enterReviewLocked drops the media and the registration-scoped pair and
// schedules the return to the login form.
func (c *Controller) enterReviewLocked(ctx context.Context) {
	c.transitionLocked(ctx, enums.OnboardingPhaseReviewPending, StepMedia)
	c.media = make(map[enums.MediaKind]*stagedFile)
	c.transient = auth.TokenPair{}

	c.stopTimerLocked()
	c.generation++
	generation := c.generation
	c.resetTimer = c.afterFunc(c.limits.ResetDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != generation || c.phase != enums.OnboardingPhaseReviewPending {
			return
		}
		c.resetTimer = nil
		c.resetLocked(context.Background())
		c.logg.Info(context.Background(), "review notice elapsed, returning to login")
	})
}

// finish clears busy, sets the notice and applies the outcome under lock.
func (c *Controller) finish(notice types.Notice, apply func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.notice = notice
	if apply != nil {
		apply()
	}
}

func uploadCallName(kind enums.MediaKind) string {
	if kind == enums.MediaKindBanner {
		return loyaltyapi.CallUploadBanner
	}
	return loyaltyapi.CallUploadLogo
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case loyaltyapi.IsRejection(err):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailure
	}
}

package enums

// OnboardingPhase is the coarse state of the merchant registration wizard.
type OnboardingPhase string

const (
	OnboardingPhaseRegister        OnboardingPhase = "register"
	OnboardingPhaseLogin           OnboardingPhase = "login"
	OnboardingPhaseAwaitingProfile OnboardingPhase = "awaiting_profile"
	OnboardingPhaseCreatingProfile OnboardingPhase = "creating_profile"
	OnboardingPhaseAwaitingMedia   OnboardingPhase = "awaiting_media"
	OnboardingPhaseUploadingMedia  OnboardingPhase = "uploading_media"
	OnboardingPhaseReviewPending   OnboardingPhase = "review_pending"
)

// String implements fmt.Stringer.
func (p OnboardingPhase) String() string {
	return string(p)
}

// InWizard reports whether the phase belongs to the multi-step profile flow.
func (p OnboardingPhase) InWizard() bool {
	switch p {
	case OnboardingPhaseAwaitingProfile,
		OnboardingPhaseCreatingProfile,
		OnboardingPhaseAwaitingMedia,
		OnboardingPhaseUploadingMedia:
		return true
	}
	return false
}

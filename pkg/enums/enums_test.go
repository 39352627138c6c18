package enums

import "testing"

func TestParseRole(t *testing.T) {
	role, err := ParseRole("merchant")
	if err != nil || role != RoleMerchant {
		t.Fatalf("expected merchant, got %q err=%v", role, err)
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatal("expected invalid role error")
	}
}

func TestBusinessStatusBlocksLogin(t *testing.T) {
	cases := map[BusinessStatus]bool{
		BusinessStatusPending:   true,
		BusinessStatusRejected:  true,
		BusinessStatusApproved:  false,
		BusinessStatusSuspended: false,
	}
	for status, want := range cases {
		if got := status.BlocksLogin(); got != want {
			t.Fatalf("status %s expected BlocksLogin=%v", status, want)
		}
	}
}

func TestOnboardingPhaseInWizard(t *testing.T) {
	if OnboardingPhaseLogin.InWizard() || OnboardingPhaseReviewPending.InWizard() {
		t.Fatal("terminal and meta phases are not wizard phases")
	}
	if !OnboardingPhaseUploadingMedia.InWizard() {
		t.Fatal("uploading media is a wizard phase")
	}
}

func TestParseMediaKind(t *testing.T) {
	if kind, err := ParseMediaKind("banner"); err != nil || kind != MediaKindBanner {
		t.Fatalf("expected banner, got %q err=%v", kind, err)
	}
	if _, err := ParseMediaKind("avatar"); err == nil {
		t.Fatal("expected invalid media kind")
	}
	if MediaKindLogo.Label() != "Logo" || MediaKindBanner.Label() != "Banner" {
		t.Fatalf("unexpected labels %q %q", MediaKindLogo.Label(), MediaKindBanner.Label())
	}
}

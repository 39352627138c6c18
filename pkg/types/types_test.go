package types

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/loyalty-portal/pkg/enums"
)

func TestIdentityAcceptsDocumentID(t *testing.T) {
	var id Identity
	if err := json.Unmarshal([]byte(`{"_id":"u-1","email":"a@b.co","role":"admin"}`), &id); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if id.ID != "u-1" || id.Role != enums.RoleAdmin {
		t.Fatalf("unexpected identity %+v", id)
	}
	if !id.Valid() {
		t.Fatal("expected identity to be valid")
	}
}

func TestIdentityValidRequiresRole(t *testing.T) {
	if (Identity{Email: "a@b.co", Role: "owner"}).Valid() {
		t.Fatal("unknown role must be invalid")
	}
	if (Identity{Role: enums.RoleMerchant}).Valid() {
		t.Fatal("missing email must be invalid")
	}
}

func TestIdentityName(t *testing.T) {
	if got := (Identity{FirstName: "Ada", LastName: "Lovelace", Email: "a@b.co"}).Name(); got != "Ada Lovelace" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := (Identity{Email: "a@b.co"}).Name(); got != "a@b.co" {
		t.Fatalf("expected email fallback, got %q", got)
	}
}

func TestBusinessProfileAcceptsPlainID(t *testing.T) {
	var b BusinessProfile
	if err := json.Unmarshal([]byte(`{"id":"m-1","businessName":"Cafe","status":"approved"}`), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.ID != "m-1" || b.Status != enums.BusinessStatusApproved {
		t.Fatalf("unexpected business %+v", b)
	}
}

func TestDefaultWeeklyHours(t *testing.T) {
	hours := DefaultWeeklyHours()
	if hours[0].Day != "monday" || !hours[0].IsOpen {
		t.Fatalf("unexpected monday %+v", hours[0])
	}
	if hours[6].Day != "sunday" || hours[6].IsOpen {
		t.Fatalf("unexpected sunday %+v", hours[6])
	}
}

func TestNoticeIsExclusive(t *testing.T) {
	n := ErrorNotice("boom")
	if n.Error() != "boom" || n.Success() != "" {
		t.Fatalf("unexpected error notice %+v", n)
	}
	n = SuccessNotice("done")
	if n.Success() != "done" || n.Error() != "" {
		t.Fatalf("unexpected success notice %+v", n)
	}
	if !(Notice{}).IsZero() {
		t.Fatal("zero notice should report IsZero")
	}
}

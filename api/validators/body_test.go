package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/validate"
)

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func decode(t *testing.T, body string) (credentials, error) {
	t.Helper()
	var dest credentials
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := DecodeJSONBody(httptest.NewRecorder(), req, &dest)
	return dest, err
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(t, `{"email":"rosa@cafe.test","password":"secret1"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Email != "rosa@cafe.test" {
		t.Fatalf("unexpected decode %+v", got)
	}
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"email":"rosa@cafe.test","password":"x","role":"admin"}`,
		"two objects":   `{"email":"rosa@cafe.test","password":"x"}{"email":"b@c.d"}`,
		"oversized":     `{"email":"` + strings.Repeat("a", maxJSONBodyBytes) + `"}`,
		"malformed":     `{"email":`,
	}
	for name, body := range cases {
		if _, err := decode(t, body); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestDecodeJSONBodyRunsTagValidation(t *testing.T) {
	_, err := decode(t, `{"email":"not-an-email"}`)
	fields := validate.Fields(err)
	if fields["email"] == "" || fields["password"] == "" {
		t.Fatalf("expected email and password field errors, got %v", fields)
	}
}

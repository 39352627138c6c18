package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/loyalty-portal/internal/accounts"
	"github.com/angelmondragon/loyalty-portal/pkg/auth/refresh"
	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/kv"
	"github.com/angelmondragon/loyalty-portal/pkg/loyaltyapi"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:                 "stub-secret",
			Issuer:                 "loyalty-stub",
			ExpirationMinutes:      15,
			RefreshTokenTTLMinutes: 60,
		},
		Password: config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1},
		Onboarding: config.OnboardingConfig{
			LogoMaxBytes:   1024,
			BannerMaxBytes: 2048,
		},
		Stub: config.StubConfig{AdminEmail: "admin@loyalty.test", AdminPass: "admin-secret"},
	}
}

func newTestServer(t *testing.T) (*loyaltyapi.Client, accounts.Service) {
	t.Helper()
	cfg := testConfig()
	store := kv.NewMemoryStore()
	manager, err := refresh.NewManager(store, cfg.JWT)
	if err != nil {
		t.Fatalf("refresh manager: %v", err)
	}
	svc, err := accounts.NewService(context.Background(), accounts.Params{
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Stub:     cfg.Stub,
		Refresh:  manager,
	})
	if err != nil {
		t.Fatalf("account service: %v", err)
	}

	server := httptest.NewServer(NewRouter(cfg, nil, svc, store))
	t.Cleanup(server.Close)

	client, err := loyaltyapi.NewClient(server.URL+"/api", loyaltyapi.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return client, svc
}

func registration(email string, role enums.Role) types.RegistrationFields {
	return types.RegistrationFields{
		FirstName:   "Rosa",
		LastName:    "Diaz",
		Email:       email,
		Password:    "secret1",
		PhoneNumber: "555-0101",
		Role:        role,
	}
}

func profile() types.BusinessProfile {
	return types.BusinessProfile{
		BusinessName:  "Corner Cafe",
		BusinessType:  "restaurant",
		Category:      "coffee",
		Email:         "hello@cafe.test",
		Phone:         "555-0101",
		Description:   "Neighborhood coffee.",
		Address:       types.Address{Street: "1 Main St", City: "Austin", State: "TX", ZipCode: "73301", Country: "US"},
		BusinessHours: types.DefaultWeeklyHours(),
	}
}

func pngBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	return data
}

func TestHealthLive(t *testing.T) {
	router := NewRouter(testConfig(), nil, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestMerchantOnboardingOverHTTP(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	if _, err := client.Register(ctx, registration("rosa@cafe.test", enums.RoleMerchant)); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := client.Register(ctx, registration("rosa@cafe.test", enums.RoleMerchant))
	if pkgerrors.CodeOf(err) != pkgerrors.CodeConflict || pkgerrors.UserMessage(err) != "Email already registered" {
		t.Fatalf("expected conflict with server message, got %v", err)
	}

	login, err := client.Login(ctx, "rosa@cafe.test", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	bearer := login.Tokens.AccessToken

	created, err := client.CreateMerchant(ctx, bearer, profile())
	if err != nil {
		t.Fatalf("create merchant: %v", err)
	}
	if created.Status != enums.BusinessStatusPending {
		t.Fatalf("expected pending business, got %s", created.Status)
	}

	logo := types.MediaFile{Name: "logo.png", ContentType: "image/png", Data: pngBytes(512)}
	if err := client.UploadLogo(ctx, bearer, created.ID, logo); err != nil {
		t.Fatalf("upload logo: %v", err)
	}
	big := types.MediaFile{Name: "logo.png", ContentType: "image/png", Data: pngBytes(4096)}
	if err := client.UploadLogo(ctx, bearer, created.ID, big); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected oversized logo rejection, got %v", err)
	}
	text := types.MediaFile{Name: "banner.png", ContentType: "image/png", Data: []byte("not an image at all")}
	if err := client.UploadBanner(ctx, bearer, created.ID, text); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected non-image rejection, got %v", err)
	}
	if err := client.UploadBanner(ctx, "garbage", created.ID, logo); pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized upload, got %v", err)
	}

	login, err = client.Login(ctx, "rosa@cafe.test", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.Business == nil || login.Business.LogoURL == "" {
		t.Fatalf("expected business with logo on login, got %+v", login.Business)
	}

	pair, err := client.RefreshToken(ctx, login.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.RefreshToken == login.Tokens.RefreshToken {
		t.Fatal("expected rotated refresh token")
	}
	if _, err := client.RefreshToken(ctx, login.Tokens.RefreshToken); pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected consumed refresh token to be rejected, got %v", err)
	}
}

func TestStatusChangeRequiresAdmin(t *testing.T) {
	client, svc := newTestServer(t)
	ctx := context.Background()

	if _, err := client.Register(ctx, registration("rosa@cafe.test", enums.RoleMerchant)); err != nil {
		t.Fatalf("register: %v", err)
	}
	merchant, err := client.Login(ctx, "rosa@cafe.test", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	created, err := client.CreateMerchant(ctx, merchant.Tokens.AccessToken, profile())
	if err != nil {
		t.Fatalf("create merchant: %v", err)
	}

	admin, err := client.Login(ctx, "admin@loyalty.test", "admin-secret")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if _, err := client.CreateMerchant(ctx, admin.Tokens.AccessToken, profile()); pkgerrors.CodeOf(err) != pkgerrors.CodeForbidden {
		t.Fatalf("expected admin to be refused a business, got %v", err)
	}

	router := NewRouter(testConfig(), nil, svc, nil)
	for _, tc := range []struct {
		name   string
		bearer string
		want   int
	}{
		{name: "merchant", bearer: merchant.Tokens.AccessToken, want: http.StatusForbidden},
		{name: "admin", bearer: admin.Tokens.AccessToken, want: http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/merchants/"+created.ID+"/status", strings.NewReader(`{"status":"approved"}`))
			req.Header.Set("Authorization", "Bearer "+tc.bearer)
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	login, err := client.Login(ctx, "rosa@cafe.test", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.Business.Status != enums.BusinessStatusApproved {
		t.Fatalf("expected approved business, got %s", login.Business.Status)
	}
}

func TestCreateMerchantValidatesProfile(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()
	if _, err := client.Register(ctx, registration("rosa@cafe.test", enums.RoleMerchant)); err != nil {
		t.Fatalf("register: %v", err)
	}
	login, err := client.Login(ctx, "rosa@cafe.test", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	incomplete := profile()
	incomplete.BusinessName = ""
	incomplete.Address.City = ""
	_, err = client.CreateMerchant(ctx, login.Tokens.AccessToken, incomplete)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginRateLimit(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	var err error
	for i := 0; i < 11; i++ {
		_, err = client.Login(ctx, "nobody@cafe.test", "wrong-password")
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeRateLimit {
		t.Fatalf("expected rate limit after repeated attempts, got %v", err)
	}
}

package onboarding

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/loyalty-portal/api/routes"
	"github.com/angelmondragon/loyalty-portal/internal/accounts"
	"github.com/angelmondragon/loyalty-portal/internal/session"
	"github.com/angelmondragon/loyalty-portal/pkg/auth/refresh"
	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/kv"
	"github.com/angelmondragon/loyalty-portal/pkg/loyaltyapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startStub(t *testing.T) (*loyaltyapi.Client, accounts.Service) {
	t.Helper()
	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:                 "stub-secret",
			Issuer:                 "loyalty-stub",
			ExpirationMinutes:      15,
			RefreshTokenTTLMinutes: 60,
		},
		Password:   config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1},
		Onboarding: config.OnboardingConfig{LogoMaxBytes: 5 << 20, BannerMaxBytes: 10 << 20},
	}
	store := kv.NewMemoryStore()
	manager, err := refresh.NewManager(store, cfg.JWT)
	require.NoError(t, err)
	svc, err := accounts.NewService(context.Background(), accounts.Params{
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Refresh:  manager,
	})
	require.NoError(t, err)

	server := httptest.NewServer(routes.NewRouter(cfg, nil, svc, nil))
	t.Cleanup(server.Close)

	client, err := loyaltyapi.NewClient(server.URL+"/api", loyaltyapi.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return client, svc
}

func TestMerchantOnboardingAgainstStub(t *testing.T) {
	client, svc := startStub(t)
	ctx := context.Background()
	timer := &manualTimer{}
	c, err := New(client, WithAfterFunc(timer.AfterFunc))
	require.NoError(t, err)

	require.NoError(t, c.Register(ctx, merchantFields()))
	require.Equal(t, enums.OnboardingPhaseAwaitingProfile, c.Phase())
	fillProfile(t, c)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Continue(ctx))
	}
	state := c.Snapshot()
	require.Equal(t, enums.OnboardingPhaseAwaitingMedia, state.Phase)
	businessID := state.BusinessID
	require.NotEmpty(t, businessID)

	require.Error(t, c.StageLogo(pngFile(6*1024*1024)))
	require.NoError(t, c.StageLogo(pngFile(2*1024*1024)))
	require.NoError(t, c.StageBanner(jpegFile(4*1024*1024)))
	require.NoError(t, c.CompleteSetup(ctx))
	assert.Equal(t, enums.OnboardingPhaseReviewPending, c.Phase())

	timer.Fire()
	assert.Equal(t, enums.OnboardingPhaseLogin, c.Phase())
	assert.Empty(t, c.Snapshot().BusinessID)

	sessions, err := session.New(client, kv.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, sessions.Initialize(ctx))

	_, err = sessions.Login(ctx, "rosa@cafe.test", "secret1")
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	assert.Equal(t, "Your business registration is pending approval.", sessions.Notice().Error())
	assert.False(t, sessions.IsAuthenticated())

	_, err = svc.SetBusinessStatus(ctx, businessID, enums.BusinessStatusApproved)
	require.NoError(t, err)

	identity, err := sessions.Login(ctx, "rosa@cafe.test", "secret1")
	require.NoError(t, err)
	assert.Equal(t, enums.RoleMerchant, identity.Role)
	assert.True(t, sessions.IsMerchant())
	business, ok := sessions.Business()
	require.True(t, ok)
	assert.Equal(t, businessID, business.ID)
	assert.NotEmpty(t, business.LogoURL)
	assert.NotEmpty(t, business.BannerURL)

	_, err = sessions.RefreshAccessToken(ctx)
	require.NoError(t, err)
	require.NoError(t, sessions.Logout(ctx))
	assert.False(t, sessions.IsAuthenticated())
}

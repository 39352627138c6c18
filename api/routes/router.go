package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/loyalty-portal/api/controllers"
	"github.com/angelmondragon/loyalty-portal/api/middleware"
	"github.com/angelmondragon/loyalty-portal/internal/accounts"
	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	"github.com/angelmondragon/loyalty-portal/pkg/kv"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
)

var (
	loginRateLimit    = middleware.RateLimitPolicy{Name: "login", Window: time.Minute, PerIP: 30, PerEmail: 10}
	registerRateLimit = middleware.RateLimitPolicy{Name: "register", Window: time.Minute, PerIP: 10}
)

// NewRouter builds the stub loyalty API. A nil counter disables rate limiting.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	accountService accounts.Service,
	counter kv.Counter,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Stub.CORSOrigins),
	)

	r.Get("/health/live", controllers.HealthLive(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginRateLimit, counter, logg)).
				Post("/login", controllers.AuthLogin(accountService, logg))
			r.With(middleware.RateLimit(registerRateLimit, counter, logg)).
				Post("/register", controllers.AuthRegister(accountService, logg))
			r.Post("/refresh-token", controllers.AuthRefresh(accountService, logg))
		})

		r.Route("/merchants", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Post("/", controllers.CreateMerchant(accountService, logg))
			r.Post("/{id}/logo", controllers.UploadMerchantMedia(accountService, enums.MediaKindLogo, cfg.Onboarding, logg))
			r.Post("/{id}/banner", controllers.UploadMerchantMedia(accountService, enums.MediaKindBanner, cfg.Onboarding, logg))
			r.With(middleware.RequireRole(logg, enums.RoleAdmin)).
				Patch("/{id}/status", controllers.SetMerchantStatus(accountService, logg))
		})
	})

	return r
}

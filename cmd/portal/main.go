package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelmondragon/loyalty-portal/internal/onboarding"
	"github.com/angelmondragon/loyalty-portal/internal/session"
	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/kv"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
	"github.com/angelmondragon/loyalty-portal/pkg/loyaltyapi"
	"github.com/angelmondragon/loyalty-portal/pkg/metrics"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

const usage = `usage: portal [-metrics] <command> [flags]

commands:
  login     sign in and persist the session
  logout    clear the persisted session
  whoami    show the signed-in identity and its menu
  refresh   exchange the stored refresh token for a new pair
  register  create an account
  onboard   register a merchant and submit the business profile
`

func main() {
	logg := logger.New(logger.Options{ServiceName: "portal", Output: os.Stderr})

	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}

	global := flag.NewFlagSet("portal", flag.ContinueOnError)
	global.SetOutput(os.Stderr)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	showMetrics := global.Bool("metrics", false, "print collected metrics on exit")
	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "portal",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, cleanup, err := bootstrap(ctx, cfg, logg, os.Stdout)
	if err != nil {
		logg.Error(ctx, "failed to start portal", err)
		os.Exit(1)
	}

	code := application.run(ctx, global.Arg(0), global.Args()[1:])
	if *showMetrics {
		if err := printMetrics(os.Stderr, application.registry); err != nil {
			logg.Error(ctx, "failed to gather metrics", err)
		}
	}
	cleanup()
	os.Exit(code)
}

// bootstrap wires the session store and the onboarding wizard against the
// configured loyalty API and persistence driver.
func bootstrap(ctx context.Context, cfg *config.Config, logg *logger.Logger, out io.Writer) (*app, func(), error) {
	store, err := kv.Open(ctx, cfg, logg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logg.Error(context.Background(), "error closing session storage", err)
		}
	}

	client, err := loyaltyapi.NewFromConfig(cfg.API, loyaltyapi.WithLogger(logg))
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	sess, err := session.New(client, store,
		session.WithKeys(session.KeysFromConfig(cfg.Storage)),
		session.WithLogger(logg),
		session.WithMetrics(metrics.NewSessionMetrics(registry)),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := sess.Initialize(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	wizardMetrics := metrics.NewOnboardingMetrics(registry)
	newWizard := func() (*onboarding.Controller, error) {
		return onboarding.New(client,
			onboarding.WithLogger(logg),
			onboarding.WithMetrics(wizardMetrics),
			onboarding.WithLimits(onboarding.LimitsFromConfig(cfg.Onboarding)),
			onboarding.WithPersistedCredentials(sess),
		)
	}

	return &app{
		session:   sess,
		newWizard: newWizard,
		registry:  registry,
		logg:      logg,
		out:       out,
	}, cleanup, nil
}

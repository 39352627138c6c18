package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/angelmondragon/loyalty-portal/api/routes"
	"github.com/angelmondragon/loyalty-portal/internal/accounts"
	"github.com/angelmondragon/loyalty-portal/pkg/auth/refresh"
	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/kv"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
	"github.com/angelmondragon/loyalty-portal/pkg/redis"
	"github.com/joho/godotenv"
)

type tokenStore interface {
	kv.ClosableStore
	kv.Counter
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "stubapi"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.LoadStub()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "stubapi",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openTokenStore(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open token store", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logg.Error(context.Background(), "error closing token store", err)
		}
	}()

	refreshManager, err := refresh.NewManager(store, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create refresh manager", err)
		os.Exit(1)
	}

	accountService, err := accounts.NewService(ctx, accounts.Params{
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Stub:     cfg.Stub,
		Refresh:  refreshManager,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create account service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Stub.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"auto_approve": cfg.Stub.AutoApprove,
	})
	logg.Info(runCtx, "starting stub api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, accountService, store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "stub api shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(runCtx, "stub api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "stub api server stopped")
}

// openTokenStore keeps refresh tokens and rate-limit counters in redis when
// one is configured, otherwise in process memory.
func openTokenStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (tokenStore, error) {
	if strings.TrimSpace(cfg.Redis.URL) == "" && strings.TrimSpace(cfg.Redis.Address) == "" {
		return kv.NewMemoryStore(), nil
	}
	client, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, err
	}
	return kv.NewRedisStore(client)
}

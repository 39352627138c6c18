package kv

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/db"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
	redisclient "github.com/angelmondragon/loyalty-portal/pkg/redis"
)

// Open builds the store selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (ClosableStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case config.StorageDriverMemory:
		return NewMemoryStore(), nil
	case config.StorageDriverSQLite, config.StorageDriverPostgres:
		client, err := db.New(ctx, cfg.Storage, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("open sql store: %w", err)
		}
		store, err := NewSQLStore(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("migrate sql store: %w", err)
		}
		return store, nil
	case config.StorageDriverRedis:
		client, err := redisclient.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return NewRedisStore(client)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

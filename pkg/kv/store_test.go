package kv

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/db"
	redisclient "github.com/angelmondragon/loyalty-portal/pkg/redis"
	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func newSQLStore(t *testing.T) (*SQLStore, *clock) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	store, err := NewSQLStore(context.Background(), db.NewFromGorm(conn))
	require.NoError(t, err)
	clk := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store.now = clk.Now
	return store, clk
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redisclient.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "lp")
	store, err := NewRedisStore(client)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "user")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "user", `{"email":"a@b.co"}`, 0))
	got, err := store.Get(ctx, "user")
	require.NoError(t, err)
	require.Equal(t, `{"email":"a@b.co"}`, got)

	require.NoError(t, store.Set(ctx, "user", "overwritten", 0))
	got, err = store.Get(ctx, "user")
	require.NoError(t, err)
	require.Equal(t, "overwritten", got)

	require.NoError(t, store.Set(ctx, "token", "t", 0))
	require.NoError(t, store.Del(ctx, "user", "token", "missing"))
	_, err = store.Get(ctx, "user")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "token")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Del(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	clk := &clock{now: time.Now()}
	store.now = clk.Now
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "refresh", "r", time.Minute))
	clk.now = clk.now.Add(time.Minute)
	_, err := store.Get(ctx, "refresh")
	require.True(t, errors.Is(err, ErrNotFound))
	require.Empty(t, store.Keys())
}

func exerciseCounter(t *testing.T, counter Counter) {
	t.Helper()
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		got, err := counter.IncrWithTTL(ctx, "rl:login", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestMemoryCounterResetsAfterWindow(t *testing.T) {
	store := NewMemoryStore()
	clk := &clock{now: time.Now()}
	store.now = clk.Now

	exerciseCounter(t, store)
	clk.now = clk.now.Add(time.Minute)
	got, err := store.IncrWithTTL(context.Background(), "rl:login", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), got)

	require.NoError(t, store.Set(context.Background(), "user", "{}", 0))
	_, err = store.IncrWithTTL(context.Background(), "user", 0)
	require.Error(t, err)
}

func TestRedisCounter(t *testing.T) {
	store, mr := newRedisStore(t)
	exerciseCounter(t, store)
	require.True(t, mr.Exists("lp:rl:login"))
	require.Equal(t, time.Minute, mr.TTL("lp:rl:login"))
}

func TestSQLStore(t *testing.T) {
	store, _ := newSQLStore(t)
	exerciseStore(t, store)
}

func TestSQLStoreExpiry(t *testing.T) {
	store, clk := newSQLStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "refresh", "r", time.Minute))
	clk.now = clk.now.Add(59 * time.Second)
	got, err := store.Get(ctx, "refresh")
	require.NoError(t, err)
	require.Equal(t, "r", got)

	clk.now = clk.now.Add(time.Second)
	_, err = store.Get(ctx, "refresh")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	store, mr := newRedisStore(t)
	exerciseStore(t, store)
	require.False(t, mr.Exists("lp:user"))
}

func TestOpenMemoryAndSQLite(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, &config.Config{Storage: config.StorageConfig{Driver: "memory"}}, nil)
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, mem)
	require.NoError(t, mem.Close())

	sqlStore, err := Open(ctx, &config.Config{Storage: config.StorageConfig{
		Driver:     config.StorageDriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "portal.db"),
	}}, nil)
	require.NoError(t, err)
	exerciseStore(t, sqlStore)
	require.NoError(t, sqlStore.Close())

	_, err = Open(ctx, &config.Config{Storage: config.StorageConfig{Driver: "indexeddb"}}, nil)
	require.Error(t, err)
}

func TestOpenRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := Open(context.Background(), &config.Config{
		Storage: config.StorageConfig{Driver: config.StorageDriverRedis},
		Redis:   config.RedisConfig{Address: mr.Addr(), Namespace: "portal"},
	}, nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(context.Background(), "accessToken", "a", 0))
	require.True(t, mr.Exists("portal:accessToken"))
}

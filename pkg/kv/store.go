// Package kv is the durable string key-value storage behind the session
// store. Writers are not coordinated: the last write wins.
package kv

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the minimal durable key-value surface. A zero ttl never expires.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// ClosableStore is a Store owning a connection or file handle.
type ClosableStore interface {
	Store
	io.Closer
}

// Counter is a store that can maintain expiring integer counters.
type Counter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

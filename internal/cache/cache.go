// Package cache provides the key-value stores backing the embedding cache.
package cache

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when the key has no value.
var ErrKeyNotFound = errors.New("cache: key not found")

// Store is a minimal key-value store. Entries are independent and idempotent
// to recompute, so implementations may evict freely.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Package cache provides the key/value side cache used by the repositories and
// the session layer, with a Redis store, an in-process ristretto store, and a
// fail-soft wrapper that turns every store error into a logged miss.
package cache

import (
	"context"
	"time"
)

// Store is the raw cache contract. Implementations surface their errors.
type Store interface {
	// Get retrieves a value by key. The boolean indicates a cache hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL. A zero TTL means the
	// entry has no automatic expiration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

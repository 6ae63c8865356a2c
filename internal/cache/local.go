package cache

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

var errNegativeTTL = errors.New("cache: negative ttl")

// ErrNotStored is returned when the local cache drops or refuses a value.
var ErrNotStored = errors.New("cache: value not stored")

// Local is an in-process Store backed by ristretto, used when no Redis is
// configured. Every entry has a cost of 1.
type Local struct {
	rc *ristretto.Cache[string, []byte]
}

// NewLocal creates a local store holding at most maxEntries values.
func NewLocal(maxEntries int64) (*Local, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Costs count entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Local{rc: rc}, nil
}

// Get retrieves a value by key.
func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.rc.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Set stores a value under key with the given TTL.
func (l *Local) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		return errNegativeTTL
	}
	if !l.rc.SetWithTTL(key, bytes.Clone(val), 1, ttl) {
		return ErrNotStored
	}
	l.rc.Wait()
	// Admission runs asynchronously; a rejected value is absent after Wait.
	if _, ok := l.rc.Get(key); !ok {
		return ErrNotStored
	}
	return nil
}

// Delete removes the keys.
func (l *Local) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		l.rc.Del(key)
	}
	return nil
}

// Close releases the ristretto goroutines.
func (l *Local) Close() {
	l.rc.Close()
}

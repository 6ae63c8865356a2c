// Package repositories fronts the persistence backend with the side cache.
// Reads go to the cache first and fall back to the backend; writes go to the
// backend first and only on success delete the cache keys they made stale.
// Cache failures never change the outcome of an operation.
package repositories

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vidfriends/shorts/internal/cache"
	"github.com/vidfriends/shorts/internal/models"
)

// loadTimeout bounds a shared backend load once it no longer follows the
// context of the caller that started it.
const loadTimeout = 30 * time.Second

// readThrough serves cache-first reads. Concurrent misses on the same key
// share one backend load.
type readThrough struct {
	cache *cache.Safe
	ttl   time.Duration
	group singleflight.Group
}

func load[T any](ctx context.Context, rt *readThrough, key string, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	if rt.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	// The load is shared, so it must outlive whichever caller started it.
	ch := rt.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		val, err := fetch(lctx)
		if err != nil {
			return nil, err
		}
		rt.cache.SetJSON(lctx, key, val, rt.ttl)
		return val, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// kind maps a backend error onto the closed set of error kinds. Anything
// outside the set becomes ErrInternal with the cause kept for logging.
func kind(op string, err error) error {
	if err == nil {
		return nil
	}
	if models.IsKnown(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrInternal, err)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

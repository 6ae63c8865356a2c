package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/metrics"
)

// Safe wraps a Store and never returns errors. Every store failure is logged
// at warn level, counted, and reported to the caller as a miss.
type Safe struct {
	store   Store
	metrics metrics.Recorder
}

// NewSafe wraps store. A nil recorder discards measurements.
func NewSafe(store Store, rec metrics.Recorder) *Safe {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Safe{store: store, metrics: rec}
}

// Get returns the raw bytes under key and whether the lookup was a hit.
func (s *Safe) Get(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.fail(ctx, "get", key, err)
		return nil, false
	}
	if !ok {
		s.metrics.RecordCache("get", metrics.ResultMiss)
		return nil, false
	}
	s.metrics.RecordCache("get", metrics.ResultHit)
	return val, true
}

// Set stores val under key with ttl. Zero means no expiry.
func (s *Safe) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if err := s.store.Set(ctx, key, val, ttl); err != nil {
		s.fail(ctx, "set", key, err)
		return
	}
	s.metrics.RecordCache("set", metrics.ResultOK)
}

// Delete removes the keys.
func (s *Safe) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.store.Delete(ctx, keys...); err != nil {
		s.fail(ctx, "delete", keys[0], err, slog.Int("keys", len(keys)))
		return
	}
	s.metrics.RecordCache("delete", metrics.ResultOK)
}

// GetJSON decodes the value under key into dst. Undecodable entries are
// dropped and reported as a miss.
func (s *Safe) GetJSON(ctx context.Context, key string, dst any) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.fail(ctx, "decode", key, err)
		s.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key with ttl.
func (s *Safe) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.fail(ctx, "encode", key, err)
		return
	}
	s.Set(ctx, key, raw, ttl)
}

func (s *Safe) fail(ctx context.Context, op, key string, err error, attrs ...any) {
	s.metrics.RecordCache(op, metrics.ResultError)
	args := append([]any{
		slog.String("op", op),
		slog.String("key", key),
		slog.Any("error", err),
	}, attrs...)
	logging.FromContext(ctx).Warn("cache operation failed", args...)
}

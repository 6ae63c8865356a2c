// Package storage provides byte storage for video blobs behind a small
// object-store contract, backed by S3 or by memory.
package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a key holds no object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore stores opaque objects by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

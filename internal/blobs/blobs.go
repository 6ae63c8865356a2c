// Package blobs authorizes and performs operations on video content. Every
// call must present a capability token for the exact blob or user it acts on.
package blobs

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/models"
	"github.com/vidfriends/shorts/internal/storage"
)

// Verifier checks capability tokens.
type Verifier interface {
	Verify(token, resourceID string) bool
}

// Service stores blobs under keys derived from their short identifiers.
type Service struct {
	store  storage.ObjectStore
	tokens Verifier
}

// NewService constructs a blob service over store.
func NewService(store storage.ObjectStore, tokens Verifier) *Service {
	return &Service{store: store, tokens: tokens}
}

// Upload stores data for blobID. Re-uploading identical bytes succeeds;
// different bytes for an existing blob are a conflict.
func (s *Service) Upload(ctx context.Context, blobID, token string, data []byte) error {
	key, err := s.authorize(blobID, token)
	if err != nil {
		return err
	}

	existing, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		if sha256.Sum256(existing) == sha256.Sum256(data) {
			return nil
		}
		return models.ErrConflict
	case !errors.Is(err, storage.ErrObjectNotFound):
		return fmt.Errorf("read blob %s: %w: %w", blobID, models.ErrInternal, err)
	}

	if err := s.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write blob %s: %w: %w", blobID, models.ErrInternal, err)
	}
	logging.FromContext(ctx).Info("blob stored", slog.String("blobId", blobID), slog.Int("bytes", len(data)))
	return nil
}

// Download returns the bytes stored for blobID.
func (s *Service) Download(ctx context.Context, blobID, token string) ([]byte, error) {
	key, err := s.authorize(blobID, token)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("read blob %s: %w: %w", blobID, models.ErrInternal, err)
	}
	return data, nil
}

// Delete removes the blob stored for blobID.
func (s *Service) Delete(ctx context.Context, blobID, token string) error {
	key, err := s.authorize(blobID, token)
	if err != nil {
		return err
	}

	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("stat blob %s: %w: %w", blobID, models.ErrInternal, err)
	}
	if !ok {
		return models.ErrNotFound
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete blob %s: %w: %w", blobID, models.ErrInternal, err)
	}
	return nil
}

// DeleteAll removes every blob owned by userID. The token must be scoped to
// the user id.
func (s *Service) DeleteAll(ctx context.Context, userID, token string) error {
	if userID == "" {
		return models.ErrBadRequest
	}
	if !s.tokens.Verify(token, userID) {
		return models.ErrForbidden
	}

	if err := s.store.DeletePrefix(ctx, userID+"/"); err != nil {
		return fmt.Errorf("delete blobs of %s: %w: %w", userID, models.ErrInternal, err)
	}
	return nil
}

func (s *Service) authorize(blobID, token string) (string, error) {
	key, err := ObjectKey(blobID)
	if err != nil {
		return "", err
	}
	if !s.tokens.Verify(token, blobID) {
		return "", models.ErrForbidden
	}
	return key, nil
}

// ObjectKey maps a blob id of the form owner+suffix to the object key
// owner/suffix, so all blobs of an owner share one prefix.
func ObjectKey(blobID string) (string, error) {
	owner, ok := models.OwnerFromShortID(blobID)
	if !ok {
		return "", models.ErrBadRequest
	}
	return owner + "/" + blobID[len(owner)+len(models.ShortIDSeparator):], nil
}

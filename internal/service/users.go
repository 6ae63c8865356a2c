package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/models"
)

// Users validates user operations.
type Users struct {
	repo UserStore
}

// NewUsers constructs the users service.
func NewUsers(repo UserStore) *Users {
	return &Users{repo: repo}
}

// Create registers a user. Every field is required, and the id may not
// contain a path separator because it prefixes the user's blob keys.
func (s *Users) Create(ctx context.Context, user models.User) (string, error) {
	logging.FromContext(ctx).Info("create user", slog.String("userId", user.ID))

	if user.ID == "" || user.Password == "" || user.Email == "" || user.DisplayName == "" {
		return "", models.ErrBadRequest
	}
	if strings.Contains(user.ID, "/") {
		return "", models.ErrBadRequest
	}
	return s.repo.Create(ctx, user)
}

// Get returns the user when pwd matches.
func (s *Users) Get(ctx context.Context, userID, pwd string) (models.User, error) {
	if userID == "" {
		return models.User{}, models.ErrBadRequest
	}
	return s.repo.Get(ctx, userID, pwd)
}

// Update applies patch to the user. The patch may not rename the user.
func (s *Users) Update(ctx context.Context, userID, pwd string, patch models.UserPatch) (models.User, error) {
	logging.FromContext(ctx).Info("update user", slog.String("userId", userID))

	if userID == "" || pwd == "" {
		return models.User{}, models.ErrBadRequest
	}
	if patch.ID != nil && *patch.ID != userID {
		return models.User{}, models.ErrBadRequest
	}
	return s.repo.Update(ctx, userID, pwd, patch)
}

// Delete removes the user and schedules the removal of their content.
func (s *Users) Delete(ctx context.Context, userID, pwd string) (models.User, error) {
	logging.FromContext(ctx).Info("delete user", slog.String("userId", userID))

	if userID == "" || pwd == "" {
		return models.User{}, models.ErrBadRequest
	}
	return s.repo.Delete(ctx, userID, pwd)
}

// Search returns redacted users whose id contains pattern.
func (s *Users) Search(ctx context.Context, pattern string) ([]models.User, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, models.ErrBadRequest
	}
	return s.repo.Search(ctx, pattern)
}

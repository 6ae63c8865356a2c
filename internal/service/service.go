// Package service enforces the authorization rules of the users and shorts
// operations before delegating to the repositories. Repositories trust that
// every call reaching them has already been authorized here.
package service

import (
	"context"

	"github.com/vidfriends/shorts/internal/models"
)

// UserStore is the repository surface used by the services.
type UserStore interface {
	Create(ctx context.Context, user models.User) (string, error)
	Lookup(ctx context.Context, userID string) (models.User, error)
	Get(ctx context.Context, userID, pwd string) (models.User, error)
	Update(ctx context.Context, userID, pwd string, patch models.UserPatch) (models.User, error)
	Delete(ctx context.Context, userID, pwd string) (models.User, error)
	Search(ctx context.Context, pattern string) ([]models.User, error)
}

// ShortStore is the repository surface used by the shorts service.
type ShortStore interface {
	CreateShort(ctx context.Context, short models.Short) (models.Short, error)
	GetShort(ctx context.Context, shortID string) (models.Short, error)
	DeleteShort(ctx context.Context, short models.Short) error
	GetShorts(ctx context.Context, ownerID string) ([]string, error)
	Follow(ctx context.Context, follower, followee string, isFollowing bool) error
	Followers(ctx context.Context, userID string) ([]string, error)
	Like(ctx context.Context, userID string, isLiked bool, short models.Short) error
	Likes(ctx context.Context, shortID string) ([]string, error)
	GetFeed(ctx context.Context, userID string) ([]string, error)
	DeleteAllShorts(ctx context.Context, userID string) error
}

// Tokens issues and verifies capability tokens.
type Tokens interface {
	Issue(resourceID string) string
	Verify(token, resourceID string) bool
}

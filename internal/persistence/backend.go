// Package persistence holds the durable stores of record for users, shorts,
// follow edges and like edges. Every variant returns models.ErrNotFound and
// models.ErrConflict for the matching conditions and wraps everything else.
package persistence

import (
	"context"

	"github.com/vidfriends/shorts/internal/models"
)

// Backend is the storage contract shared by the relational, document and
// in-memory variants.
type Backend interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, userID string) (models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	DeleteUser(ctx context.Context, userID string) error
	// SearchUsers matches pattern as a case-insensitive substring of the user id.
	SearchUsers(ctx context.Context, pattern string) ([]models.User, error)

	CreateShort(ctx context.Context, short models.Short) error
	GetShort(ctx context.Context, shortID string) (models.Short, error)
	// DeleteShort removes the short together with every like edge referencing it.
	DeleteShort(ctx context.Context, shortID string) error
	// ShortsByOwner lists the owner's shorts, newest first.
	ShortsByOwner(ctx context.Context, ownerID string) ([]models.Short, error)

	// Follow inserts the edge and reports whether it was absent before.
	Follow(ctx context.Context, follower, followee string) (bool, error)
	// Unfollow deletes the edge and reports whether it was present.
	Unfollow(ctx context.Context, follower, followee string) (bool, error)
	Followers(ctx context.Context, userID string) ([]string, error)
	Followees(ctx context.Context, userID string) ([]string, error)

	// Like inserts the edge and increments the short's counter atomically.
	// It reports whether the edge was absent before.
	Like(ctx context.Context, like models.Like) (bool, error)
	// Unlike deletes the edge and decrements the short's counter atomically.
	// It reports whether the edge was present.
	Unlike(ctx context.Context, userID, shortID string) (bool, error)
	Likes(ctx context.Context, shortID string) ([]string, error)

	// DeleteUserData removes every short owned by the user, every like edge
	// the user gave or received, and every follow edge touching the user.
	DeleteUserData(ctx context.Context, userID string) (Cascade, error)

	Close(ctx context.Context) error
}

// Cascade lists the identifiers affected by DeleteUserData so callers can
// invalidate derived views precisely.
type Cascade struct {
	// Shorts owned by the user and now deleted.
	Shorts []string
	// Followers are users that followed the deleted user.
	Followers []string
	// Followees are users the deleted user followed.
	Followees []string
	// Unliked are shorts of other owners that lost a like from the user.
	Unliked []string
}

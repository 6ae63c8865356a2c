package handlers

import (
	"context"
	"time"

	"github.com/vidfriends/shorts/internal/models"
)

// UserService captures the user operations exposed over HTTP.
type UserService interface {
	Create(ctx context.Context, user models.User) (string, error)
	Get(ctx context.Context, userID, pwd string) (models.User, error)
	Update(ctx context.Context, userID, pwd string, patch models.UserPatch) (models.User, error)
	Delete(ctx context.Context, userID, pwd string) (models.User, error)
	Search(ctx context.Context, pattern string) ([]models.User, error)
}

// ShortService captures the short, follow and like operations exposed over HTTP.
type ShortService interface {
	CreateShort(ctx context.Context, userID, pwd string) (models.Short, error)
	GetShort(ctx context.Context, shortID string) (models.Short, error)
	DeleteShort(ctx context.Context, shortID, pwd string) error
	GetShorts(ctx context.Context, userID string) ([]string, error)
	Follow(ctx context.Context, follower, followee string, isFollowing bool, pwd string) error
	Followers(ctx context.Context, userID, pwd string) ([]string, error)
	Like(ctx context.Context, shortID, userID string, isLiked bool, pwd string) error
	Likes(ctx context.Context, shortID, pwd string) ([]string, error)
	GetFeed(ctx context.Context, userID, pwd string) ([]string, error)
	DeleteAllShorts(ctx context.Context, userID, pwd, token string) error
}

// BlobService captures token-authorized blob operations.
type BlobService interface {
	Upload(ctx context.Context, blobID, token string, data []byte) error
	Download(ctx context.Context, blobID, token string) ([]byte, error)
	Delete(ctx context.Context, blobID, token string) error
	DeleteAll(ctx context.Context, userID, token string) error
}

// SessionManager opens and validates login sessions.
type SessionManager interface {
	Login(ctx context.Context, userID, pwd string) (models.Session, error)
	Validate(ctx context.Context, sessionID, expectedUserID string) (models.Session, error)
	TTL() time.Duration
}

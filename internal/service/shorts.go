package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/models"
)

// Shorts validates short, follow and like operations.
type Shorts struct {
	users    UserStore
	repo     ShortStore
	tokens   Tokens
	blobBase string
	now      func() time.Time
}

// NewShorts constructs the shorts service. blobBase is the public location
// under which blob URLs are minted.
func NewShorts(users UserStore, repo ShortStore, tokens Tokens, blobBase string) *Shorts {
	return &Shorts{
		users:    users,
		repo:     repo,
		tokens:   tokens,
		blobBase: strings.TrimSuffix(blobBase, "/"),
		now:      time.Now,
	}
}

// CreateShort publishes a new short for userID and returns it with a blob
// URL that carries the upload token.
func (s *Shorts) CreateShort(ctx context.Context, userID, pwd string) (models.Short, error) {
	logging.FromContext(ctx).Info("create short", slog.String("userId", userID))

	if userID == "" {
		return models.Short{}, models.ErrBadRequest
	}
	if _, err := s.users.Get(ctx, userID, pwd); err != nil {
		return models.Short{}, err
	}

	short, err := s.repo.CreateShort(ctx, models.NewShort(userID, s.blobBase, s.now()))
	if err != nil {
		return models.Short{}, err
	}
	return short.WithBlobToken(s.tokens.Issue(short.ID)), nil
}

// GetShort returns the short with its current like count.
func (s *Shorts) GetShort(ctx context.Context, shortID string) (models.Short, error) {
	if shortID == "" {
		return models.Short{}, models.ErrBadRequest
	}
	short, err := s.repo.GetShort(ctx, shortID)
	if err != nil {
		return models.Short{}, err
	}
	return short.WithBlobToken(s.tokens.Issue(short.ID)), nil
}

// DeleteShort removes a short. pwd must be the owner's password.
func (s *Shorts) DeleteShort(ctx context.Context, shortID, pwd string) error {
	logging.FromContext(ctx).Info("delete short", slog.String("shortId", shortID))

	short, err := s.fetch(ctx, shortID)
	if err != nil {
		return err
	}
	if _, err := s.users.Get(ctx, short.OwnerID, pwd); err != nil {
		return err
	}
	return s.repo.DeleteShort(ctx, short)
}

// GetShorts lists the shorts of an existing user.
func (s *Shorts) GetShorts(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, models.ErrBadRequest
	}
	if _, err := s.users.Lookup(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.GetShorts(ctx, userID)
}

// Follow makes follower follow or unfollow followee. pwd authenticates the
// follower and the followee must exist.
func (s *Shorts) Follow(ctx context.Context, follower, followee string, isFollowing bool, pwd string) error {
	logging.FromContext(ctx).Info("follow",
		slog.String("follower", follower),
		slog.String("followee", followee),
		slog.Bool("isFollowing", isFollowing),
	)

	if follower == "" || followee == "" || follower == followee {
		return models.ErrBadRequest
	}
	if _, err := s.users.Get(ctx, follower, pwd); err != nil {
		return err
	}
	if _, err := s.users.Lookup(ctx, followee); err != nil {
		return err
	}
	return s.repo.Follow(ctx, follower, followee, isFollowing)
}

// Followers lists the followers of userID, authenticated by pwd.
func (s *Shorts) Followers(ctx context.Context, userID, pwd string) ([]string, error) {
	if userID == "" {
		return nil, models.ErrBadRequest
	}
	if _, err := s.users.Get(ctx, userID, pwd); err != nil {
		return nil, err
	}
	return s.repo.Followers(ctx, userID)
}

// Like records or removes userID's like on shortID, authenticated by pwd.
func (s *Shorts) Like(ctx context.Context, shortID, userID string, isLiked bool, pwd string) error {
	logging.FromContext(ctx).Info("like",
		slog.String("shortId", shortID),
		slog.String("userId", userID),
		slog.Bool("isLiked", isLiked),
	)

	if userID == "" {
		return models.ErrBadRequest
	}
	short, err := s.fetch(ctx, shortID)
	if err != nil {
		return err
	}
	if _, err := s.users.Get(ctx, userID, pwd); err != nil {
		return err
	}
	return s.repo.Like(ctx, userID, isLiked, short)
}

// Likes lists the users who liked shortID. pwd must be the owner's password.
func (s *Shorts) Likes(ctx context.Context, shortID, pwd string) ([]string, error) {
	short, err := s.fetch(ctx, shortID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.Get(ctx, short.OwnerID, pwd); err != nil {
		return nil, err
	}
	return s.repo.Likes(ctx, shortID)
}

// GetFeed returns the shorts of the users userID follows, newest first.
func (s *Shorts) GetFeed(ctx context.Context, userID, pwd string) ([]string, error) {
	if userID == "" {
		return nil, models.ErrBadRequest
	}
	if _, err := s.users.Get(ctx, userID, pwd); err != nil {
		return nil, err
	}
	return s.repo.GetFeed(ctx, userID)
}

// DeleteAllShorts removes all content of userID. Authorization is the
// capability token scoped to the user id; the password is not consulted so
// the call still works once the user record is gone.
func (s *Shorts) DeleteAllShorts(ctx context.Context, userID, pwd, token string) error {
	logging.FromContext(ctx).Info("delete all shorts", slog.String("userId", userID))

	if userID == "" {
		return models.ErrBadRequest
	}
	if !s.tokens.Verify(token, userID) {
		return models.ErrForbidden
	}
	return s.repo.DeleteAllShorts(ctx, userID)
}

func (s *Shorts) fetch(ctx context.Context, shortID string) (models.Short, error) {
	if shortID == "" {
		return models.Short{}, models.ErrBadRequest
	}
	return s.repo.GetShort(ctx, shortID)
}

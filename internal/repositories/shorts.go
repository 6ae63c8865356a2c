package repositories

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vidfriends/shorts/internal/cache"
	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/models"
	"github.com/vidfriends/shorts/internal/persistence"
)

// BlobRemover deletes stored video content. Each call carries a capability
// token scoped to the blob or user being removed.
type BlobRemover interface {
	Delete(ctx context.Context, blobID, token string) error
	DeleteAll(ctx context.Context, userID, token string) error
}

// TokenIssuer mints capability tokens for resource identifiers.
type TokenIssuer interface {
	Issue(resourceID string) string
}

// shortRef is the cached summary of a short used for owner lists and feeds.
type shortRef struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// ShortsRepository provides consistent short, follow and like operations
// over a persistence backend and the side cache.
type ShortsRepository struct {
	backend persistence.Backend
	cache   *cache.Safe
	blobs   BlobRemover
	tokens  TokenIssuer
	reads   readThrough
}

// NewShortsRepository constructs the repository. ttl bounds every cached view.
func NewShortsRepository(backend persistence.Backend, c *cache.Safe, blobs BlobRemover, tokens TokenIssuer, ttl time.Duration) *ShortsRepository {
	return &ShortsRepository{
		backend: backend,
		cache:   c,
		blobs:   blobs,
		tokens:  tokens,
		reads:   readThrough{cache: c, ttl: ttl},
	}
}

// CreateShort persists the short with a zeroed like counter and primes its
// cache entry.
func (r *ShortsRepository) CreateShort(ctx context.Context, short models.Short) (models.Short, error) {
	short.TotalLikes = 0
	if err := r.backend.CreateShort(ctx, short); err != nil {
		return models.Short{}, kind("create short", err)
	}

	r.cache.Delete(ctx, shortCreated(short.ID, short.OwnerID, r.followersForInvalidation(ctx, short.OwnerID))...)
	r.cache.SetJSON(ctx, cache.ShortKey(short.ID), short, r.reads.ttl)
	return short, nil
}

// GetShort returns the short with its like count taken from the likes view
// rather than from the cached snapshot.
func (r *ShortsRepository) GetShort(ctx context.Context, shortID string) (models.Short, error) {
	short, err := load(ctx, &r.reads, cache.ShortKey(shortID), func(ctx context.Context) (models.Short, error) {
		return r.backend.GetShort(ctx, shortID)
	})
	if err != nil {
		return models.Short{}, kind("get short", err)
	}

	likes, err := r.Likes(ctx, shortID)
	if err != nil {
		return models.Short{}, err
	}
	return short.WithLikes(int64(len(likes))), nil
}

// DeleteShort removes the short and its like edges, then its blob.
func (r *ShortsRepository) DeleteShort(ctx context.Context, short models.Short) error {
	if err := r.backend.DeleteShort(ctx, short.ID); err != nil {
		return kind("delete short", err)
	}

	if err := r.blobs.Delete(ctx, short.ID, r.tokens.Issue(short.ID)); err != nil {
		logging.FromContext(ctx).Warn("delete short blob", slog.String("shortId", short.ID), slog.Any("error", err))
	}

	r.cache.Delete(ctx, shortDeleted(short.ID, short.OwnerID, r.followersForInvalidation(ctx, short.OwnerID))...)
	return nil
}

// GetShorts lists the ids of the owner's shorts, newest first.
func (r *ShortsRepository) GetShorts(ctx context.Context, ownerID string) ([]string, error) {
	refs, err := r.shortRefs(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// Follow inserts or removes the edge follower -> followee. Repeating a
// present edge or removing an absent one succeeds without effect.
func (r *ShortsRepository) Follow(ctx context.Context, follower, followee string, isFollowing bool) error {
	var err error
	if isFollowing {
		_, err = r.backend.Follow(ctx, follower, followee)
	} else {
		_, err = r.backend.Unfollow(ctx, follower, followee)
	}
	if err != nil {
		return kind("follow", err)
	}

	r.cache.Delete(ctx, followChanged(follower, followee)...)
	return nil
}

// Followers lists the ids of users following userID.
func (r *ShortsRepository) Followers(ctx context.Context, userID string) ([]string, error) {
	ids, err := load(ctx, &r.reads, cache.FollowersKey(userID), func(ctx context.Context) ([]string, error) {
		ids, err := r.backend.Followers(ctx, userID)
		return nonNil(ids), err
	})
	return ids, kind("followers", err)
}

// Followees lists the ids of users userID follows.
func (r *ShortsRepository) Followees(ctx context.Context, userID string) ([]string, error) {
	ids, err := load(ctx, &r.reads, cache.FolloweesKey(userID), func(ctx context.Context) ([]string, error) {
		ids, err := r.backend.Followees(ctx, userID)
		return nonNil(ids), err
	})
	return ids, kind("followees", err)
}

// Like inserts or removes the like edge of userID on short. The backend
// adjusts the short's counter in the same operation.
func (r *ShortsRepository) Like(ctx context.Context, userID string, isLiked bool, short models.Short) error {
	var err error
	if isLiked {
		_, err = r.backend.Like(ctx, models.NewLike(userID, short.ID, short.OwnerID))
	} else {
		_, err = r.backend.Unlike(ctx, userID, short.ID)
	}
	if err != nil {
		return kind("like", err)
	}

	r.cache.Delete(ctx, likeChanged(short.ID)...)
	return nil
}

// Likes lists the ids of users who liked shortID.
func (r *ShortsRepository) Likes(ctx context.Context, shortID string) ([]string, error) {
	ids, err := load(ctx, &r.reads, cache.LikesShortKey(shortID), func(ctx context.Context) ([]string, error) {
		ids, err := r.backend.Likes(ctx, shortID)
		return nonNil(ids), err
	})
	return ids, kind("likes", err)
}

// GetFeed returns the ids of shorts posted by the users userID follows,
// newest first. The merged feed is cached and is retired whenever the
// user's follow set changes or a followee creates or deletes a short.
func (r *ShortsRepository) GetFeed(ctx context.Context, userID string) ([]string, error) {
	ctx, span := logging.StartSpan(ctx, "shorts.get_feed")
	defer span.End()

	ids, err := load(ctx, &r.reads, cache.FeedKey(userID), func(ctx context.Context) ([]string, error) {
		return r.buildFeed(ctx, userID)
	})
	return ids, kind("feed", err)
}

// DeleteAllShorts removes every short, like edge and follow edge of the user,
// then every blob the user owns.
func (r *ShortsRepository) DeleteAllShorts(ctx context.Context, userID string) error {
	ctx, span := logging.StartSpan(ctx, "shorts.delete_all")
	defer span.End()

	cascade, err := r.backend.DeleteUserData(ctx, userID)
	if err != nil {
		return kind("delete user data", err)
	}

	if err := r.blobs.DeleteAll(ctx, userID, r.tokens.Issue(userID)); err != nil {
		logging.FromContext(ctx).Warn("delete user blobs", slog.String("userId", userID), slog.Any("error", err))
	}

	r.cache.Delete(ctx, userDataDeleted(userID, cascade)...)
	logging.FromContext(ctx).Info("user data removed",
		slog.String("userId", userID),
		slog.Int("shorts", len(cascade.Shorts)),
		slog.Int("followers", len(cascade.Followers)),
		slog.Int("followees", len(cascade.Followees)),
	)
	return nil
}

func (r *ShortsRepository) shortRefs(ctx context.Context, ownerID string) ([]shortRef, error) {
	refs, err := load(ctx, &r.reads, cache.ShortsUserKey(ownerID), func(ctx context.Context) ([]shortRef, error) {
		shorts, err := r.backend.ShortsByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		refs := make([]shortRef, 0, len(shorts))
		for _, s := range shorts {
			refs = append(refs, shortRef{ID: s.ID, Timestamp: s.Timestamp})
		}
		return refs, nil
	})
	return refs, kind("shorts by owner", err)
}

// buildFeed fans out one owner query per followee and merges the results.
func (r *ShortsRepository) buildFeed(ctx context.Context, userID string) ([]string, error) {
	followees, err := r.Followees(ctx, userID)
	if err != nil {
		return nil, err
	}

	perFollowee := make([][]shortRef, len(followees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, followee := range followees {
		g.Go(func() error {
			refs, err := r.shortRefs(gctx, followee)
			if err != nil {
				return err
			}
			perFollowee[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []shortRef
	for _, refs := range perFollowee {
		merged = append(merged, refs...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Timestamp == merged[j].Timestamp {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].Timestamp > merged[j].Timestamp
	})

	ids := make([]string, 0, len(merged))
	for _, ref := range merged {
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// followersForInvalidation returns the owner's followers so their feeds can
// be retired. A failed lookup is logged; the write itself already succeeded.
func (r *ShortsRepository) followersForInvalidation(ctx context.Context, owner string) []string {
	followers, err := r.Followers(ctx, owner)
	if err != nil {
		logging.FromContext(ctx).Warn("list followers for feed invalidation", slog.String("userId", owner), slog.Any("error", err))
		return nil
	}
	return followers
}

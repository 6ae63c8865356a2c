package repositories

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vidfriends/shorts/internal/cache"
	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/models"
	"github.com/vidfriends/shorts/internal/persistence"
)

// CleanupScheduler queues the removal of a deleted user's content.
type CleanupScheduler interface {
	Enqueue(ctx context.Context, userID string) error
}

// searchSnapshot is a cached search result stamped with the generation it
// was computed under.
type searchSnapshot struct {
	Generation string        `json:"generation"`
	Users      []models.User `json:"users"`
}

// UsersRepository provides consistent user operations over a persistence
// backend and the side cache.
type UsersRepository struct {
	backend persistence.Backend
	cache   *cache.Safe
	cleanup CleanupScheduler
	reads   readThrough
}

// NewUsersRepository constructs the repository. ttl bounds every cached view.
func NewUsersRepository(backend persistence.Backend, c *cache.Safe, cleanup CleanupScheduler, ttl time.Duration) *UsersRepository {
	return &UsersRepository{
		backend: backend,
		cache:   c,
		cleanup: cleanup,
		reads:   readThrough{cache: c, ttl: ttl},
	}
}

// Create persists a new user and returns its id.
func (r *UsersRepository) Create(ctx context.Context, user models.User) (string, error) {
	if err := r.backend.CreateUser(ctx, user); err != nil {
		return "", kind("create user", err)
	}

	r.userWritten(ctx, user.ID)
	return user.ID, nil
}

// Lookup returns the stored user without checking credentials.
func (r *UsersRepository) Lookup(ctx context.Context, userID string) (models.User, error) {
	user, err := load(ctx, &r.reads, cache.UserKey(userID), func(ctx context.Context) (models.User, error) {
		return r.backend.GetUser(ctx, userID)
	})
	return user, kind("get user", err)
}

// Get returns the user when pwd matches the stored credential. The
// comparison is plain equality.
func (r *UsersRepository) Get(ctx context.Context, userID, pwd string) (models.User, error) {
	user, err := r.Lookup(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if user.Password != pwd {
		return models.User{}, models.ErrForbidden
	}
	return user, nil
}

// Update merges the fields present in patch onto the stored user.
func (r *UsersRepository) Update(ctx context.Context, userID, pwd string, patch models.UserPatch) (models.User, error) {
	current, err := r.Get(ctx, userID, pwd)
	if err != nil {
		return models.User{}, err
	}

	updated := current.Apply(patch)
	if err := r.backend.UpdateUser(ctx, updated); err != nil {
		return models.User{}, kind("update user", err)
	}

	r.userWritten(ctx, userID)
	return updated, nil
}

// Delete removes the user record synchronously and schedules the removal of
// the user's shorts, edges and blobs in the background.
func (r *UsersRepository) Delete(ctx context.Context, userID, pwd string) (models.User, error) {
	user, err := r.Get(ctx, userID, pwd)
	if err != nil {
		return models.User{}, err
	}

	if err := r.backend.DeleteUser(ctx, userID); err != nil {
		return models.User{}, kind("delete user", err)
	}

	r.userWritten(ctx, userID)

	if err := r.cleanup.Enqueue(ctx, userID); err != nil {
		logging.FromContext(ctx).Error("schedule user cleanup", slog.String("userId", userID), slog.Any("error", err))
	}
	return user, nil
}

// Search returns redacted users whose id contains pattern, ignoring case.
func (r *UsersRepository) Search(ctx context.Context, pattern string) ([]models.User, error) {
	key := cache.UserSearchKey(pattern)
	generation := r.searchGeneration(ctx)

	var snap searchSnapshot
	if generation != "" && r.cache.GetJSON(ctx, key, &snap) && snap.Generation == generation {
		return snap.Users, nil
	}

	users, err := r.backend.SearchUsers(ctx, pattern)
	if err != nil {
		return nil, kind("search users", err)
	}

	redacted := make([]models.User, 0, len(users))
	for _, u := range users {
		redacted = append(redacted, u.Redacted())
	}

	if generation != "" {
		r.cache.SetJSON(ctx, key, searchSnapshot{Generation: generation, Users: redacted}, r.reads.ttl)
	}
	return redacted, nil
}

// userWritten retires the cached record and every search snapshot.
func (r *UsersRepository) userWritten(ctx context.Context, userID string) {
	r.cache.Delete(ctx, userChanged(userID)...)
	r.cache.Set(ctx, cache.SearchGenerationKey, []byte(uuid.NewString()), 0)
}

// searchGeneration returns the current search generation, starting a new one
// when none is cached. An empty result means the cache is unavailable.
func (r *UsersRepository) searchGeneration(ctx context.Context) string {
	if raw, ok := r.cache.Get(ctx, cache.SearchGenerationKey); ok {
		return string(raw)
	}
	generation := uuid.NewString()
	r.cache.Set(ctx, cache.SearchGenerationKey, []byte(generation), 0)
	if raw, ok := r.cache.Get(ctx, cache.SearchGenerationKey); ok {
		return string(raw)
	}
	return ""
}

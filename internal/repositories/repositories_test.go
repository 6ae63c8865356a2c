package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vidfriends/shorts/internal/cache"
	"github.com/vidfriends/shorts/internal/models"
	"github.com/vidfriends/shorts/internal/persistence"
	"github.com/vidfriends/shorts/internal/token"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), val...)
	return nil
}

func (m *mapStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type downStore struct{}

var errCacheDown = errors.New("cache: connection refused")

func (downStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errCacheDown }
func (downStore) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (downStore) Delete(context.Context, ...string) error { return errCacheDown }

type recordingBlobs struct {
	mu      sync.Mutex
	deleted []string
	users   []string
}

func (b *recordingBlobs) Delete(_ context.Context, blobID, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, blobID)
	return nil
}

func (b *recordingBlobs) DeleteAll(_ context.Context, userID, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append(b.users, userID)
	return nil
}

// inlineCleanup runs the cascade synchronously so tests can observe it.
type inlineCleanup struct {
	shorts *ShortsRepository
	queued []string
}

func (c *inlineCleanup) Enqueue(ctx context.Context, userID string) error {
	c.queued = append(c.queued, userID)
	if c.shorts == nil {
		return nil
	}
	return c.shorts.DeleteAllShorts(ctx, userID)
}

type fixture struct {
	backend *persistence.Memory
	store   cache.Store
	blobs   *recordingBlobs
	cleanup *inlineCleanup
	shorts  *ShortsRepository
	users   *UsersRepository
}

func newFixture(t *testing.T, store cache.Store) *fixture {
	t.Helper()
	tokens, err := token.NewAuthority("test-secret")
	require.NoError(t, err)

	f := &fixture{
		backend: persistence.NewMemory(),
		store:   store,
		blobs:   &recordingBlobs{},
	}
	safe := cache.NewSafe(store, nil)
	f.shorts = NewShortsRepository(f.backend, safe, f.blobs, tokens, time.Hour)
	f.cleanup = &inlineCleanup{shorts: f.shorts}
	f.users = NewUsersRepository(f.backend, safe, f.cleanup, time.Hour)
	return f
}

func (f *fixture) createUser(t *testing.T, id string) models.User {
	t.Helper()
	user := models.User{ID: id, Password: id + "-pw", Email: id + "@example.com", DisplayName: id}
	_, err := f.users.Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func (f *fixture) createShort(t *testing.T, owner string, at time.Time) models.Short {
	t.Helper()
	short, err := f.shorts.CreateShort(context.Background(), models.NewShort(owner, "http://localhost/rest/blobs", at))
	require.NoError(t, err)
	return short
}

func TestFeedFollowsShortLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	f := newFixture(t, store)

	f.createUser(t, "u1")
	f.createUser(t, "u2")
	s1 := f.createShort(t, "u1", time.Now())

	require.NoError(t, f.shorts.Follow(ctx, "u2", "u1", true))

	feed, err := f.shorts.GetFeed(ctx, "u2")
	require.NoError(t, err)
	require.Contains(t, feed, s1.ID)

	shorts, err := f.shorts.GetShorts(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{s1.ID}, shorts)
	require.True(t, store.has(cache.ShortsUserKey("u1")))

	require.NoError(t, f.shorts.DeleteShort(ctx, s1))

	feed, err = f.shorts.GetFeed(ctx, "u2")
	require.NoError(t, err)
	require.NotContains(t, feed, s1.ID)

	for i := 0; i < 2; i++ {
		shorts, err = f.shorts.GetShorts(ctx, "u1")
		require.NoError(t, err)
		require.Empty(t, shorts)
	}
	require.Equal(t, []string{s1.ID}, f.blobs.deleted)
}

func TestFeedMergesFolloweesNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newMapStore())

	base := time.UnixMilli(1_700_000_000_000)
	a1 := f.createShort(t, "a", base)
	b1 := f.createShort(t, "b", base.Add(time.Second))
	a2 := f.createShort(t, "a", base.Add(2*time.Second))
	f.createShort(t, "c", base.Add(3*time.Second))
	own := f.createShort(t, "reader", base.Add(4*time.Second))

	require.NoError(t, f.shorts.Follow(ctx, "reader", "a", true))
	require.NoError(t, f.shorts.Follow(ctx, "reader", "b", true))

	feed, err := f.shorts.GetFeed(ctx, "reader")
	require.NoError(t, err)
	require.Equal(t, []string{a2.ID, b1.ID, a1.ID}, feed)
	require.NotContains(t, feed, own.ID)

	b2 := f.createShort(t, "b", base.Add(5*time.Second))
	feed, err = f.shorts.GetFeed(ctx, "reader")
	require.NoError(t, err)
	require.Equal(t, b2.ID, feed[0], "cached feed must be retired when a followee posts")

	require.NoError(t, f.shorts.Follow(ctx, "reader", "b", false))
	feed, err = f.shorts.GetFeed(ctx, "reader")
	require.NoError(t, err)
	require.Equal(t, []string{a2.ID, a1.ID}, feed)
}

func TestCachedViewsReflectLastWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newMapStore())

	f.createUser(t, "alice")
	f.createUser(t, "bob")
	short := f.createShort(t, "alice", time.Now())

	followers, err := f.shorts.Followers(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, followers)
	require.NoError(t, f.shorts.Follow(ctx, "bob", "alice", true))
	followers, err = f.shorts.Followers(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, followers)

	likes, err := f.shorts.Likes(ctx, short.ID)
	require.NoError(t, err)
	require.Empty(t, likes)
	got, err := f.shorts.GetShort(ctx, short.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, got.TotalLikes)

	require.NoError(t, f.shorts.Like(ctx, "bob", true, short))
	likes, err = f.shorts.Likes(ctx, short.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, likes)
	got, err = f.shorts.GetShort(ctx, short.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.TotalLikes)

	user, err := f.users.Get(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	email := "alice@new.example.com"
	_, err = f.users.Update(ctx, "alice", "alice-pw", models.UserPatch{Email: &email})
	require.NoError(t, err)
	user, err = f.users.Get(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	require.Equal(t, email, user.Email)
	require.Equal(t, "alice", user.DisplayName)

	found, err := f.users.Search(ctx, "AL")
	require.NoError(t, err)
	require.Len(t, found, 1)
	f.createUser(t, "alfred")
	found, err = f.users.Search(ctx, "al")
	require.NoError(t, err)
	require.Len(t, found, 2, "search snapshot must be retired by a user write")
	for _, u := range found {
		require.Empty(t, u.Password)
	}
}

func TestEdgesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newMapStore())
	short := f.createShort(t, "b", time.Now())

	require.NoError(t, f.shorts.Follow(ctx, "a", "b", true))
	require.NoError(t, f.shorts.Follow(ctx, "a", "b", true))
	followers, err := f.shorts.Followers(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, followers)

	require.NoError(t, f.shorts.Like(ctx, "a", true, short))
	require.NoError(t, f.shorts.Like(ctx, "a", true, short))
	got, err := f.shorts.GetShort(ctx, short.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.TotalLikes)

	require.NoError(t, f.shorts.Like(ctx, "a", false, short))
	require.NoError(t, f.shorts.Like(ctx, "a", false, short))
	require.NoError(t, f.shorts.Follow(ctx, "a", "b", false))
	require.NoError(t, f.shorts.Follow(ctx, "a", "b", false))

	stored, err := f.backend.GetShort(ctx, short.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, stored.TotalLikes)
}

func TestConcurrentLikesMatchEdgeCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newMapStore())
	short := f.createShort(t, "owner", time.Now())

	const n, m = 20, 7
	run := func(count int, isLiked bool) {
		var wg sync.WaitGroup
		errs := make(chan error, count)
		for i := 0; i < count; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- f.shorts.Like(ctx, fmt.Sprintf("liker%d", i), isLiked, short)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
	}
	run(n, true)
	run(m, false)

	likes, err := f.backend.Likes(ctx, short.ID)
	require.NoError(t, err)
	stored, err := f.backend.GetShort(ctx, short.ID)
	require.NoError(t, err)
	require.EqualValues(t, len(likes), stored.TotalLikes)

	got, err := f.shorts.GetShort(ctx, short.ID)
	require.NoError(t, err)
	require.EqualValues(t, n-m, got.TotalLikes)
}

func TestDeleteUserLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	f := newFixture(t, store)

	for _, id := range []string{"gone", "friend", "fan"} {
		f.createUser(t, id)
	}
	mine := f.createShort(t, "gone", time.Now())
	theirs := f.createShort(t, "friend", time.Now())

	require.NoError(t, f.shorts.Follow(ctx, "fan", "gone", true))
	require.NoError(t, f.shorts.Follow(ctx, "gone", "friend", true))
	require.NoError(t, f.shorts.Like(ctx, "fan", true, mine))
	require.NoError(t, f.shorts.Like(ctx, "gone", true, theirs))

	// Warm every derived view that the cascade must retire.
	_, err := f.shorts.GetFeed(ctx, "fan")
	require.NoError(t, err)
	_, err = f.shorts.Followers(ctx, "friend")
	require.NoError(t, err)
	_, err = f.shorts.GetShort(ctx, theirs.ID)
	require.NoError(t, err)

	deleted, err := f.users.Delete(ctx, "gone", "gone-pw")
	require.NoError(t, err)
	require.Equal(t, "gone", deleted.ID)
	require.Equal(t, []string{"gone"}, f.cleanup.queued)

	_, err = f.users.Get(ctx, "gone", "gone-pw")
	require.ErrorIs(t, err, models.ErrNotFound)

	users := []string{"gone", "friend", "fan"}
	for _, id := range users {
		shorts, err := f.backend.ShortsByOwner(ctx, id)
		require.NoError(t, err)
		for _, s := range shorts {
			require.NotEqual(t, "gone", s.OwnerID)
		}
		followers, err := f.backend.Followers(ctx, id)
		require.NoError(t, err)
		require.NotContains(t, followers, "gone")
		followees, err := f.backend.Followees(ctx, id)
		require.NoError(t, err)
		require.NotContains(t, followees, "gone")
	}
	for _, s := range []models.Short{mine, theirs} {
		likes, err := f.backend.Likes(ctx, s.ID)
		require.NoError(t, err)
		require.NotContains(t, likes, "gone")
	}
	mineLikes, err := f.backend.Likes(ctx, mine.ID)
	require.NoError(t, err)
	require.Empty(t, mineLikes)

	feed, err := f.shorts.GetFeed(ctx, "fan")
	require.NoError(t, err)
	require.Empty(t, feed)
	followers, err := f.shorts.Followers(ctx, "friend")
	require.NoError(t, err)
	require.Empty(t, followers)
	got, err := f.shorts.GetShort(ctx, theirs.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, got.TotalLikes)
	stored, err := f.backend.GetShort(ctx, theirs.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, stored.TotalLikes)

	require.Equal(t, []string{"gone"}, f.blobs.users)
}

func TestRepositoriesSurviveCacheOutage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, downStore{})

	f.createUser(t, "u1")
	f.createUser(t, "u2")
	s1 := f.createShort(t, "u1", time.Now())

	require.NoError(t, f.shorts.Follow(ctx, "u2", "u1", true))
	require.NoError(t, f.shorts.Like(ctx, "u2", true, s1))

	got, err := f.shorts.GetShort(ctx, s1.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.TotalLikes)

	feed, err := f.shorts.GetFeed(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, []string{s1.ID}, feed)

	found, err := f.users.Search(ctx, "u")
	require.NoError(t, err)
	require.Len(t, found, 2)

	_, err = f.users.Get(ctx, "u1", "wrong")
	require.ErrorIs(t, err, models.ErrForbidden)

	require.NoError(t, f.shorts.DeleteShort(ctx, s1))
	shorts, err := f.shorts.GetShorts(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, shorts)

	_, err = f.users.Delete(ctx, "u2", "u2-pw")
	require.NoError(t, err)
}

func TestUserGetDistinguishesForbiddenFromNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newMapStore())
	f.createUser(t, "alice")

	_, err := f.users.Get(ctx, "alice", "nope")
	require.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.users.Get(ctx, "nobody", "nope")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.users.Create(ctx, models.User{ID: "alice", Password: "x"})
	require.ErrorIs(t, err, models.ErrConflict)
}

type failingBackend struct {
	persistence.Backend
}

func (failingBackend) GetShort(context.Context, string) (models.Short, error) {
	return models.Short{}, errors.New("connection reset by peer")
}

func TestBackendFailuresBecomeInternal(t *testing.T) {
	tokens, err := token.NewAuthority("test-secret")
	require.NoError(t, err)
	repo := NewShortsRepository(failingBackend{persistence.NewMemory()}, cache.NewSafe(newMapStore(), nil), &recordingBlobs{}, tokens, time.Hour)

	_, err = repo.GetShort(context.Background(), "x+1")
	require.ErrorIs(t, err, models.ErrInternal)
}

func TestUnlikedShortsAreRetiredAfterCascade(t *testing.T) {
	store := newMapStore()
	f := newFixture(t, store)
	ctx := context.Background()

	theirs := f.createShort(t, "friend", time.Now())
	require.NoError(t, f.shorts.Like(ctx, "gone", true, theirs))
	_, err := f.shorts.Likes(ctx, theirs.ID)
	require.NoError(t, err)
	require.True(t, store.has(cache.LikesShortKey(theirs.ID)))

	require.NoError(t, f.shorts.DeleteAllShorts(ctx, "gone"))
	require.False(t, store.has(cache.LikesShortKey(theirs.ID)))
}

func TestSharedLoadSurvivesLeaderCancellation(t *testing.T) {
	rt := &readThrough{cache: cache.NewSafe(newMapStore(), nil), ttl: time.Hour}

	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		select {
		case <-release:
			return "loaded", ctx.Err()
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := load(leaderCtx, rt, "k", fetch)
		leaderErr <- err
	}()
	<-started

	follower := make(chan string, 1)
	go func() {
		v, err := load(context.Background(), rt, "k", func(context.Context) (string, error) {
			return "", errors.New("follower must share the leader's load")
		})
		if err != nil {
			v = "error: " + err.Error()
		}
		follower <- v
	}()

	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	// Give the follower time to join the in-flight call before it finishes.
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case v := <-follower:
		require.Equal(t, "loaded", v)
	case <-time.After(time.Second):
		t.Fatal("follower never received the shared load")
	}
}

package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vidfriends/shorts/internal/models"
)

// runBackendSuite exercises the Backend contract against a fresh backend.
func runBackendSuite(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Run("users", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		alice := models.User{ID: "alice", Password: "pw", Email: "a@example.com", DisplayName: "Alice"}
		require.NoError(t, b.CreateUser(ctx, alice))
		require.ErrorIs(t, b.CreateUser(ctx, alice), models.ErrConflict)

		got, err := b.GetUser(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, alice, got)

		_, err = b.GetUser(ctx, "nobody")
		require.ErrorIs(t, err, models.ErrNotFound)

		alice.Email = "alice@example.com"
		require.NoError(t, b.UpdateUser(ctx, alice))
		got, err = b.GetUser(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", got.Email)

		require.ErrorIs(t, b.UpdateUser(ctx, models.User{ID: "nobody"}), models.ErrNotFound)

		require.NoError(t, b.CreateUser(ctx, models.User{ID: "MALICE", Password: "pw", Email: "m@example.com", DisplayName: "M"}))
		require.NoError(t, b.CreateUser(ctx, models.User{ID: "bob", Password: "pw", Email: "b@example.com", DisplayName: "Bob"}))

		found, err := b.SearchUsers(ctx, "lic")
		require.NoError(t, err)
		require.Len(t, found, 2)
		ids := []string{found[0].ID, found[1].ID}
		require.ElementsMatch(t, []string{"alice", "MALICE"}, ids)

		none, err := b.SearchUsers(ctx, "zzz")
		require.NoError(t, err)
		require.Empty(t, none)

		require.NoError(t, b.DeleteUser(ctx, "alice"))
		require.ErrorIs(t, b.DeleteUser(ctx, "alice"), models.ErrNotFound)
	})

	t.Run("shorts", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		base := time.UnixMilli(1_700_000_000_000)
		older := models.NewShort("u1", "http://blobs", base)
		newer := models.NewShort("u1", "http://blobs", base.Add(time.Second))
		other := models.NewShort("u2", "http://blobs", base)
		for _, s := range []models.Short{older, newer, other} {
			require.NoError(t, b.CreateShort(ctx, s))
		}
		require.ErrorIs(t, b.CreateShort(ctx, older), models.ErrConflict)

		got, err := b.GetShort(ctx, older.ID)
		require.NoError(t, err)
		require.Equal(t, older, got)

		list, err := b.ShortsByOwner(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, newer.ID, list[0].ID)
		require.Equal(t, older.ID, list[1].ID)

		liked, err := b.Like(ctx, models.NewLike("u2", older.ID, "u1"))
		require.NoError(t, err)
		require.True(t, liked)

		require.NoError(t, b.DeleteShort(ctx, older.ID))
		require.ErrorIs(t, b.DeleteShort(ctx, older.ID), models.ErrNotFound)
		_, err = b.GetShort(ctx, older.ID)
		require.ErrorIs(t, err, models.ErrNotFound)

		likes, err := b.Likes(ctx, older.ID)
		require.NoError(t, err)
		require.Empty(t, likes, "like edges must not outlive their short")
	})

	t.Run("follow is idempotent", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		changed, err := b.Follow(ctx, "a", "b")
		require.NoError(t, err)
		require.True(t, changed)

		changed, err = b.Follow(ctx, "a", "b")
		require.NoError(t, err)
		require.False(t, changed)

		followers, err := b.Followers(ctx, "b")
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, followers)

		followees, err := b.Followees(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, []string{"b"}, followees)

		changed, err = b.Unfollow(ctx, "a", "b")
		require.NoError(t, err)
		require.True(t, changed)

		changed, err = b.Unfollow(ctx, "a", "b")
		require.NoError(t, err)
		require.False(t, changed)

		followers, err = b.Followers(ctx, "b")
		require.NoError(t, err)
		require.Empty(t, followers)
	})

	t.Run("edges with separators in ids stay distinct", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		changed, err := b.Follow(ctx, "a+b", "c")
		require.NoError(t, err)
		require.True(t, changed)
		changed, err = b.Follow(ctx, "a", "b+c")
		require.NoError(t, err)
		require.True(t, changed)

		followers, err := b.Followers(ctx, "b+c")
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, followers)
		followers, err = b.Followers(ctx, "c")
		require.NoError(t, err)
		require.Equal(t, []string{"a+b"}, followers)

		first := models.Short{ID: "c+X", OwnerID: "c", BlobURL: "http://blobs/c+X"}
		second := models.Short{ID: "b+c+X", OwnerID: "b+c", BlobURL: "http://blobs/b+c+X"}
		require.NoError(t, b.CreateShort(ctx, first))
		require.NoError(t, b.CreateShort(ctx, second))

		changed, err = b.Like(ctx, models.NewLike("a+b", first.ID, first.OwnerID))
		require.NoError(t, err)
		require.True(t, changed)
		changed, err = b.Like(ctx, models.NewLike("a", second.ID, second.OwnerID))
		require.NoError(t, err)
		require.True(t, changed)

		likes, err := b.Likes(ctx, second.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, likes)

		changed, err = b.Unfollow(ctx, "a", "b+c")
		require.NoError(t, err)
		require.True(t, changed)
		followers, err = b.Followers(ctx, "c")
		require.NoError(t, err)
		require.Equal(t, []string{"a+b"}, followers)
	})

	t.Run("like counter", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		short := models.NewShort("owner", "http://blobs", time.Now())
		require.NoError(t, b.CreateShort(ctx, short))

		const likers = 8
		var wg sync.WaitGroup
		errs := make(chan error, likers)
		for i := 0; i < likers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := b.Like(ctx, models.NewLike(fmt.Sprintf("u%d", i), short.ID, short.OwnerID))
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		changed, err := b.Like(ctx, models.NewLike("u0", short.ID, short.OwnerID))
		require.NoError(t, err)
		require.False(t, changed, "second like from the same user must not count")

		for i := 0; i < 3; i++ {
			changed, err := b.Unlike(ctx, fmt.Sprintf("u%d", i), short.ID)
			require.NoError(t, err)
			require.True(t, changed)
		}
		changed, err = b.Unlike(ctx, "u0", short.ID)
		require.NoError(t, err)
		require.False(t, changed)

		likes, err := b.Likes(ctx, short.ID)
		require.NoError(t, err)
		got, err := b.GetShort(ctx, short.ID)
		require.NoError(t, err)
		require.EqualValues(t, len(likes), got.TotalLikes)
		require.EqualValues(t, likers-3, got.TotalLikes)

		_, err = b.Like(ctx, models.NewLike("u0", "owner+missing", "owner"))
		require.True(t, errors.Is(err, models.ErrNotFound), "expected ErrNotFound got %v", err)
	})

	t.Run("delete user data", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		mine := models.NewShort("gone", "http://blobs", time.Now())
		theirs := models.NewShort("stay", "http://blobs", time.Now())
		require.NoError(t, b.CreateShort(ctx, mine))
		require.NoError(t, b.CreateShort(ctx, theirs))

		mustLike(t, b, models.NewLike("stay", mine.ID, "gone"))
		mustLike(t, b, models.NewLike("gone", theirs.ID, "stay"))
		mustLike(t, b, models.NewLike("gone", mine.ID, "gone"))
		mustLike(t, b, models.NewLike("third", theirs.ID, "stay"))

		mustFollow(t, b, "stay", "gone")
		mustFollow(t, b, "gone", "stay")
		mustFollow(t, b, "gone", "third")
		mustFollow(t, b, "third", "stay")

		out, err := b.DeleteUserData(ctx, "gone")
		require.NoError(t, err)
		require.Equal(t, []string{mine.ID}, out.Shorts)
		require.Equal(t, []string{"stay"}, out.Followers)
		require.ElementsMatch(t, []string{"stay", "third"}, out.Followees)
		require.Equal(t, []string{theirs.ID}, out.Unliked)

		_, err = b.GetShort(ctx, mine.ID)
		require.ErrorIs(t, err, models.ErrNotFound)

		likes, err := b.Likes(ctx, theirs.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"third"}, likes)

		kept, err := b.GetShort(ctx, theirs.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, kept.TotalLikes)

		followers, err := b.Followers(ctx, "stay")
		require.NoError(t, err)
		require.Equal(t, []string{"third"}, followers)

		followees, err := b.Followees(ctx, "stay")
		require.NoError(t, err)
		require.Empty(t, followees)
	})
}

func mustLike(t *testing.T, b Backend, like models.Like) {
	t.Helper()
	_, err := b.Like(context.Background(), like)
	require.NoError(t, err)
}

func mustFollow(t *testing.T, b Backend, follower, followee string) {
	t.Helper()
	_, err := b.Follow(context.Background(), follower, followee)
	require.NoError(t, err)
}

func TestMemoryBackend(t *testing.T) {
	runBackendSuite(t, func(*testing.T) Backend { return NewMemory() })
}

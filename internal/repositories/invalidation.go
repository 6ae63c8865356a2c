package repositories

import (
	"github.com/vidfriends/shorts/internal/cache"
	"github.com/vidfriends/shorts/internal/persistence"
)

// This file is the complete map from write events to the cache keys they
// make stale. Every write path in this package deletes exactly the keys
// returned here once the backend write has succeeded.

// shortCreated covers a new short of owner, seen by owner's followers.
func shortCreated(shortID, owner string, followers []string) []string {
	keys := []string{cache.ShortKey(shortID), cache.ShortsUserKey(owner)}
	return appendFeeds(keys, followers)
}

// shortDeleted covers removal of a short and its like edges.
func shortDeleted(shortID, owner string, followers []string) []string {
	keys := []string{
		cache.ShortKey(shortID),
		cache.ShortsUserKey(owner),
		cache.LikesShortKey(shortID),
	}
	return appendFeeds(keys, followers)
}

// followChanged covers insertion or removal of the edge follower -> followee.
func followChanged(follower, followee string) []string {
	return []string{
		cache.FollowersKey(followee),
		cache.FolloweesKey(follower),
		cache.FeedKey(follower),
	}
}

// likeChanged covers insertion or removal of a like edge on shortID.
func likeChanged(shortID string) []string {
	return []string{cache.ShortKey(shortID), cache.LikesShortKey(shortID)}
}

// userChanged covers create, update and delete of a user record. Search
// snapshots are retired separately by bumping the search generation.
func userChanged(userID string) []string {
	return []string{cache.UserKey(userID)}
}

// userDataDeleted covers the cascade that removes all of a user's shorts,
// likes and follow edges.
func userDataDeleted(userID string, c persistence.Cascade) []string {
	keys := []string{
		cache.ShortsUserKey(userID),
		cache.FollowersKey(userID),
		cache.FolloweesKey(userID),
		cache.FeedKey(userID),
	}
	for _, id := range c.Shorts {
		keys = append(keys, cache.ShortKey(id), cache.LikesShortKey(id))
	}
	for _, id := range c.Unliked {
		keys = append(keys, likeChanged(id)...)
	}
	for _, follower := range c.Followers {
		keys = append(keys, cache.FolloweesKey(follower), cache.FeedKey(follower))
	}
	for _, followee := range c.Followees {
		keys = append(keys, cache.FollowersKey(followee))
	}
	return keys
}

func appendFeeds(keys []string, followers []string) []string {
	for _, follower := range followers {
		keys = append(keys, cache.FeedKey(follower))
	}
	return keys
}

package cache

import "strings"

// Key namespaces shared by every repository and backend variant.
const (
	shortPrefix      = "short:"
	shortsUserPrefix = "shorts_user:"
	followersPrefix  = "followers_user:"
	followeesPrefix  = "followees_user:"
	likesShortPrefix = "likes_short:"
	feedUserPrefix   = "feed_user:"
	userPrefix       = "user:"
	userSearchPrefix = "user_search_"
	sessionPrefix    = "session:"
)

// SearchGenerationKey holds the stamp that search snapshots must match.
const SearchGenerationKey = "users_search_generation"

// ShortKey caches a single short.
func ShortKey(shortID string) string { return shortPrefix + shortID }

// ShortsUserKey caches the short ids owned by a user.
func ShortsUserKey(userID string) string { return shortsUserPrefix + userID }

// FollowersKey caches the follower ids of a user.
func FollowersKey(userID string) string { return followersPrefix + userID }

// FolloweesKey caches the ids a user follows.
func FolloweesKey(userID string) string { return followeesPrefix + userID }

// LikesShortKey caches the ids of users who liked a short.
func LikesShortKey(shortID string) string { return likesShortPrefix + shortID }

// FeedKey caches a user's feed.
func FeedKey(userID string) string { return feedUserPrefix + userID }

// UserKey caches a single user record.
func UserKey(userID string) string { return userPrefix + userID }

// UserSearchKey caches a search result. Patterns are case-insensitive.
func UserSearchKey(pattern string) string {
	return userSearchPrefix + strings.ToUpper(pattern)
}

// SessionKey stores a login session.
func SessionKey(sessionID string) string { return sessionPrefix + sessionID }

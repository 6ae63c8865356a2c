package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents an account within the shorts platform.
type User struct {
	ID          string `json:"id" bson:"_id"`
	Password    string `json:"pwd,omitempty" bson:"pwd"`
	Email       string `json:"email" bson:"email"`
	DisplayName string `json:"displayName" bson:"displayName"`
}

// Redacted returns a copy of the user with the credential stripped.
func (u User) Redacted() User {
	u.Password = ""
	return u
}

// Apply merges the fields present in the patch onto a copy of the user.
func (u User) Apply(p UserPatch) User {
	if p.Password != nil {
		u.Password = *p.Password
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	return u
}

// UserPatch carries a partial user update. Nil fields keep the stored value.
type UserPatch struct {
	ID          *string `json:"id,omitempty"`
	Password    *string `json:"pwd,omitempty"`
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
}

// Short is a published video owned by a user.
type Short struct {
	ID         string `json:"id" bson:"_id"`
	OwnerID    string `json:"ownerId" bson:"ownerId"`
	BlobURL    string `json:"blobUrl" bson:"blobUrl"`
	Timestamp  int64  `json:"timestamp" bson:"timestamp"`
	TotalLikes int64  `json:"totalLikes" bson:"totalLikes"`
}

// NewShort builds a short for the owner with a fresh identifier and a blob
// location under baseURL.
func NewShort(ownerID, baseURL string, now time.Time) Short {
	id := NewShortID(ownerID)
	return Short{
		ID:        id,
		OwnerID:   ownerID,
		BlobURL:   fmt.Sprintf("%s/%s", strings.TrimSuffix(baseURL, "/"), id),
		Timestamp: now.UnixMilli(),
	}
}

// NewShortID returns an identifier prefixed by its owner so shorts partition by user.
func NewShortID(ownerID string) string {
	return fmt.Sprintf("%s%s%s", ownerID, ShortIDSeparator, uuid.NewString())
}

// ShortIDSeparator splits the owner prefix from the random suffix of a short id.
const ShortIDSeparator = "+"

// OwnerFromShortID extracts the owner prefix of a short identifier.
func OwnerFromShortID(shortID string) (string, bool) {
	i := strings.LastIndex(shortID, ShortIDSeparator)
	if i <= 0 || i == len(shortID)-1 {
		return "", false
	}
	return shortID[:i], true
}

// WithLikes returns a copy of the short carrying the given like count.
func (s Short) WithLikes(likes int64) Short {
	s.TotalLikes = likes
	return s
}

// WithBlobToken returns a copy of the short whose blob location carries the
// capability token for its blob.
func (s Short) WithBlobToken(token string) Short {
	if token != "" {
		s.BlobURL = fmt.Sprintf("%s?token=%s", s.BlobURL, token)
	}
	return s
}

// Following is a follow edge between two users.
type Following struct {
	ID       string `json:"id" bson:"_id"`
	Follower string `json:"follower" bson:"follower"`
	Followee string `json:"followee" bson:"followee"`
}

// NewFollowing builds the edge with an identifier derived from the ordered pair.
func NewFollowing(follower, followee string) Following {
	return Following{
		ID:       FollowingID(follower, followee),
		Follower: follower,
		Followee: followee,
	}
}

// FollowingID derives the edge identifier for an ordered (follower, followee)
// pair. The follower is length-prefixed so ids containing the separator cannot
// collide.
func FollowingID(follower, followee string) string {
	return edgeID("following", follower, followee)
}

// Like is a like edge from a user to a short.
type Like struct {
	ID      string `json:"id" bson:"_id"`
	UserID  string `json:"userId" bson:"userId"`
	ShortID string `json:"shortId" bson:"shortId"`
	OwnerID string `json:"ownerId" bson:"ownerId"`
}

// NewLike builds the edge with an identifier derived from the (user, short) pair.
func NewLike(userID, shortID, ownerID string) Like {
	return Like{
		ID:      LikeID(userID, shortID),
		UserID:  userID,
		ShortID: shortID,
		OwnerID: ownerID,
	}
}

// LikeID derives the edge identifier for a (user, short) pair.
func LikeID(userID, shortID string) string {
	return edgeID("like", userID, shortID)
}

func edgeID(kind, from, to string) string {
	return fmt.Sprintf("%s+%d:%s+%s", kind, len(from), from, to)
}

// Session maps an opaque session identifier to an authenticated user.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user"`
}

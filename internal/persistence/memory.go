package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vidfriends/shorts/internal/models"
)

// Memory is a mutex-guarded Backend for development and tests.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]models.User
	shorts    map[string]models.Short
	following map[string]models.Following
	likes     map[string]models.Like
}

// NewMemory constructs an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]models.User),
		shorts:    make(map[string]models.Short),
		following: make(map[string]models.Following),
		likes:     make(map[string]models.Like),
	}
}

// CreateUser persists a new user.
func (m *Memory) CreateUser(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; ok {
		return models.ErrConflict
	}
	m.users[user.ID] = user
	return nil
}

// GetUser fetches a user by id.
func (m *Memory) GetUser(_ context.Context, userID string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return user, nil
}

// UpdateUser replaces a stored user.
func (m *Memory) UpdateUser(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; !ok {
		return models.ErrNotFound
	}
	m.users[user.ID] = user
	return nil
}

// DeleteUser removes a user record.
func (m *Memory) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return models.ErrNotFound
	}
	delete(m.users, userID)
	return nil
}

// SearchUsers matches pattern against user ids, ignoring case.
func (m *Memory) SearchUsers(_ context.Context, pattern string) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToUpper(pattern)
	users := []models.User{}
	for _, user := range m.users {
		if strings.Contains(strings.ToUpper(user.ID), needle) {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// CreateShort persists a new short.
func (m *Memory) CreateShort(_ context.Context, short models.Short) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shorts[short.ID]; ok {
		return models.ErrConflict
	}
	m.shorts[short.ID] = short
	return nil
}

// GetShort fetches a short by id.
func (m *Memory) GetShort(_ context.Context, shortID string) (models.Short, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	short, ok := m.shorts[shortID]
	if !ok {
		return models.Short{}, models.ErrNotFound
	}
	return short, nil
}

// DeleteShort removes a short and its likes.
func (m *Memory) DeleteShort(_ context.Context, shortID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shorts[shortID]; !ok {
		return models.ErrNotFound
	}
	for id, like := range m.likes {
		if like.ShortID == shortID {
			delete(m.likes, id)
		}
	}
	delete(m.shorts, shortID)
	return nil
}

// ShortsByOwner lists the owner's shorts, newest first.
func (m *Memory) ShortsByOwner(_ context.Context, ownerID string) ([]models.Short, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shorts := []models.Short{}
	for _, short := range m.shorts {
		if short.OwnerID == ownerID {
			shorts = append(shorts, short)
		}
	}
	sortNewestFirst(shorts)
	return shorts, nil
}

// Follow inserts a follow edge.
func (m *Memory) Follow(_ context.Context, follower, followee string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	edge := models.NewFollowing(follower, followee)
	if _, ok := m.following[edge.ID]; ok {
		return false, nil
	}
	m.following[edge.ID] = edge
	return true, nil
}

// Unfollow deletes a follow edge.
func (m *Memory) Unfollow(_ context.Context, follower, followee string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := models.FollowingID(follower, followee)
	if _, ok := m.following[id]; !ok {
		return false, nil
	}
	delete(m.following, id)
	return true, nil
}

// Followers lists the users following userID.
func (m *Memory) Followers(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := []string{}
	for _, edge := range m.following {
		if edge.Followee == userID {
			ids = append(ids, edge.Follower)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Followees lists the users userID follows.
func (m *Memory) Followees(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := []string{}
	for _, edge := range m.following {
		if edge.Follower == userID {
			ids = append(ids, edge.Followee)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Like inserts a like edge and bumps the counter under the same lock.
func (m *Memory) Like(_ context.Context, like models.Like) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	short, ok := m.shorts[like.ShortID]
	if !ok {
		return false, models.ErrNotFound
	}
	like.ID = models.LikeID(like.UserID, like.ShortID)
	if _, ok := m.likes[like.ID]; ok {
		return false, nil
	}
	m.likes[like.ID] = like
	short.TotalLikes++
	m.shorts[short.ID] = short
	return true, nil
}

// Unlike deletes a like edge and decrements the counter under the same lock.
func (m *Memory) Unlike(_ context.Context, userID, shortID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := models.LikeID(userID, shortID)
	if _, ok := m.likes[id]; !ok {
		return false, nil
	}
	delete(m.likes, id)
	if short, ok := m.shorts[shortID]; ok {
		short.TotalLikes--
		m.shorts[shortID] = short
	}
	return true, nil
}

// Likes lists the users who liked shortID.
func (m *Memory) Likes(_ context.Context, shortID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := []string{}
	for _, like := range m.likes {
		if like.ShortID == shortID {
			ids = append(ids, like.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteUserData removes everything owned by or referencing userID.
func (m *Memory) DeleteUserData(_ context.Context, userID string) (Cascade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out Cascade
	owned := make(map[string]struct{})
	for id, short := range m.shorts {
		if short.OwnerID == userID {
			owned[id] = struct{}{}
			out.Shorts = append(out.Shorts, id)
		}
	}

	unliked := make(map[string]struct{})
	for id, like := range m.likes {
		_, ownedShort := owned[like.ShortID]
		switch {
		case ownedShort || like.OwnerID == userID:
			delete(m.likes, id)
		case like.UserID == userID:
			delete(m.likes, id)
			if short, ok := m.shorts[like.ShortID]; ok {
				short.TotalLikes--
				m.shorts[like.ShortID] = short
			}
			unliked[like.ShortID] = struct{}{}
		}
	}
	for id := range owned {
		delete(m.shorts, id)
	}

	for id, edge := range m.following {
		switch {
		case edge.Followee == userID:
			out.Followers = append(out.Followers, edge.Follower)
			delete(m.following, id)
		case edge.Follower == userID:
			out.Followees = append(out.Followees, edge.Followee)
			delete(m.following, id)
		}
	}

	for id := range unliked {
		out.Unliked = append(out.Unliked, id)
	}

	sort.Strings(out.Shorts)
	sort.Strings(out.Followers)
	sort.Strings(out.Followees)
	sort.Strings(out.Unliked)
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (m *Memory) Close(context.Context) error { return nil }

func sortNewestFirst(shorts []models.Short) {
	sort.SliceStable(shorts, func(i, j int) bool {
		if shorts[i].Timestamp == shorts[j].Timestamp {
			return shorts[i].ID < shorts[j].ID
		}
		return shorts[i].Timestamp > shorts[j].Timestamp
	})
}

var _ Backend = (*Memory)(nil)

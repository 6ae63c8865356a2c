// Package auth issues and validates login sessions. Sessions live only in the
// cache store and expire with it.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidfriends/shorts/internal/cache"
	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/models"
)

// Authenticator checks a user's credential.
type Authenticator interface {
	Get(ctx context.Context, userID, pwd string) (models.User, error)
}

// Manager manages the lifecycle of login sessions backed by the cache store.
type Manager struct {
	ttl   time.Duration
	store cache.Store
	users Authenticator
}

// NewManager constructs a Manager whose sessions expire after ttl.
func NewManager(ttl time.Duration, store cache.Store, users Authenticator) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	return &Manager{ttl: ttl, store: store, users: users}
}

// TTL reports how long issued sessions remain valid.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Login verifies the credential and opens a session for userID.
func (m *Manager) Login(ctx context.Context, userID, pwd string) (models.Session, error) {
	if userID == "" {
		return models.Session{}, models.ErrBadRequest
	}
	if _, err := m.users.Get(ctx, userID, pwd); err != nil {
		return models.Session{}, err
	}

	id, err := randomToken()
	if err != nil {
		return models.Session{}, fmt.Errorf("session id: %w: %w", models.ErrInternal, err)
	}
	session := models.Session{ID: id, UserID: userID}

	raw, err := json.Marshal(session)
	if err != nil {
		return models.Session{}, fmt.Errorf("encode session: %w: %w", models.ErrInternal, err)
	}
	if err := m.store.Set(ctx, cache.SessionKey(id), raw, m.ttl); err != nil {
		return models.Session{}, fmt.Errorf("store session: %w: %w", models.ErrInternal, err)
	}

	logging.FromContext(ctx).Info("session opened", slog.String("userId", userID))
	return session, nil
}

// Validate returns the session identified by sessionID when it belongs to
// expectedUserID.
func (m *Manager) Validate(ctx context.Context, sessionID, expectedUserID string) (models.Session, error) {
	if sessionID == "" {
		return models.Session{}, models.ErrUnauthorized
	}

	raw, ok, err := m.store.Get(ctx, cache.SessionKey(sessionID))
	if err != nil {
		logging.FromContext(ctx).Warn("session lookup failed", slog.Any("error", err))
		return models.Session{}, models.ErrUnauthorized
	}
	if !ok {
		return models.Session{}, models.ErrUnauthorized
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil || session.UserID == "" {
		return models.Session{}, models.ErrUnauthorized
	}
	if session.UserID != expectedUserID {
		return models.Session{}, models.ErrUnauthorized
	}
	return session, nil
}

// Revoke closes the session. Unknown ids are ignored.
func (m *Manager) Revoke(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	_ = m.store.Delete(ctx, cache.SessionKey(sessionID))
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/models"
)

// UserHandler implements the user resource.
type UserHandler struct {
	Users UserService
}

// Create handles POST /rest/users.
func (h UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var user models.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		logging.FromContext(ctx).Warn("invalid user payload", "error", err)
		respondError(ctx, w, models.ErrBadRequest)
		return
	}

	id, err := h.Users.Create(ctx, user)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, id)
}

// Get handles GET /rest/users/{userId}?pwd=.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Users.Get(ctx, r.PathValue("userId"), r.URL.Query().Get("pwd"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, user.Redacted())
}

// Update handles PUT /rest/users/{userId}?pwd= with a partial user body.
func (h UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var patch models.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		logging.FromContext(ctx).Warn("invalid user patch", "error", err)
		respondError(ctx, w, models.ErrBadRequest)
		return
	}

	user, err := h.Users.Update(ctx, r.PathValue("userId"), r.URL.Query().Get("pwd"), patch)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, user.Redacted())
}

// Delete handles DELETE /rest/users/{userId}?pwd=.
func (h UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Users.Delete(ctx, r.PathValue("userId"), r.URL.Query().Get("pwd"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, user.Redacted())
}

// Search handles GET /rest/users/?query=.
func (h UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.Users.Search(ctx, r.URL.Query().Get("query"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, users)
}

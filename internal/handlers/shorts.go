package handlers

import (
	"net/http"
)

// ShortHandler implements the shorts resource, including follows, likes and feeds.
type ShortHandler struct {
	Shorts ShortService
}

// Create handles POST /rest/shorts/{userId}?pwd=.
func (h ShortHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	short, err := h.Shorts.CreateShort(ctx, r.PathValue("userId"), r.URL.Query().Get("pwd"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, short)
}

// Get handles GET /rest/shorts/{shortId}.
func (h ShortHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	short, err := h.Shorts.GetShort(ctx, r.PathValue("shortId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, short)
}

// Delete handles DELETE /rest/shorts/{shortId}?pwd=.
func (h ShortHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Shorts.DeleteShort(ctx, r.PathValue("shortId"), r.URL.Query().Get("pwd")); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /rest/shorts/{userId}/shorts.
func (h ShortHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.Shorts.GetShorts(ctx, r.PathValue("userId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, ids)
}

// DeleteAll handles DELETE /rest/shorts/{userId}/shorts?pwd=&token=.
func (h ShortHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if err := h.Shorts.DeleteAllShorts(ctx, r.PathValue("userId"), q.Get("pwd"), q.Get("token")); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Follow handles POST /rest/shorts/{userId1}/{userId2}/followers?pwd= with
// a JSON boolean body.
func (h ShortHandler) Follow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	isFollowing, err := decodeFlag(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := h.Shorts.Follow(ctx, r.PathValue("userId1"), r.PathValue("userId2"), isFollowing, r.URL.Query().Get("pwd")); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Followers handles GET /rest/shorts/{userId}/followers?pwd=.
func (h ShortHandler) Followers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.Shorts.Followers(ctx, r.PathValue("userId"), r.URL.Query().Get("pwd"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, ids)
}

// Like handles POST /rest/shorts/{shortId}/{userId}/likes?pwd= with a JSON
// boolean body.
func (h ShortHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	isLiked, err := decodeFlag(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := h.Shorts.Like(ctx, r.PathValue("shortId"), r.PathValue("userId"), isLiked, r.URL.Query().Get("pwd")); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Likes handles GET /rest/shorts/{shortId}/likes?pwd=.
func (h ShortHandler) Likes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.Shorts.Likes(ctx, r.PathValue("shortId"), r.URL.Query().Get("pwd"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, ids)
}

// Feed handles GET /rest/shorts/{userId}/feed?pwd=.
func (h ShortHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.Shorts.GetFeed(ctx, r.PathValue("userId"), r.URL.Query().Get("pwd"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, ids)
}

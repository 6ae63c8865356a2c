package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/vidfriends/shorts/internal/logging"
)

// defaultMaxBlobBytes bounds upload bodies when no limit is configured.
const defaultMaxBlobBytes = 64 << 20

// BlobHandler implements the blobs resource.
type BlobHandler struct {
	Blobs    BlobService
	MaxBytes int64
}

// Upload handles POST /rest/blobs/{blobId}?token= with the raw bytes as body.
func (h BlobHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := h.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBlobBytes
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSON(ctx, w, http.StatusRequestEntityTooLarge, map[string]string{"error": "blob too large"})
			return
		}
		logging.FromContext(ctx).Warn("read blob body", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.Blobs.Upload(ctx, r.PathValue("blobId"), r.URL.Query().Get("token"), data); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download handles GET /rest/blobs/{blobId}?token=.
func (h BlobHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := h.Blobs.Download(ctx, r.PathValue("blobId"), r.URL.Query().Get("token"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.FromContext(ctx).Warn("write blob body", "error", err)
	}
}

// Delete handles DELETE /rest/blobs/{blobId}?token=.
func (h BlobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Blobs.Delete(ctx, r.PathValue("blobId"), r.URL.Query().Get("token")); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll handles DELETE /rest/blobs/{userId}/blobs?token=.
func (h BlobHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Blobs.DeleteAll(ctx, r.PathValue("userId"), r.URL.Query().Get("token")); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

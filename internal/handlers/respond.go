package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/models"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the status for err. Internal causes are logged but
// never sent to the client.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := http.StatusText(status)
	if status == http.StatusInternalServerError {
		logging.FromContext(ctx).Error("operation failed", "error", err)
	}
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		logging.FromContext(ctx).Warn("request returned client error", "status", status, "response", payload)
	}
}

// decodeFlag reads a JSON boolean request body.
func decodeFlag(r *http.Request) (bool, error) {
	var flag bool
	if err := json.NewDecoder(r.Body).Decode(&flag); err != nil {
		return false, models.ErrBadRequest
	}
	return flag, nil
}

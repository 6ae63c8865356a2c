package handlers

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/models"
)

// SessionCookie names the cookie carrying the login session id.
const SessionCookie = "scc:session"

// Version is reported by the control endpoint.
const Version = "0001"

const loginForm = `<!DOCTYPE html>
<html>
<body>
<form method="post">
<input name="username" placeholder="user">
<input name="password" type="password" placeholder="password">
<button type="submit">Login</button>
</form>
</body>
</html>
`

// AuthHandler implements the login form and the session-guarded control endpoint.
type AuthHandler struct {
	Sessions SessionManager
	Limiter  RateLimiter
}

// Form handles GET /rest/login.
func (h AuthHandler) Form(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(loginForm))
}

// Login handles POST /rest/login with form fields username and password.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited", "client", clientIP(r))
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many login attempts"})
		return
	}

	if err := r.ParseForm(); err != nil {
		logger.Warn("invalid login form", "error", err)
		respondError(ctx, w, models.ErrBadRequest)
		return
	}
	userID := strings.TrimSpace(r.PostForm.Get("username"))

	session, err := h.Sessions.Login(ctx, userID, r.PostForm.Get("password"))
	if err != nil {
		logger.Warn("login failed", "userId", userID, "error", err)
		if statusFor(err) == http.StatusInternalServerError {
			respondError(ctx, w, err)
			return
		}
		respondError(ctx, w, models.ErrUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   int(h.Sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, BasePath+"/ctrl/version/"+url.PathEscape(userID), http.StatusSeeOther)
}

// Version handles GET /rest/ctrl/version/{userId}. It requires a session
// belonging to userId.
func (h AuthHandler) Version(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var sessionID string
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		sessionID = cookie.Value
	}

	session, err := h.Sessions.Validate(ctx, sessionID, r.PathValue("userId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><p>version: %s</p><p>session: %s, user: %s</p></html>\n",
		Version, html.EscapeString(session.ID), html.EscapeString(session.UserID))
}

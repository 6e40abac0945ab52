package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	sessionCookieName = "sqlchat_session"
	sessionHeader     = "X-Session-ID"
)

// sessionID resolves the caller's session from the X-Session-ID header or
// the session cookie. With issue set, a missing or malformed id is replaced
// by a fresh one and the cookie is written.
func sessionID(w http.ResponseWriter, r *http.Request, issue bool) (string, bool) {
	if id, ok := parseSessionID(r.Header.Get(sessionHeader)); ok {
		return id, true
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if id, ok := parseSessionID(cookie.Value); ok {
			return id, true
		}
	}
	if !issue {
		return "", false
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, true
}

func expireSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func parseSessionID(raw string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

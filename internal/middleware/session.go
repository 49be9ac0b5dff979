package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const sessionCookieName = "ss_session"

const ownerIDKey contextKey = "owner_id"

// Session identifies the calling owner through an opaque session cookie. The
// cookie carries only the session id; balances live server-side in the
// ledger and are never readable or writable from the client.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := ""
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			if _, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
				ownerID = cookie.Value
			}
		}
		if ownerID == "" {
			ownerID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    ownerID,
				Path:     "/",
				MaxAge:   30 * 24 * 60 * 60,
				SameSite: http.SameSiteLaxMode,
				HttpOnly: true,
			})
		}
		ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OwnerIDFromContext returns the session owner id, empty when the session
// middleware did not run.
func OwnerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ownerIDKey).(string); ok {
		return v
	}
	return ""
}

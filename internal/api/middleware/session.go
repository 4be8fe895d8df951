package middleware

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/service"
)

const (
	SessionKey contextKey = "session"

	// SessionCookie carries the session ID of browser clients
	SessionCookie = "docqa_session"
	// SessionHeader carries the session ID of API clients
	SessionHeader = "X-Session-ID"
)

// SessionProvider resolves or creates sessions by ID
type SessionProvider interface {
	GetOrCreate(id string) (*service.Session, bool)
}

// Sessions attaches the caller's session to the request context. The ID is
// read from the X-Session-ID header, then the session cookie; unknown or
// missing IDs get a fresh session. The resolved ID is echoed in both.
func Sessions(provider SessionProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := RequestSessionID(r)
			session, created := provider.GetOrCreate(id)
			if created || id != session.ID {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    session.ID,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionHeader, session.ID)

			ctx := context.WithValue(r.Context(), SessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestSessionID returns the session ID the client sent, header first.
func RequestSessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// ExpireSessionCookie tells browsers to drop the session cookie.
func ExpireSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetSession returns the session from context, or nil.
func GetSession(ctx context.Context) *service.Session {
	session, _ := ctx.Value(SessionKey).(*service.Session)
	return session
}

// GetSessionID returns the session ID from context.
func GetSessionID(ctx context.Context) string {
	if session := GetSession(ctx); session != nil {
		return session.ID
	}
	return ""
}

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/guildops/rosterlive/internal/auth"
)

type ctxKey int

const identityKey ctxKey = 0

// withIdentity resolves the session token into an Identity for the rest
// of the middleware chain. A missing or invalid token is not an error
// here; endpoints that need an account check for themselves.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.identityFromRequest(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// identityFromRequest reads the bearer token, falling back to the
// session cookie for websocket upgrades where headers are awkward.
func (s *Server) identityFromRequest(r *http.Request) auth.Identity {
	tok := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		tok = strings.TrimPrefix(h, "Bearer ")
	} else if c, err := r.Cookie(sessionCookie); err == nil {
		tok = c.Value
	}
	if tok == "" {
		return auth.Anonymous
	}
	id, err := auth.ParseSession([]byte(s.cfg.JWTSecret), tok)
	if err != nil {
		return auth.Anonymous
	}
	return id
}

func identityFrom(r *http.Request) auth.Identity {
	if id, ok := r.Context().Value(identityKey).(auth.Identity); ok {
		return id
	}
	return auth.Anonymous
}

// requireAccount is the guard for endpoints that make no sense
// anonymously.
func requireAccount(r *http.Request) (auth.Identity, bool) {
	id := identityFrom(r)
	return id, !id.IsAnonymous()
}

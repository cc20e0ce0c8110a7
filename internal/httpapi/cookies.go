package httpapi

import (
	"net/http"
	"time"

	"github.com/guildops/rosterlive/pkg/types"
)

const (
	sessionCookie  = "roster_session"
	cooldownCookie = "roster_cooldown"
	nameCookie     = "roster_member_name"
)

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.IsProduction(),
	})
}

// readToken loads a timestamped token cookie, deleting it proactively
// when it has outlived ttl so stale tokens never linger on the client.
func (s *Server) readToken(w http.ResponseWriter, r *http.Request, name string, ttl time.Duration, now time.Time) (types.Token, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return types.Token{}, false
	}
	tok, ok := types.ParseToken(c.Value)
	if !ok || tok.Expired(now, ttl) {
		s.clearCookie(w, name)
		return types.Token{}, false
	}
	return tok, true
}

func (s *Server) writeToken(w http.ResponseWriter, name string, tok types.Token, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    tok.Encode(),
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.IsProduction(),
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
}

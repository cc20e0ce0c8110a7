package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/guildops/rosterlive/pkg/apperr"
)

// SessionClaims is the JWT payload for a logged-in account.
type SessionClaims struct {
	MID      string `json:"mid"`
	Username string `json:"username"`
	Role     int    `json:"role"`
	Member   string `json:"member,omitempty"`
	jwt.RegisteredClaims
}

// SignSession mints a session token for id, valid for ttl from now.
func SignSession(secret []byte, id Identity, ttl time.Duration, now time.Time) (string, error) {
	claims := SessionClaims{
		MID:      id.MID,
		Username: id.Username,
		Role:     id.Role,
		Member:   id.Member,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.MID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseSession verifies tok and returns the identity it carries. Invalid
// or expired tokens come back as FORBIDDEN.
func ParseSession(secret []byte, tok string) (Identity, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.CodeForbidden, err, "invalid session")
	}
	return Identity{
		MID:      claims.MID,
		Username: claims.Username,
		Role:     claims.Role,
		Member:   claims.Member,
	}, nil
}

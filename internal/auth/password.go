package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/guildops/rosterlive/pkg/apperr"
)

func HashPassword(plain string) (string, error) {
	if len(plain) < 6 {
		return "", apperr.Validation("password must be at least 6 characters")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports a FORBIDDEN error on mismatch so callers can pass
// it straight through without leaking which part of the login failed.
func CheckPassword(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return apperr.Forbidden("invalid credentials")
	}
	return nil
}

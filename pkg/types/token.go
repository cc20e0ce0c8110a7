package types

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Cooldown and remembered-username state live client-side as structured
// {value, timestamp} tokens with explicit expiry. They throttle a single
// client's repeat actions and pre-fill convenience only; a new client
// session starts with neither, which is a documented limitation, not a
// security boundary.
const (
	DefaultCooldown    = 3 * time.Minute
	DefaultRememberTTL = time.Hour
)

type Token struct {
	Value string `json:"value"`
	// Timestamp in Unix milliseconds, when the token was issued.
	Timestamp int64 `json:"timestamp"`
}

func NewToken(value string, now time.Time) Token {
	return Token{Value: value, Timestamp: now.UnixMilli()}
}

func (t Token) IssuedAt() time.Time { return time.UnixMilli(t.Timestamp) }

func (t Token) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.IssuedAt()) > ttl
}

// Active is the cooldown reading of a token: still inside the window.
func (t Token) Active(now time.Time, window time.Duration) bool {
	since := now.Sub(t.IssuedAt())
	return since >= 0 && since < window
}

// Encode serializes for a cookie value. Cookie values cannot carry raw
// JSON punctuation, hence base64url.
func (t Token) Encode() string {
	raw, _ := json.Marshal(t)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func ParseToken(encoded string) (Token, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Token{}, false
	}
	var t Token
	if err := json.Unmarshal(raw, &t); err != nil || t.Timestamp == 0 {
		return Token{}, false
	}
	return t, true
}

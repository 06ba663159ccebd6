package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CookieName is the portal session cookie.
const CookieName = "vendor_session"

var ErrExpired = errors.New("session expired")

// Sessions issues and verifies signed portal session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions builds a session signer. An empty secret gets a random one,
// which invalidates sessions across restarts.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	if secret == "" {
		secret = uuid.NewString()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued sessions.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue signs a session for vendorID.
func (s *Sessions) Issue(vendorID string) (string, error) {
	now := s.now()
	return SignHS256(map[string]any{
		"sub": vendorID,
		"sid": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}, s.secret)
}

// Verify returns the vendor id carried by token.
func (s *Sessions) Verify(token string) (string, error) {
	claims, err := ParseAndVerifyHS256(token, s.secret)
	if err != nil {
		return "", err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	exp, _ := claims["exp"].(float64)
	if s.now().Unix() >= int64(exp) {
		return "", ErrExpired
	}
	return sub, nil
}

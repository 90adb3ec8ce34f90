package pocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer token for remote calls. The engine consults
// it before each drain: an error means no authenticated session, and the drain
// aborts without touching the queue.
type TokenSource interface {
	// Token returns a currently valid bearer token, or ErrSessionExpired.
	Token() (string, error)
}

// StaticToken is a TokenSource backed by a fixed opaque API key. It never
// expires; useful for service accounts and tests.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrSessionExpired
	}
	return string(t), nil
}

// JWTSession is a TokenSource backed by a JWT access token. Validity is
// checked locally against the token's exp claim; the signature is the
// server's concern, not ours.
type JWTSession struct {
	mu     sync.RWMutex
	raw    string
	expiry time.Time
	leeway time.Duration
}

// NewJWTSession parses the token's registered claims and returns a session.
// Tokens without an exp claim are treated as non-expiring.
func NewJWTSession(raw string) (*JWTSession, error) {
	s := &JWTSession{leeway: 30 * time.Second}
	if err := s.SetToken(raw); err != nil {
		return nil, err
	}
	return s, nil
}

// SetToken replaces the session token, e.g. after the application shell
// refreshes it.
func (s *JWTSession) SetToken(raw string) error {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return fmt.Errorf("session: parse token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = raw
	if claims.ExpiresAt != nil {
		s.expiry = claims.ExpiresAt.Time
	} else {
		s.expiry = time.Time{}
	}
	return nil
}

// Token returns the raw token, or ErrSessionExpired once past exp (with a
// small leeway so a token about to expire isn't used for a 30s request).
func (s *JWTSession) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.raw == "" {
		return "", ErrSessionExpired
	}
	if !s.expiry.IsZero() && time.Now().Add(s.leeway).After(s.expiry) {
		return "", ErrSessionExpired
	}
	return s.raw, nil
}

// ExpiresAt returns the token expiry, zero if the token does not expire.
func (s *JWTSession) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

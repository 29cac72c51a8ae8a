// Package session issues and verifies the remember-me cookie.
//
// The cookie keeps its historical name, "userid", but carries an HS256
// signed token whose subject is the user name instead of the bare name.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CookieName is the remember-me cookie.
	CookieName = "userid"
	// DefaultTTL is how long a remembered signin lasts.
	DefaultTTL = 7 * 24 * time.Hour
	// Issuer is stamped on every token.
	Issuer = "stockwise"
)

var (
	// ErrNoSecret is returned by New without a signing key.
	ErrNoSecret = errors.New("session: signing secret is required")
	// ErrInvalidToken covers malformed, tampered and expired tokens.
	ErrInvalidToken = errors.New("session: invalid or expired token")
)

// Manager signs and checks session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the token and cookie lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSecureCookie marks cookies Secure.
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager signing with secret.
func New(secret []byte, opts ...Option) (*Manager, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	m := &Manager{secret: secret, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for userID and returns it with its expiry.
func (m *Manager) Issue(userID string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign token: %w", err)
	}
	return token, expires, nil
}

// Verify checks a token and returns its subject.
func (m *Manager) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Cookie wraps a token issued by Issue.
func (m *Manager) Cookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(expires.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Clear returns a cookie that deletes the remember-me cookie.
func (m *Manager) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// FromRequest returns the user name of a valid remember-me cookie.
func (m *Manager) FromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	userID, err := m.Verify(c.Value)
	if err != nil {
		return "", false
	}
	return userID, true
}

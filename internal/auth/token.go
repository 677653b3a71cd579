// Package auth issues and verifies session tokens and provides the gin
// middleware that enforces sign-in and the admin role.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/vento/pkg/types"
)

const (
	// CookieName is the session cookie shared by the web UI and the API.
	CookieName = "auth-token"

	// DefaultTTL is how long a session token stays valid.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultSecret is used when no secret is configured. Diagnostics
	// report it as an issue.
	DefaultSecret = "vento-development-secret-change-me"

	issuer = "vento"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrEmptySecret  = errors.New("jwt secret must not be empty")
)

// Claims is the JWT payload.
type Claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Options configures a Manager.
type Options struct {
	Secret string
	TTL    time.Duration
	// Secure marks the cookie Secure, for deployments behind HTTPS.
	Secure bool
}

// Manager signs and parses HS256 session tokens.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	secure  bool
	devKey  bool
	lookup  UserLookup
	nowFunc func() time.Time
}

// NewManager validates opts and returns a Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Secret == "" {
		return nil, ErrEmptySecret
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		secret:  []byte(opts.Secret),
		ttl:     ttl,
		secure:  opts.Secure,
		devKey:  opts.Secret == DefaultSecret,
		nowFunc: time.Now,
	}, nil
}

// UsingDefaultSecret reports whether the built-in development secret is in
// use.
func (m *Manager) UsingDefaultSecret() bool { return m.devKey }

// TTL returns the token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for u.
func (m *Manager) Issue(u types.SessionUser) (string, error) {
	now := m.nowFunc()
	claims := Claims{
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   types.UsernameKey(u.Username),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse verifies token and returns the session it carries.
func (m *Manager) Parse(token string) (types.SessionUser, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		return types.SessionUser{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Username == "" {
		return types.SessionUser{}, fmt.Errorf("%w: missing username", ErrInvalidToken)
	}
	return types.SessionUser{Username: claims.Username, IsAdmin: claims.IsAdmin}, nil
}

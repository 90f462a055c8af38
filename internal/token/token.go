// Package token provides the agent's bearer-token source (the analog of the
// browser's local/session storage slot) and claims extraction from the access
// token for push-channel registration.
package token

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when no bearer token is available.
var ErrNoToken = errors.New("token: no bearer token available")

// Source yields the current bearer token for Authorization headers.
type Source interface {
	Token() (string, error)
}

// StaticSource is a Source holding a fixed token, mainly for tests and
// short-lived tooling.
type StaticSource string

// Token returns the static token.
func (s StaticSource) Token() (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// FileSource reads the token from a file on every call so an external login
// flow can rotate it without restarting the agent.
type FileSource struct {
	Path string
}

// Token returns the trimmed file contents.
func (s *FileSource) Token() (string, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	tok := strings.TrimSpace(string(raw))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// Claims are the access-token claims the agent cares about: subject (user id),
// role, and display name for push registration and room navigation.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name"`
}

// UserID returns the token subject.
func (c *Claims) UserID() string { return c.Subject }

// Expired reports whether the token's exp claim has passed at the given time.
// A token without exp is treated as unexpired.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.After(now)
}

// Parse extracts claims from tokenString without verifying the signature: the
// agent holds no server key, and the backend re-validates the token on every
// request. Returns ErrNoToken for an empty string.
func Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

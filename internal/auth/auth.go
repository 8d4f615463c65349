// Package auth verifies bearer tokens and defines the roles that gate
// event creation.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is an application role
type Role string

const (
	RoleUser        Role = "user"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

var (
	// ErrForbidden is returned when the actor's role does not allow the action
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidToken covers malformed, expired or wrongly signed tokens
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret means no signing secret is configured
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// ParseRole accepts a stored role name. Empty means RoleUser.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleUser, nil
	case RoleUser, RoleCoordinator, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// CanCreateEvents reports whether the role may submit events
func (r Role) CanCreateEvents() bool {
	return r == RoleCoordinator || r == RoleAdmin
}

// Principal is the authenticated caller
type Principal struct {
	ID    string
	Email string
}

// Claims are the token claims we read. Role is informational; authorization
// uses the role stored for the user.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principal returns the caller identified by c
func (c *Claims) Principal() Principal {
	return Principal{ID: c.Subject, Email: c.Email}
}

// JWTManager signs and validates HS256 tokens
type JWTManager struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	now        func() time.Time
}

// NewJWTManager creates a manager. issuer, when set, is both written to
// generated tokens and required on validated ones.
func NewJWTManager(secret string, expiration time.Duration, issuer string) *JWTManager {
	return &JWTManager{
		secret:     []byte(secret),
		expiration: expiration,
		issuer:     issuer,
		now:        time.Now,
	}
}

// GenerateToken issues a token for a user
func (m *JWTManager) GenerateToken(userID, email string) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrMissingSecret
	}

	now := m.now()
	claims := &Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates a token and returns its claims. A token without a
// subject is rejected.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

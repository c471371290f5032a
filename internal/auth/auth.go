// Package auth handles password hashing, bearer tokens and role checks.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Email  string
	Roles  []model.Role
}

// Authorize reports whether p holds at least one of the required roles.
// An empty requirement only demands an authenticated principal.
func Authorize(p *Principal, required ...model.Role) bool {
	if p == nil {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

type claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens constructs a Tokens signer.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an access token for u.
func (t *Tokens) Issue(u *model.User) (string, error) {
	now := t.now()
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	c := claims{
		Email: u.Email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns the principal it carries.
func (t *Tokens) Verify(token string) (*Principal, error) {
	var c claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	if c.ExpiresAt == nil || !c.ExpiresAt.After(t.now()) {
		return nil, ErrInvalidToken
	}

	p := &Principal{UserID: c.Subject, Email: c.Email, Roles: make([]model.Role, len(c.Roles))}
	for i, r := range c.Roles {
		p.Roles[i] = model.Role(r)
	}
	return p, nil
}

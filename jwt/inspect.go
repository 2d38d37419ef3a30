package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Inspect for opaque tokens.
var ErrNotJWT = errors.New("token is not a JWT")

// Claims is the unverified view of a session token.
type Claims struct {
	Subject   string
	Company   string
	ID        string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Inspect decodes token without checking its signature. Callers must not trust the result
// for authorization; it only tells the client when the token is about to lapse.
func Inspect(token string) (*Claims, error) {
	if strings.Count(token, ".") != 2 {
		return nil, ErrNotJWT
	}
	var ac AccessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &ac); err != nil {
		return nil, errors.Join(ErrNotJWT, err)
	}

	c := &Claims{Subject: ac.Subject, Company: ac.Company, ID: ac.ID}
	if ac.ExpiresAt != nil {
		c.ExpiresAt = ac.ExpiresAt.Time
	}
	if ac.IssuedAt != nil {
		c.IssuedAt = ac.IssuedAt.Time
	}
	return c, nil
}

// ExpiresWithin reports whether token expires before now+window. Opaque tokens and tokens
// without an exp claim report false.
func ExpiresWithin(token string, window time.Duration, now time.Time) bool {
	c, err := Inspect(token)
	if err != nil || c.ExpiresAt.IsZero() {
		return false
	}
	return c.ExpiresAt.Before(now.Add(window))
}

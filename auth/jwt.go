// Package auth turns bearer tokens into the caller identity used by the
// access policy.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agdev/storagegate"
)

const issuer = "storagegate"

// Claims carries the subject (user id) and the client id that access checks
// compare against a domain's folder.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// Verifier signs and parses HS256 tokens with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("new verifier: %w: empty secret", storagegate.ErrInvalidInput)
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Issue returns a signed token for the caller valid for ttl.
func (v *Verifier) Issue(caller storagegate.Caller, ttl time.Duration) (string, error) {
	if caller.UserID == "" || caller.ClientID == "" {
		return "", fmt.Errorf("issue token: %w: user id and client id are required", storagegate.ErrInvalidInput)
	}
	now := v.now()
	claims := Claims{
		ClientID: caller.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return s, nil
}

// Verify parses a token and returns the caller it identifies. Any failure is
// reported as storagegate.ErrUnauthenticated.
func (v *Verifier) Verify(token string) (storagegate.Caller, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return storagegate.Caller{}, fmt.Errorf("%w: %w", storagegate.ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return storagegate.Caller{}, fmt.Errorf("%w: invalid token", storagegate.ErrUnauthenticated)
	}
	if claims.Subject == "" || claims.ClientID == "" {
		return storagegate.Caller{}, fmt.Errorf("%w: token lacks sub or client_id", storagegate.ErrUnauthenticated)
	}
	return storagegate.Caller{UserID: claims.Subject, ClientID: claims.ClientID}, nil
}

var errNoBearer = errors.New("missing bearer token")

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", fmt.Errorf("%w: %w", storagegate.ErrUnauthenticated, errNoBearer)
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package auth

import (
	"crypto/rand"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// SigningKeyBytes is the size of a generated token signing key.
const SigningKeyBytes = 32

// Claims is the payload of a session token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 session tokens.
//
// With a zero lifetime every token is stamped with the Unix epoch as its
// expiry, so it is already expired when issued and never validates. A
// positive lifetime sets the expiry to issue time plus lifetime.
type TokenService struct {
	key      []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenService creates a TokenService signing with key.
func NewTokenService(key []byte, lifetime time.Duration) (*TokenService, error) {
	if len(key) == 0 {
		return nil, oops.Code("TOKEN_KEY_REQUIRED").Errorf("signing key cannot be empty")
	}
	if lifetime < 0 {
		return nil, oops.Code("TOKEN_INVALID_LIFETIME").Errorf("session lifetime cannot be negative, got %s", lifetime)
	}
	return &TokenService{key: key, lifetime: lifetime, now: time.Now}, nil
}

// GenerateSigningKey returns SigningKeyBytes of cryptographic randomness.
func GenerateSigningKey() ([]byte, error) {
	key := make([]byte, SigningKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, oops.Code("TOKEN_KEY_GENERATION_FAILED").Wrap(err)
	}
	return key, nil
}

// Lifetime returns the configured session lifetime; zero means tokens are
// issued already expired.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for subject.
func (s *TokenService) Issue(subject string) (string, error) {
	if subject == "" {
		return "", oops.Code("TOKEN_SUBJECT_REQUIRED").Wrap(ErrValidation)
	}

	expires := time.Unix(0, 0)
	if s.lifetime > 0 {
		expires = s.now().Add(s.lifetime)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Validate parses token and returns its claims. Every failure, whatever the
// cause, is reported as ErrInvalidToken; the cause is kept in the oops
// context under "reason".
func (s *TokenService) Validate(token string) (Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, oops.Code("TOKEN_INVALID").With("reason", err.Error()).Wrap(ErrInvalidToken)
	}
	if claims.Subject == "" {
		return Claims{}, oops.Code("TOKEN_INVALID").With("reason", "missing subject").Wrap(ErrInvalidToken)
	}
	return Claims{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/breadsocial/bread/pkg/errutil"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "api-token"

// TokenValidator validates session tokens.
type TokenValidator interface {
	Validate(token string) (Claims, error)
}

// Guard turns an inbound session cookie value into Claims. It keeps no
// state between requests.
type Guard struct {
	tokens TokenValidator
	logger *slog.Logger
}

// NewGuard creates a Guard. A nil logger discards rejection reasons.
func NewGuard(tokens TokenValidator, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guard{tokens: tokens, logger: logger}
}

// AuthenticateRequest validates cookieValue. Every rejection is
// ErrUnauthorized; the underlying reason is logged at debug level only.
func (g *Guard) AuthenticateRequest(ctx context.Context, cookieValue string) (Claims, error) {
	if cookieValue == "" {
		g.logger.DebugContext(ctx, "request rejected", "reason", "missing session cookie")
		return Claims{}, unauthorized()
	}
	claims, err := g.tokens.Validate(cookieValue)
	if err != nil {
		g.logger.DebugContext(ctx, "request rejected", errutil.Attrs(err)...)
		return Claims{}, unauthorized()
	}
	return claims, nil
}

func unauthorized() error {
	return oops.Code("AUTH_UNAUTHORIZED").Wrap(ErrUnauthorized)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package auth

import "errors"

// Error kinds returned by this package. Callers match them with errors.Is;
// the wrapping oops error carries the code and context for logging.
var (
	// ErrValidation is returned for rejected input, including a duplicate name.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is returned when a name/password pair does not
	// authenticate, or an identity no longer resolves to a user.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnauthorized is the only rejection the request guard reveals.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrHash is returned when a stored password hash cannot be parsed.
	ErrHash = errors.New("malformed password hash")

	// ErrInvalidToken is returned for any session token that fails validation.
	ErrInvalidToken = errors.New("invalid session token")
)

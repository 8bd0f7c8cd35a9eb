// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

// Package auth provides credentials, session tokens and user accounts for
// Bread.
//
// # Components
//
//   - Argon2idHasher - hashes and verifies passwords (PHC strings)
//   - TokenService - issues and validates HS256 session tokens
//   - UserDirectory - stores users in the document store, unique by name
//   - Guard - turns a session cookie value into Claims or ErrUnauthorized
//
// # Services
//
// Service combines the components into the account operations exposed to
// the HTTP layer: Register, Login, ChangePassword, DeleteAccount and
// AuthenticateRequest. Identities are the Claims of a validated token; the
// service resolves Claims.Subject to a user by name.
//
// # Errors
//
// Errors are oops errors wrapping one of the sentinels in errors.go. Match
// them with errors.Is.
package auth

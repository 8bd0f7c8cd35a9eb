// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/breadsocial/bread/internal/docstore"
	"github.com/breadsocial/bread/pkg/errutil"
)

// Session is the result of a successful login.
type Session struct {
	User  *User
	Token string
}

// Service exposes the account operations: registration, login, password
// change, account deletion and request authentication.
type Service struct {
	users     UserRepository
	hasher    PasswordHasher
	tokens    *TokenService
	guard     *Guard
	logger    *slog.Logger
	dummyHash string
}

// NewAuthService creates a Service. It hashes a random throwaway password
// once so that logins for unknown names pay the same verification cost as
// real ones.
func NewAuthService(users UserRepository, hasher PasswordHasher, tokens *TokenService, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	seed, err := GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(string(seed))
	if err != nil {
		return nil, oops.Code("AUTH_DUMMY_HASH_FAILED").Wrap(err)
	}

	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		guard:     NewGuard(tokens, logger),
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// Register creates a user and returns its identifier. A taken name is an
// ErrValidation error.
func (s *Service) Register(ctx context.Context, name, password string) (docstore.ID, error) {
	id, err := s.users.Register(ctx, name, password)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", id.String(), "name", name)
	return id, nil
}

// Login verifies name and password and issues a session token. Unknown
// names and wrong passwords both return ErrInvalidCredentials; unknown
// names still run a full verification against a dummy hash.
func (s *Service) Login(ctx context.Context, name, password string) (*Session, error) {
	user, err := s.users.FindByName(ctx, name)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "find user").Wrap(err)
	}

	target := s.dummyHash
	if user != nil {
		target = user.Password
	}

	valid, verifyErr := s.hasher.Verify(password, target)
	if user == nil {
		return nil, invalidCredentials()
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}
	if !valid {
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsRehash(user.Password) {
		s.rehash(ctx, user, password)
	}

	token, err := s.tokens.Issue(user.Name)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue token").Wrap(err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	return &Session{User: user, Token: token}, nil
}

// rehash upgrades a hash made with outdated cost parameters. Login succeeds
// whether or not the upgrade is stored.
func (s *Service) rehash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password rehash failed", err)
		return
	}
	if err := s.users.ChangePassword(ctx, user.Name, hash); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password rehash failed", err)
		return
	}
	user.Password = hash
}

// ChangePassword replaces the password of the user identified by identity
// after re-verifying oldPassword.
func (s *Service) ChangePassword(ctx context.Context, identity Claims, oldPassword, newPassword string) error {
	user, err := s.ResolveUser(ctx, identity)
	if err != nil {
		return err
	}

	valid, err := s.hasher.Verify(oldPassword, user.Password)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}
	if !valid {
		return oops.Code("AUTH_OLD_PASSWORD_INCORRECT").
			With("user_id", user.ID.String()).
			Wrap(ErrInvalidCredentials)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.ChangePassword(ctx, user.Name, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidCredentials()
		}
		return err
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", user.ID.String())
	return nil
}

// DeleteAccount removes the user identified by identity. Their posts stay.
func (s *Service) DeleteAccount(ctx context.Context, identity Claims) error {
	user, err := s.ResolveUser(ctx, identity)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account deleted", "user_id", user.ID.String())
	return nil
}

// AuthenticateRequest validates a session cookie value.
func (s *Service) AuthenticateRequest(ctx context.Context, cookieValue string) (Claims, error) {
	return s.guard.AuthenticateRequest(ctx, cookieValue)
}

// ResolveUser loads the user named by identity.Subject. A subject that no
// longer names a user is ErrInvalidCredentials.
func (s *Service) ResolveUser(ctx context.Context, identity Claims) (*User, error) {
	user, err := s.users.FindByName(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, oops.Code("AUTH_IDENTITY_UNKNOWN").
			With("subject", identity.Subject).
			Wrap(ErrInvalidCredentials)
	}
	return user, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package post

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"

	"github.com/breadsocial/bread/internal/auth"
	"github.com/breadsocial/bread/internal/docstore"
)

// IdentityResolver maps validated claims to the user they name.
type IdentityResolver interface {
	ResolveUser(ctx context.Context, identity auth.Claims) (*auth.User, error)
}

// Service exposes the post operations to the HTTP layer.
type Service struct {
	posts  *Store
	users  IdentityResolver
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(posts *Store, users IdentityResolver, logger *slog.Logger) (*Service, error) {
	if posts == nil {
		return nil, oops.Errorf("post store is required")
	}
	if users == nil {
		return nil, oops.Errorf("identity resolver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{posts: posts, users: users, logger: logger}, nil
}

// Submit creates a post authored by identity. At least one of content and
// image must be non-empty.
func (s *Service) Submit(ctx context.Context, identity auth.Claims, content, image string) (docstore.ID, error) {
	if content == "" && image == "" {
		return "", oops.Code("POST_EMPTY").Wrap(fmt.Errorf("%w: content or image is required", ErrValidation))
	}
	user, err := s.users.ResolveUser(ctx, identity)
	if err != nil {
		return "", err
	}

	id, err := s.posts.Insert(ctx, s.posts.New(user.ID, content, image))
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "post created", "post_id", id.String(), "author", user.ID.String())
	return id, nil
}

// DeletePost deletes postID on behalf of identity.
func (s *Service) DeletePost(ctx context.Context, identity auth.Claims, postID docstore.ID) error {
	user, err := s.users.ResolveUser(ctx, identity)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, user.ID, postID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "post deleted", "post_id", postID.String(), "author", user.ID.String())
	return nil
}

// RandomPost returns a uniformly sampled post. Each call is an independent
// draw.
func (s *Service) RandomPost(ctx context.Context) (*Post, error) {
	return s.posts.SampleRandom(ctx)
}

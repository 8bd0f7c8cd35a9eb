// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

// Package post stores posts and enforces that only a post's author may
// delete it.
package post

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/breadsocial/bread/internal/docstore"
)

// Collection is the document collection holding posts.
const Collection = "posts"

// Post is a user's post. ID is empty until the post has been inserted.
// Author references a user and does not keep it alive: deleting the user
// leaves the post in place.
type Post struct {
	ID      docstore.ID `bson:"_id,omitempty" json:"_id,omitempty"`
	Author  docstore.ID `bson:"author" json:"author"`
	Content *string     `bson:"content,omitempty" json:"content,omitempty"`
	Image   *string     `bson:"image,omitempty" json:"image,omitempty"`
}

// Persisted reports whether the post has been inserted.
func (p *Post) Persisted() bool {
	return !p.ID.IsZero()
}

// Store persists posts in the posts collection.
type Store struct {
	store docstore.Store
}

// NewStore creates a Store over store.
func NewStore(store docstore.Store) *Store {
	return &Store{store: store}
}

// New builds a draft post. Empty content or image means absent.
func (s *Store) New(author docstore.ID, content, image string) *Post {
	p := &Post{Author: author}
	if content != "" {
		p.Content = &content
	}
	if image != "" {
		p.Image = &image
	}
	return p
}

// Insert stores a draft and sets its ID.
func (s *Store) Insert(ctx context.Context, p *Post) (docstore.ID, error) {
	if p.Persisted() {
		return "", oops.Code("POST_ALREADY_PERSISTED").
			With("post_id", p.ID.String()).
			Wrap(fmt.Errorf("%w: post already has an identifier", ErrValidation))
	}
	if p.Author.IsZero() {
		return "", oops.Code("POST_AUTHOR_REQUIRED").Wrap(fmt.Errorf("%w: author is required", ErrValidation))
	}

	id, err := s.store.InsertOne(ctx, Collection, p)
	if err != nil {
		return "", oops.Code("POST_INSERT_FAILED").With("author", p.Author.String()).Wrap(err)
	}
	p.ID = id
	return id, nil
}

// FindByID returns the post with id, or nil if there is none.
func (s *Store) FindByID(ctx context.Context, id docstore.ID) (*Post, error) {
	if id.IsZero() {
		return nil, nil
	}
	var p Post
	err := s.store.FindOne(ctx, Collection, docstore.ByID(id), &p)
	if errors.Is(err, docstore.ErrNoDocument) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("POST_LOOKUP_FAILED").With("post_id", id.String()).Wrap(err)
	}
	return &p, nil
}

// Delete removes postID if requester is its author.
//
// The ownership check and the delete are separate store calls. If the post
// disappears between them the result is ErrNotFound. The delete filter also
// matches on author, so a post can never be removed by anyone else.
func (s *Store) Delete(ctx context.Context, requester, postID docstore.ID) error {
	p, err := s.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if p == nil {
		return notFound(postID)
	}
	if p.Author != requester {
		return oops.Code("POST_FORBIDDEN").
			With("post_id", postID.String()).
			With("requester", requester.String()).
			Wrap(ErrForbidden)
	}

	err = s.store.DeleteOne(ctx, Collection, docstore.Filter{
		docstore.IDField: postID,
		"author":         requester,
	})
	if errors.Is(err, docstore.ErrNoDocument) {
		return notFound(postID)
	}
	if err != nil {
		return oops.Code("POST_DELETE_FAILED").With("post_id", postID.String()).Wrap(err)
	}
	return nil
}

// SampleRandom returns one post chosen by the store uniformly at random.
func (s *Store) SampleRandom(ctx context.Context) (*Post, error) {
	var p Post
	err := s.store.SampleOne(ctx, Collection, &p)
	if errors.Is(err, docstore.ErrNoDocument) {
		return nil, oops.Code("POST_NONE").Wrap(fmt.Errorf("%w: no posts yet", ErrNotFound))
	}
	if err != nil {
		return nil, oops.Code("POST_SAMPLE_FAILED").Wrap(err)
	}
	return &p, nil
}

func notFound(id docstore.ID) error {
	return oops.Code("POST_NOT_FOUND").With("post_id", id.String()).Wrap(ErrNotFound)
}

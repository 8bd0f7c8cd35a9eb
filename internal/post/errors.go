// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package post

import "errors"

var (
	// ErrNotFound is returned for a missing post or an empty collection.
	ErrNotFound = errors.New("post not found")

	// ErrForbidden is returned when a non-author tries to delete a post.
	ErrForbidden = errors.New("only the author may delete a post")

	// ErrValidation is returned for a post that cannot be inserted.
	ErrValidation = errors.New("invalid post")
)

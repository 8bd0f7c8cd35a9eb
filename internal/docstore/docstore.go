// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

// Package docstore defines the document-store contract that the user and
// post layers are written against.
//
// A Store addresses documents by collection name. Documents are plain Go
// structs carrying both `bson` and `json` tags; the identifier field must be
// tagged `_id,omitempty` and typed ID so that every backend can assign it.
// Backends live in the mongo, postgres and memory subpackages.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// IDField is the document key every backend uses for the identifier.
const IDField = "_id"

var (
	// ErrNoDocument is returned when a filter or sample matches nothing.
	ErrNoDocument = errors.New("no document")

	// ErrDuplicateKey is returned when an insert or update violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrStore marks a failure of the backing store itself (unreachable,
	// rejected operation, undecodable document).
	ErrStore = errors.New("store error")
)

// Filter selects documents by top-level field equality.
type Filter map[string]any

// ByID returns a filter matching the document with the given identifier.
func ByID(id ID) Filter {
	return Filter{IDField: id}
}

// Fields is a set of top-level field assignments applied by UpdateOne.
type Fields map[string]any

// Store is the collaborator contract consumed by the user and post layers.
// Every method is a single round-trip; no method retries.
type Store interface {
	// InsertOne stores doc in collection and returns the identifier the
	// store assigned. Returns ErrDuplicateKey on unique index violation.
	InsertOne(ctx context.Context, collection string, doc any) (ID, error)

	// FindOne decodes the first document matching filter into out.
	// Returns ErrNoDocument when nothing matches.
	FindOne(ctx context.Context, collection string, filter Filter, out any) error

	// UpdateOne sets fields on the first document matching filter.
	// Returns ErrNoDocument when nothing matches.
	UpdateOne(ctx context.Context, collection string, filter Filter, fields Fields) error

	// DeleteOne removes the first document matching filter.
	// Returns ErrNoDocument when nothing matches.
	DeleteOne(ctx context.Context, collection string, filter Filter) error

	// SampleOne decodes one document chosen uniformly at random by the
	// store into out. Returns ErrNoDocument for an empty collection.
	SampleOne(ctx context.Context, collection string, out any) error

	// EnsureUnique creates a unique index on field if it does not exist.
	EnsureUnique(ctx context.Context, collection, field string) error

	// Close releases the store's connections.
	Close(ctx context.Context) error
}

// Failure wraps a backend error as ErrStore with operation context.
func Failure(operation, collection string, err error) error {
	return oops.Code("STORE_OPERATION_FAILED").
		With("operation", operation).
		With("collection", collection).
		Wrap(fmt.Errorf("%w: %w", ErrStore, err))
}

// NotFound wraps ErrNoDocument with operation context.
func NotFound(operation, collection string) error {
	return oops.Code("STORE_NO_DOCUMENT").
		With("operation", operation).
		With("collection", collection).
		Wrap(ErrNoDocument)
}

// Duplicate wraps ErrDuplicateKey with operation context.
func Duplicate(operation, collection string, err error) error {
	return oops.Code("STORE_DUPLICATE_KEY").
		With("operation", operation).
		With("collection", collection).
		With("cause", err.Error()).
		Wrap(ErrDuplicateKey)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

// Package postgres implements docstore.Store on a single PostgreSQL table of
// JSONB documents. Field names come from the `json` tags of stored structs.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/breadsocial/bread/internal/docstore"
)

// poolIface is the subset of pgxpool.Pool the store uses, so tests can
// substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store is a docstore.Store backed by the documents table.
type Store struct {
	pool poolIface
}

// Connect opens a connection pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("POSTGRES_CONNECT_FAILED").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("POSTGRES_PING_FAILED").Wrap(err)
	}
	return New(pool), nil
}

// New wraps an existing pool. The documents table must already exist; see
// Migrator.
func New(pool poolIface) *Store {
	return &Store{pool: pool}
}

// InsertOne stores doc under a fresh ULID.
func (s *Store) InsertOne(ctx context.Context, collection string, doc any) (docstore.ID, error) {
	body, err := normalize(doc)
	if err != nil {
		return "", docstore.Failure("insert", collection, err)
	}
	id := ulid.Make().String()
	body[docstore.IDField] = id

	data, err := json.Marshal(body)
	if err != nil {
		return "", docstore.Failure("insert", collection, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)`,
		collection, id, data)
	if err != nil {
		return "", classify("insert", collection, err)
	}
	return docstore.ID(id), nil
}

// FindOne decodes the first document whose body contains filter.
func (s *Store) FindOne(ctx context.Context, collection string, filter docstore.Filter, out any) error {
	want, err := json.Marshal(filter)
	if err != nil {
		return docstore.Failure("find", collection, err)
	}

	var data []byte
	err = s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND body @> $2::jsonb LIMIT 1`,
		collection, want).Scan(&data)
	return decode("find", collection, data, err, out)
}

// UpdateOne merges fields into the first matching document.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter docstore.Filter, fields docstore.Fields) error {
	want, err := json.Marshal(filter)
	if err != nil {
		return docstore.Failure("update", collection, err)
	}
	set := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != docstore.IDField {
			set[k] = v
		}
	}
	patch, err := json.Marshal(set)
	if err != nil {
		return docstore.Failure("update", collection, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET body = body || $3::jsonb
		 WHERE collection = $1 AND id = (
		     SELECT id FROM documents WHERE collection = $1 AND body @> $2::jsonb LIMIT 1
		 )`,
		collection, want, patch)
	if err != nil {
		return classify("update", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.NotFound("update", collection)
	}
	return nil
}

// DeleteOne removes the first matching document.
func (s *Store) DeleteOne(ctx context.Context, collection string, filter docstore.Filter) error {
	want, err := json.Marshal(filter)
	if err != nil {
		return docstore.Failure("delete", collection, err)
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents
		 WHERE collection = $1 AND id = (
		     SELECT id FROM documents WHERE collection = $1 AND body @> $2::jsonb LIMIT 1
		 )`,
		collection, want)
	if err != nil {
		return classify("delete", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.NotFound("delete", collection)
	}
	return nil
}

// SampleOne decodes one randomly ordered document.
func (s *Store) SampleOne(ctx context.Context, collection string, out any) error {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 ORDER BY random() LIMIT 1`,
		collection).Scan(&data)
	return decode("sample", collection, data, err, out)
}

// EnsureUnique creates a partial unique expression index on the field's text
// value within collection.
func (s *Store) EnsureUnique(ctx context.Context, collection, field string) error {
	if !identifier.MatchString(collection) || !identifier.MatchString(field) {
		return oops.Code("POSTGRES_INVALID_IDENTIFIER").
			With("collection", collection).
			With("field", field).
			Errorf("collection and field must match %s", identifier)
	}

	stmt := fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS documents_%[1]s_%[2]s_key ON documents ((body->>'%[2]s')) WHERE collection = '%[1]s'`,
		collection, field)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return docstore.Failure("ensure_unique", collection, err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func normalize(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("document must encode to a JSON object")
	}
	return m, nil
}

func decode(operation, collection string, data []byte, err error, out any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.NotFound(operation, collection)
	}
	if err != nil {
		return classify(operation, collection, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return docstore.Failure(operation, collection, err)
	}
	return nil
}

func classify(operation, collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return docstore.Duplicate(operation, collection, err)
	}
	return docstore.Failure(operation, collection, err)
}

var _ docstore.Store = (*Store)(nil)

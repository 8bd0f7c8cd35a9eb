// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

// Package memory provides an in-process docstore.Store for development and
// tests. Documents are normalized through encoding/json, so the `json` tags
// of stored structs decide field names just as they do for the postgres
// backend.
package memory

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"reflect"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/breadsocial/bread/internal/docstore"
)

type document map[string]any

// Store is a mutex-guarded map of collections.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]document
	unique      map[string]map[string]struct{}
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		collections: make(map[string][]document),
		unique:      make(map[string]map[string]struct{}),
	}
}

// InsertOne stores doc and returns a fresh ULID identifier.
func (s *Store) InsertOne(_ context.Context, collection string, doc any) (docstore.ID, error) {
	normalized, err := normalize(doc)
	if err != nil {
		return "", docstore.Failure("insert", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for field := range s.unique[collection] {
		if s.conflicts(collection, field, normalized[field], "") {
			return "", docstore.Duplicate("insert", collection, errDuplicate(field))
		}
	}

	id := docstore.ID(ulid.Make().String())
	normalized[docstore.IDField] = id.String()
	s.collections[collection] = append(s.collections[collection], normalized)
	return id, nil
}

// FindOne decodes the first matching document into out.
func (s *Store) FindOne(_ context.Context, collection string, filter docstore.Filter, out any) error {
	want, err := normalize(filter)
	if err != nil {
		return docstore.Failure("find", collection, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(collection, want)
	if idx < 0 {
		return docstore.NotFound("find", collection)
	}
	return decode(collection, "find", s.collections[collection][idx], out)
}

// UpdateOne assigns fields on the first matching document.
func (s *Store) UpdateOne(_ context.Context, collection string, filter docstore.Filter, fields docstore.Fields) error {
	want, err := normalize(filter)
	if err != nil {
		return docstore.Failure("update", collection, err)
	}
	set, err := normalize(fields)
	if err != nil {
		return docstore.Failure("update", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(collection, want)
	if idx < 0 {
		return docstore.NotFound("update", collection)
	}
	doc := s.collections[collection][idx]
	self, _ := doc[docstore.IDField].(string)
	for field := range s.unique[collection] {
		if v, ok := set[field]; ok && s.conflicts(collection, field, v, self) {
			return docstore.Duplicate("update", collection, errDuplicate(field))
		}
	}
	for k, v := range set {
		doc[k] = v
	}
	return nil
}

// DeleteOne removes the first matching document.
func (s *Store) DeleteOne(_ context.Context, collection string, filter docstore.Filter) error {
	want, err := normalize(filter)
	if err != nil {
		return docstore.Failure("delete", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(collection, want)
	if idx < 0 {
		return docstore.NotFound("delete", collection)
	}
	docs := s.collections[collection]
	s.collections[collection] = append(docs[:idx], docs[idx+1:]...)
	return nil
}

// SampleOne decodes a uniformly chosen document into out.
func (s *Store) SampleOne(_ context.Context, collection string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[collection]
	if len(docs) == 0 {
		return docstore.NotFound("sample", collection)
	}
	return decode(collection, "sample", docs[rand.IntN(len(docs))], out) //nolint:gosec // sampling, not security
}

// EnsureUnique enforces uniqueness of field on later inserts and updates.
// Existing duplicates are not rejected retroactively.
func (s *Store) EnsureUnique(_ context.Context, collection, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unique[collection] == nil {
		s.unique[collection] = make(map[string]struct{})
	}
	s.unique[collection][field] = struct{}{}
	return nil
}

// Close is a no-op.
func (s *Store) Close(context.Context) error {
	return nil
}

// Len returns the number of documents in collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *Store) indexOf(collection string, want document) int {
	for i, doc := range s.collections[collection] {
		if matches(doc, want) {
			return i
		}
	}
	return -1
}

// conflicts reports whether another document already holds value in field.
func (s *Store) conflicts(collection, field string, value any, selfID string) bool {
	if value == nil {
		return false
	}
	for _, doc := range s.collections[collection] {
		if id, _ := doc[docstore.IDField].(string); id == selfID && selfID != "" {
			continue
		}
		if reflect.DeepEqual(doc[field], value) {
			return true
		}
	}
	return false
}

func matches(doc, want document) bool {
	for k, v := range want {
		if !reflect.DeepEqual(doc[k], v) {
			return false
		}
	}
	return true
}

// normalize turns any JSON-encodable value into a generic map.
func normalize(v any) (document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decode(collection, operation string, doc document, out any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return docstore.Failure(operation, collection, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return docstore.Failure(operation, collection, err)
	}
	return nil
}

type errDuplicate string

func (e errDuplicate) Error() string {
	return "unique index violated on field " + string(e)
}

var _ docstore.Store = (*Store)(nil)

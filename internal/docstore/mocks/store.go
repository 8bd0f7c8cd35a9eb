// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

// Package mocks provides testify mocks for docstore interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/breadsocial/bread/internal/docstore"
)

// MockStore is a mock docstore.Store.
type MockStore struct {
	mock.Mock
}

// NewMockStore creates a MockStore whose expectations are asserted when the
// test ends.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// InsertOne implements docstore.Store.
func (m *MockStore) InsertOne(ctx context.Context, collection string, doc any) (docstore.ID, error) {
	args := m.Called(ctx, collection, doc)
	return args.Get(0).(docstore.ID), args.Error(1)
}

// FindOne implements docstore.Store. Use Run to populate out.
func (m *MockStore) FindOne(ctx context.Context, collection string, filter docstore.Filter, out any) error {
	args := m.Called(ctx, collection, filter, out)
	return args.Error(0)
}

// UpdateOne implements docstore.Store.
func (m *MockStore) UpdateOne(ctx context.Context, collection string, filter docstore.Filter, fields docstore.Fields) error {
	args := m.Called(ctx, collection, filter, fields)
	return args.Error(0)
}

// DeleteOne implements docstore.Store.
func (m *MockStore) DeleteOne(ctx context.Context, collection string, filter docstore.Filter) error {
	args := m.Called(ctx, collection, filter)
	return args.Error(0)
}

// SampleOne implements docstore.Store.
func (m *MockStore) SampleOne(ctx context.Context, collection string, out any) error {
	args := m.Called(ctx, collection, out)
	return args.Error(0)
}

// EnsureUnique implements docstore.Store.
func (m *MockStore) EnsureUnique(ctx context.Context, collection, field string) error {
	args := m.Called(ctx, collection, field)
	return args.Error(0)
}

// Close implements docstore.Store.
func (m *MockStore) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ docstore.Store = (*MockStore)(nil)

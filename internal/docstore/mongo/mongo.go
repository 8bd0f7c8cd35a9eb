// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

// Package mongo implements docstore.Store on a MongoDB database.
package mongo

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/breadsocial/bread/internal/docstore"
)

// Store is a docstore.Store backed by one MongoDB database.
type Store struct {
	db *mongo.Database
}

// Connect dials uri, verifies the connection with a ping and returns a Store
// over database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, oops.Code("MONGO_CONNECT_FAILED").With("database", database).Wrap(err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, oops.Code("MONGO_PING_FAILED").With("database", database).Wrap(err)
	}
	return New(client.Database(database)), nil
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// InsertOne inserts doc and returns the ObjectID the server assigned, as hex.
func (s *Store) InsertOne(ctx context.Context, collection string, doc any) (docstore.ID, error) {
	res, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return "", classify("insert", collection, err)
	}
	switch id := res.InsertedID.(type) {
	case primitive.ObjectID:
		return docstore.ID(id.Hex()), nil
	case string:
		return docstore.ID(id), nil
	default:
		return "", docstore.Failure("insert", collection, oops.Errorf("unexpected inserted id type %T", res.InsertedID))
	}
}

// FindOne decodes the first matching document into out.
func (s *Store) FindOne(ctx context.Context, collection string, filter docstore.Filter, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, toBSON(filter)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.NotFound("find", collection)
	}
	if err != nil {
		return classify("find", collection, err)
	}
	return nil
}

// UpdateOne applies fields with $set to the first matching document.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter docstore.Filter, fields docstore.Fields) error {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, toBSON(filter), bson.M{"$set": set})
	if err != nil {
		return classify("update", collection, err)
	}
	if res.MatchedCount == 0 {
		return docstore.NotFound("update", collection)
	}
	return nil
}

// DeleteOne removes the first matching document.
func (s *Store) DeleteOne(ctx context.Context, collection string, filter docstore.Filter) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, toBSON(filter))
	if err != nil {
		return classify("delete", collection, err)
	}
	if res.DeletedCount == 0 {
		return docstore.NotFound("delete", collection)
	}
	return nil
}

// SampleOne draws one document with the $sample aggregation stage.
func (s *Store) SampleOne(ctx context.Context, collection string, out any) error {
	pipeline := mongo.Pipeline{{{Key: "$sample", Value: bson.D{{Key: "size", Value: 1}}}}}
	cur, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return classify("sample", collection, err)
	}
	defer func() { _ = cur.Close(ctx) }()

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return classify("sample", collection, err)
		}
		return docstore.NotFound("sample", collection)
	}
	if err := cur.Decode(out); err != nil {
		return docstore.Failure("sample", collection, err)
	}
	return nil
}

// EnsureUnique creates an ascending unique index on field.
func (s *Store) EnsureUnique(ctx context.Context, collection, field string) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := s.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
		return docstore.Failure("ensure_unique", collection, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.db.Client().Disconnect(ctx); err != nil {
		return oops.Code("MONGO_DISCONNECT_FAILED").Wrap(err)
	}
	return nil
}

func toBSON(filter docstore.Filter) bson.M {
	m := make(bson.M, len(filter))
	for k, v := range filter {
		m[k] = v
	}
	return m
}

func classify(operation, collection string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return docstore.Duplicate(operation, collection, err)
	}
	return docstore.Failure(operation, collection, err)
}

var _ docstore.Store = (*Store)(nil)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/breadsocial/bread/internal/docstore"
)

const tracerName = "github.com/breadsocial/bread/internal/docstore"

// Store outcome labels.
const (
	StatusOK        = "ok"
	StatusNotFound  = "not_found"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// instrumentedStore counts and traces every call to the wrapped store.
type instrumentedStore struct {
	next    docstore.Store
	metrics *Metrics
	tracer  trace.Tracer
}

// InstrumentStore wraps next so each call increments
// bread_store_operations_total and runs inside an OpenTelemetry span.
func InstrumentStore(next docstore.Store, metrics *Metrics) docstore.Store {
	return &instrumentedStore{next: next, metrics: metrics, tracer: otel.Tracer(tracerName)}
}

func (s *instrumentedStore) observe(ctx context.Context, operation, collection string, call func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "docstore."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.operation", operation),
			attribute.String("db.collection", collection),
		),
	)
	defer span.End()

	err := call(ctx)
	status := outcome(err)
	s.metrics.StoreOperations.WithLabelValues(collection, operation, status).Inc()
	if status == StatusError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store operation failed")
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, docstore.ErrNoDocument):
		return StatusNotFound
	case errors.Is(err, docstore.ErrDuplicateKey):
		return StatusDuplicate
	default:
		return StatusError
	}
}

func (s *instrumentedStore) InsertOne(ctx context.Context, collection string, doc any) (docstore.ID, error) {
	var id docstore.ID
	err := s.observe(ctx, "insert", collection, func(ctx context.Context) error {
		var err error
		id, err = s.next.InsertOne(ctx, collection, doc)
		return err
	})
	return id, err
}

func (s *instrumentedStore) FindOne(ctx context.Context, collection string, filter docstore.Filter, out any) error {
	return s.observe(ctx, "find", collection, func(ctx context.Context) error {
		return s.next.FindOne(ctx, collection, filter, out)
	})
}

func (s *instrumentedStore) UpdateOne(ctx context.Context, collection string, filter docstore.Filter, fields docstore.Fields) error {
	return s.observe(ctx, "update", collection, func(ctx context.Context) error {
		return s.next.UpdateOne(ctx, collection, filter, fields)
	})
}

func (s *instrumentedStore) DeleteOne(ctx context.Context, collection string, filter docstore.Filter) error {
	return s.observe(ctx, "delete", collection, func(ctx context.Context) error {
		return s.next.DeleteOne(ctx, collection, filter)
	})
}

func (s *instrumentedStore) SampleOne(ctx context.Context, collection string, out any) error {
	return s.observe(ctx, "sample", collection, func(ctx context.Context) error {
		return s.next.SampleOne(ctx, collection, out)
	})
}

func (s *instrumentedStore) EnsureUnique(ctx context.Context, collection, field string) error {
	return s.observe(ctx, "ensure_unique", collection, func(ctx context.Context) error {
		return s.next.EnsureUnique(ctx, collection, field)
	})
}

func (s *instrumentedStore) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}

package docstore

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/geoguard/geoguard/pkg/docstore")

// OperationRecorder receives per-operation store telemetry
type OperationRecorder interface {
	ObserveStoreOperation(backend, operation string, err error, duration time.Duration)
}

// InstrumentedStore traces and times every call to another Store
type InstrumentedStore struct {
	next     Store
	backend  string
	recorder OperationRecorder
}

// NewInstrumentedStore wraps next; recorder may be nil
func NewInstrumentedStore(next Store, backend string, recorder OperationRecorder) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: backend, recorder: recorder}
}

func (s *InstrumentedStore) start(ctx context.Context, operation, collection string) (context.Context, trace.Span, time.Time) {
	ctx, span := tracer.Start(ctx, "docstore."+operation,
		trace.WithAttributes(
			attribute.String("docstore.backend", s.backend),
			attribute.String("docstore.collection", collection),
		),
	)
	return ctx, span, time.Now()
}

func (s *InstrumentedStore) end(span trace.Span, operation string, start time.Time, err error) {
	// a missing document is an answer, not a failure
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation+" failed")
	}
	span.End()

	if s.recorder != nil {
		s.recorder.ObserveStoreOperation(s.backend, operation, err, time.Since(start))
	}
}

// Insert implements Store.Insert
func (s *InstrumentedStore) Insert(ctx context.Context, collection string, data map[string]any) (string, error) {
	ctx, span, start := s.start(ctx, "insert", collection)
	id, err := s.next.Insert(ctx, collection, data)
	s.end(span, "insert", start, err)
	return id, err
}

// Put implements Store.Put
func (s *InstrumentedStore) Put(ctx context.Context, collection, id string, data map[string]any) error {
	ctx, span, start := s.start(ctx, "put", collection)
	err := s.next.Put(ctx, collection, id, data)
	s.end(span, "put", start, err)
	return err
}

// Get implements Store.Get
func (s *InstrumentedStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	ctx, span, start := s.start(ctx, "get", collection)
	doc, err := s.next.Get(ctx, collection, id)
	s.end(span, "get", start, err)
	return doc, err
}

// Query implements Store.Query
func (s *InstrumentedStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	ctx, span, start := s.start(ctx, "query", q.Collection)
	span.SetAttributes(attribute.Int("docstore.filters", len(q.Filters)))
	docs, err := s.next.Query(ctx, q)
	span.SetAttributes(attribute.Int("docstore.results", len(docs)))
	s.end(span, "query", start, err)
	return docs, err
}

// Update implements Store.Update
func (s *InstrumentedStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	ctx, span, start := s.start(ctx, "update", collection)
	err := s.next.Update(ctx, collection, id, fields)
	s.end(span, "update", start, err)
	return err
}

// Delete implements Store.Delete
func (s *InstrumentedStore) Delete(ctx context.Context, collection, id string) error {
	ctx, span, start := s.start(ctx, "delete", collection)
	err := s.next.Delete(ctx, collection, id)
	s.end(span, "delete", start, err)
	return err
}

// Close implements Store.Close
func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}

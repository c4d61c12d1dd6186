package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/geoguard/geoguard/pkg/docstore"
)

// StoreLogger writes audit events to the document store and serves searches over them
type StoreLogger struct {
	store docstore.Store
}

// NewStoreLogger creates a new StoreLogger
func NewStoreLogger(store docstore.Store) *StoreLogger {
	return &StoreLogger{store: store}
}

// Log implements Logger.Log
func (l *StoreLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	fields, err := docstore.Encode(event)
	if err != nil {
		return err
	}

	id, err := l.store.Insert(ctx, docstore.CollectionAudit, fields)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	event.ID = id
	return nil
}

// Search returns matching events, newest first
func (l *StoreLogger) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	q := docstore.Query{
		Collection: docstore.CollectionAudit,
		OrderBy:    "timestamp",
		Descending: true,
	}
	if filter.TenantID != "" {
		q.Filters = append(q.Filters, docstore.Where("tenant_id", filter.TenantID))
	}
	if filter.ActorID != "" {
		q.Filters = append(q.Filters, docstore.Where("actor_id", filter.ActorID))
	}
	if filter.EventType != "" {
		q.Filters = append(q.Filters, docstore.Where("event_type", string(filter.EventType)))
	}
	if filter.ResourceType != "" {
		q.Filters = append(q.Filters, docstore.Where("resource_type", string(filter.ResourceType)))
	}
	if filter.ResourceID != "" {
		q.Filters = append(q.Filters, docstore.Where("resource_id", filter.ResourceID))
	}
	// the time range is applied here, so the limit must be too
	docs, err := l.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}

	var events []*AuditEvent
	for _, doc := range docs {
		var event AuditEvent
		if err := docstore.Decode(doc, &event); err != nil {
			return nil, err
		}
		if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
			continue
		}
		events = append(events, &event)
		if filter.Limit > 0 && len(events) >= filter.Limit {
			break
		}
	}
	return events, nil
}

// Cleanup deletes events older than the retention window and returns how many were removed
func (l *StoreLogger) Cleanup(ctx context.Context, policy RetentionPolicy, now time.Time) (int, error) {
	if policy.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -policy.RetentionDays)

	docs, err := l.store.Query(ctx, docstore.Query{Collection: docstore.CollectionAudit})
	if err != nil {
		return 0, fmt.Errorf("failed to list audit events: %w", err)
	}

	removed := 0
	for _, doc := range docs {
		var event AuditEvent
		if err := docstore.Decode(doc, &event); err != nil {
			return removed, err
		}
		if !event.Timestamp.Before(cutoff) {
			continue
		}
		if err := l.store.Delete(ctx, docstore.CollectionAudit, doc.ID); err != nil {
			return removed, fmt.Errorf("failed to delete audit event %s: %w", doc.ID, err)
		}
		removed++
	}
	return removed, nil
}

// Close implements Logger.Close. The store is owned by the caller.
func (l *StoreLogger) Close() error {
	return nil
}

package audit

import (
	"context"
	"time"

	"github.com/geoguard/geoguard/pkg/contextkeys"
)

// Logger is a destination for audit events
type Logger interface {
	Log(ctx context.Context, event *AuditEvent) error
	// Close flushes and releases the destination
	Close() error
}

// NopLogger drops every event
type NopLogger struct{}

func (NopLogger) Log(context.Context, *AuditEvent) error { return nil }
func (NopLogger) Close() error                           { return nil }

// NewEvent starts an event stamped now, attributed to the user, tenant and
// request found in ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	return &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		ActorID:   contextkeys.GetUserID(ctx),
		TenantID:  contextkeys.GetTenantID(ctx),
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  map[string]interface{}{},
	}
}

// On sets the resource the event is about
func (e *AuditEvent) On(resourceType ResourceType, resourceID string) *AuditEvent {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// LogSuccess records a successful change to a resource
func LogSuccess(ctx context.Context, logger Logger, eventType EventType, resourceType ResourceType, resourceID, message string, metadata map[string]interface{}) error {
	event := NewEvent(ctx, eventType, EventStatusSuccess).On(resourceType, resourceID)
	event.Message = message
	for k, v := range metadata {
		event.Metadata[k] = v
	}
	return logger.Log(ctx, event)
}

// LogFailure records a rejected attempt along with the reason
func LogFailure(ctx context.Context, logger Logger, eventType EventType, message string, cause error) error {
	event := NewEvent(ctx, eventType, EventStatusFailure)
	event.Message = message
	if cause != nil {
		event.ErrorMessage = cause.Error()
	}
	return logger.Log(ctx, event)
}

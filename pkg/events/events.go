package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event. It doubles as the AMQP routing key.
type Type string

const (
	TypeTenantCreated      Type = "tenant.created"
	TypeTenantDeactivated  Type = "tenant.deactivated"
	TypeTenantReactivated  Type = "tenant.reactivated"
	TypeOwnershipChanged   Type = "tenant.ownership_transferred"
	TypeInvitationCreated  Type = "invitation.created"
	TypeInvitationRedeemed Type = "invitation.redeemed"
	TypeUserJoined         Type = "user.joined"
	TypeUserRoleChanged    Type = "user.role_changed"
	TypeLicenseConsumed    Type = "license.consumed"
)

// Event is a notification for collaborators outside the engine, such as the
// email sender that delivers invitation codes
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	TenantID   string         `json:"tenant_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New builds an event with a fresh id and timestamp
func New(eventType Type, tenantID, actorID string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TenantID:   tenantID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers domain events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish implements Publisher.Publish
func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }

// Close implements Publisher.Close
func (NopPublisher) Close() error { return nil }

// MemoryPublisher keeps published events in memory
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher creates an empty MemoryPublisher
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish implements Publisher.Publish
func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything published so far
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// OfType returns the published events with the given type
func (p *MemoryPublisher) OfType(eventType Type) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Close implements Publisher.Close
func (p *MemoryPublisher) Close() error { return nil }

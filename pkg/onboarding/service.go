package onboarding

import (
	"context"
	"errors"
	"time"

	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/branding"
	"github.com/geoguard/geoguard/pkg/events"
	"github.com/geoguard/geoguard/pkg/identity"
	"github.com/geoguard/geoguard/pkg/invitations"
	"github.com/geoguard/geoguard/pkg/licenses"
	"github.com/geoguard/geoguard/pkg/observability"
	"github.com/geoguard/geoguard/pkg/tenants"
	"github.com/geoguard/geoguard/pkg/users"
)

// Flow names used for outcome metrics
const (
	FlowRegisterOrganization = "register_organization"
	FlowSignupInvitation     = "signup_invitation"
	FlowSignupDomain         = "signup_domain"
	FlowSignIn               = "signin"
	FlowSignInOIDC           = "signin_oidc"
	FlowCreateSuperAdmin     = "create_super_admin"
	FlowInvite               = "invite"
	FlowTransferOwnership    = "transfer_ownership"
)

// Recorder receives the outcome of every onboarding flow
type Recorder interface {
	ObserveFlow(flow string, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFlow(string, error) {}

// AccountLookup resolves an email to an existing identity subject
type AccountLookup interface {
	LookupEmail(ctx context.Context, email string) (string, error)
}

// AuditSearcher reads back the audit trail
type AuditSearcher interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.AuditEvent, error)
}

// Deps are the collaborators of a Service. Licenses, Tenants, Invitations,
// Users, Identity and Sessions are required.
type Deps struct {
	Licenses    *licenses.Registry
	Tenants     *tenants.Registry
	Invitations *invitations.Registry
	Users       *users.Binder
	Identity    identity.Provider
	Sessions    *identity.Sessions

	Accounts    AccountLookup    // optional, enables OIDC sign-in
	Audit       audit.Logger     // optional
	AuditSearch AuditSearcher    // optional, enables AuditTrail
	Events      events.Publisher // optional
	Logos       branding.LogoStore
	Metrics     Recorder
	Logger      *observability.Logger
}

// Service runs the multi-step onboarding flows over the registries and
// enforces the access gate for administrative operations. Flows are ordered
// but not transactional; see the individual methods for what a failure
// part way through leaves behind.
type Service struct {
	licenses    *licenses.Registry
	tenants     *tenants.Registry
	invitations *invitations.Registry
	users       *users.Binder
	identity    identity.Provider
	sessions    *identity.Sessions

	accounts    AccountLookup
	audit       audit.Logger
	auditSearch AuditSearcher
	events      events.Publisher
	logos       branding.LogoStore
	metrics     Recorder
	logger      *observability.Logger
	now         func() time.Time
}

// NewService creates a new Service
func NewService(deps Deps) (*Service, error) {
	if deps.Licenses == nil || deps.Tenants == nil || deps.Invitations == nil || deps.Users == nil {
		return nil, errors.New("onboarding: registries are required")
	}
	if deps.Identity == nil || deps.Sessions == nil {
		return nil, errors.New("onboarding: identity provider and sessions are required")
	}

	s := &Service{
		licenses:    deps.Licenses,
		tenants:     deps.Tenants,
		invitations: deps.Invitations,
		users:       deps.Users,
		identity:    deps.Identity,
		sessions:    deps.Sessions,
		accounts:    deps.Accounts,
		audit:       deps.Audit,
		auditSearch: deps.AuditSearch,
		events:      deps.Events,
		logos:       deps.Logos,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         time.Now,
	}
	if s.audit == nil {
		s.audit = audit.NopLogger{}
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return s, nil
}

func (s *Service) log(ctx context.Context) *observability.Logger {
	return observability.FromContext(ctx, s.logger)
}

// record writes an audit entry. The change it describes has already happened,
// so a failed write is logged and swallowed.
func (s *Service) record(ctx context.Context, event *audit.AuditEvent) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.log(ctx).WithError(err).WithField("event_type", string(event.EventType)).Error("failed to write audit event")
	}
}

func (s *Service) auditEvent(ctx context.Context, eventType audit.EventType, actorID, tenantID string, resourceType audit.ResourceType, resourceID, message string) *audit.AuditEvent {
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess).On(resourceType, resourceID)
	if actorID != "" {
		event.ActorID = actorID
	}
	if tenantID != "" {
		event.TenantID = tenantID
	}
	event.Message = message
	return event
}

func (s *Service) recordFailure(ctx context.Context, eventType audit.EventType, message string, cause error) {
	if err := audit.LogFailure(ctx, s.audit, eventType, message, cause); err != nil {
		s.log(ctx).WithError(err).WithField("event_type", string(eventType)).Error("failed to write audit event")
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log(ctx).WithError(err).WithField("event", string(event.Type)).Warn("failed to publish event")
	}
}

// compensate deletes an identity account created earlier in a failed flow and
// returns cause
func (s *Service) compensate(ctx context.Context, subjectID string, cause error) error {
	// the request may already be cancelled; the cleanup must still run
	ctx = context.WithoutCancel(ctx)
	if err := s.identity.DeleteAccount(ctx, subjectID); err != nil {
		s.log(ctx).WithError(err).WithFields(map[string]interface{}{
			"subject_id": subjectID,
			"cause":      cause.Error(),
		}).Error("failed to delete account after failed onboarding")
	}
	return cause
}

func (s *Service) observe(flow string, err error) {
	s.metrics.ObserveFlow(flow, err)
}

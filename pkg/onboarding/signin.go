package onboarding

import (
	"context"
	"errors"

	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/identity"
	"github.com/geoguard/geoguard/pkg/tenants"
	"github.com/geoguard/geoguard/pkg/users"
)

// SignIn checks credentials, loads the bound user and opens a session.
// Inactive users are refused, as are users of inactive tenants other than
// super admins.
func (s *Service) SignIn(ctx context.Context, email, password string) (result *Result, err error) {
	defer func() { s.observe(FlowSignIn, err) }()

	subjectID, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		s.recordFailure(ctx, audit.EventTypeAuthSignInFailed, "sign in failed for "+identity.NormalizeEmail(email), err)
		return nil, err
	}
	return s.openSession(ctx, subjectID)
}

// SignInOIDC opens a session for an identity verified by the SSO provider.
// Only emails that already belong to an account are accepted; SSO never
// creates accounts.
func (s *Service) SignInOIDC(ctx context.Context, external *identity.ExternalIdentity) (result *Result, err error) {
	defer func() { s.observe(FlowSignInOIDC, err) }()

	if s.accounts == nil {
		return nil, ErrOIDCUnavailable
	}
	if external == nil || external.Email == "" {
		return nil, identity.ErrUnauthenticated
	}
	subjectID, err := s.accounts.LookupEmail(ctx, external.Email)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return nil, ErrNoAccount
	}
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, subjectID)
}

func (s *Service) openSession(ctx context.Context, subjectID string) (*Result, error) {
	user, tenant, err := s.activeUser(ctx, subjectID)
	if err != nil {
		s.recordFailure(ctx, audit.EventTypeAuthSignInFailed, "sign in refused for "+subjectID, err)
		return nil, err
	}

	if err := s.users.RecordLogin(ctx, user.ID); err != nil {
		s.log(ctx).WithError(err).WithField("user_id", user.ID).Warn("failed to record login time")
	}
	session, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, s.auditEvent(ctx, audit.EventTypeAuthSignIn, user.ID, user.TenantID,
		audit.ResourceTypeSession, user.ID, "signed in"))
	return &Result{User: user, Tenant: tenant, Session: session}, nil
}

// activeUser loads the user bound to subjectID and checks that both the user
// and their tenant are active. The tenant is nil for super admins.
func (s *Service) activeUser(ctx context.Context, subjectID string) (*users.User, *tenants.Tenant, error) {
	user, err := s.users.Get(ctx, subjectID)
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}
	if user.Principal().IsSuperAdmin() {
		return user, nil, nil
	}

	tenant, err := s.tenants.Load(ctx, user.TenantID)
	if err != nil {
		return nil, nil, err
	}
	if !tenant.IsActive {
		return nil, nil, tenants.ErrInactive
	}
	return user, tenant, nil
}

// Authenticate resolves a session token to its active user
func (s *Service) Authenticate(ctx context.Context, token string) (*users.User, error) {
	subjectID, err := s.sessions.CurrentSubjectID(ctx, token)
	if err != nil {
		return nil, err
	}
	user, _, err := s.activeUser(ctx, subjectID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, identity.ErrUnauthenticated
	}
	return user, err
}

// CurrentUser returns the signed-in user together with their tenant
func (s *Service) CurrentUser(ctx context.Context, token string) (*Result, error) {
	subjectID, err := s.sessions.CurrentSubjectID(ctx, token)
	if err != nil {
		return nil, err
	}
	user, tenant, err := s.activeUser(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return &Result{User: user, Tenant: tenant}, nil
}

// SignOut revokes the session token
func (s *Service) SignOut(ctx context.Context, token string) error {
	// empty for a token that is already signed out
	subjectID, _ := s.sessions.CurrentSubjectID(ctx, token)
	if err := s.sessions.SignOut(ctx, token); err != nil {
		return err
	}
	if subjectID == "" {
		return nil
	}
	s.record(ctx, s.auditEvent(ctx, audit.EventTypeAuthSignOut, subjectID, "",
		audit.ResourceTypeSession, subjectID, "signed out"))
	return nil
}

package onboarding

import (
	"context"
	"strings"

	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/events"
	"github.com/geoguard/geoguard/pkg/invitations"
	"github.com/geoguard/geoguard/pkg/tenants"
	"github.com/geoguard/geoguard/pkg/users"
)

// SignUpRequest is a person joining an existing organization, either with an
// invitation code or through their email domain
type SignUpRequest struct {
	InvitationCode string        `json:"invitation_code,omitempty"`
	Email          string        `json:"email"`
	Password       string        `json:"password"`
	Details        PersonDetails `json:"details"`
}

// SignUp creates an account and binds it to the tenant chosen by the
// invitation code, or by the email domain when no code is given.
//
// An invalid code fails before any account exists. Once the account exists,
// any failure up to and including the bind deletes it again. The invitation
// is marked used only after the user is bound; if that last write fails the
// user keeps their account and the invitation stays redeemable.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (result *Result, err error) {
	code := strings.TrimSpace(req.InvitationCode)
	flow := FlowSignupDomain
	if code != "" {
		flow = FlowSignupInvitation
	}
	defer func() { s.observe(flow, err) }()

	if err := req.Details.Validate(); err != nil {
		return nil, err
	}

	var inv *invitations.Invitation
	if code != "" {
		inv, err = s.invitations.Validate(ctx, code, req.Email)
		if err != nil {
			return nil, err
		}
	}

	subjectID, err := s.identity.CreateAccount(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	target, err := s.users.ResolveSignupTarget(ctx, inv, req.Email)
	if err != nil {
		return nil, s.compensate(ctx, subjectID, err)
	}
	tenant, err := s.tenants.Load(ctx, target.TenantID)
	if err != nil {
		return nil, s.compensate(ctx, subjectID, err)
	}
	if !tenant.IsActive {
		return nil, s.compensate(ctx, subjectID, tenants.ErrInactive)
	}
	canAdd, err := s.tenants.CanAddUser(ctx, tenant.ID)
	if err != nil {
		return nil, s.compensate(ctx, subjectID, err)
	}
	if !canAdd {
		return nil, s.compensate(ctx, subjectID, tenants.ErrUserLimitReached)
	}

	bind := users.BindRequest{
		SubjectID: subjectID,
		TenantID:  tenant.ID,
		Role:      target.Role,
		Profile:   req.Details.Profile(req.Email),
	}
	if inv != nil {
		bind.InvitedBy = inv.InvitedBy
		bind.InvitationCode = inv.InvitationCode
	}
	user, err := s.users.BindNewUser(ctx, bind)
	if err != nil {
		return nil, s.compensate(ctx, subjectID, err)
	}

	logger := s.log(ctx).WithFields(map[string]interface{}{
		"tenant_id": tenant.ID,
		"user_id":   user.ID,
	})

	if inv != nil {
		if err := s.invitations.MarkUsed(ctx, inv.ID, user.ID); err != nil {
			logger.WithError(err).WithField("invitation_id", inv.ID).Error("user bound but invitation not marked used")
		} else {
			redeemed := s.auditEvent(ctx, audit.EventTypeInvitationRedeem, user.ID, tenant.ID,
				audit.ResourceTypeInvitation, inv.ID, "invitation redeemed")
			redeemed.Metadata["invitation_code"] = inv.InvitationCode
			s.record(ctx, redeemed)
			s.publish(ctx, events.New(events.TypeInvitationRedeemed, tenant.ID, user.ID, map[string]any{
				"invitation_id": inv.ID,
				"invited_by":    inv.InvitedBy,
			}))
		}
	}

	session, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	joined := s.auditEvent(ctx, audit.EventTypeAuthSignUp, user.ID, tenant.ID,
		audit.ResourceTypeUser, user.ID, "user signed up")
	joined.Metadata["path"] = flow
	joined.Metadata["role"] = string(user.Role)
	s.record(ctx, joined)
	s.publish(ctx, events.New(events.TypeUserJoined, tenant.ID, user.ID, map[string]any{
		"email":    user.Email,
		"role":     string(user.Role),
		"initials": user.Initials,
		"path":     flow,
	}))

	logger.WithField("path", flow).Info("user signed up")
	return &Result{User: user, Tenant: tenant, Session: session}, nil
}

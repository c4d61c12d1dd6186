package onboarding

import (
	"context"

	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/events"
	"github.com/geoguard/geoguard/pkg/invitations"
	"github.com/geoguard/geoguard/pkg/rbac"
	"github.com/geoguard/geoguard/pkg/tenants"
	"github.com/geoguard/geoguard/pkg/users"
)

// InviteRequest asks for an invitation code. TenantID defaults to the
// actor's tenant.
type InviteRequest struct {
	TenantID      string    `json:"tenant_id,omitempty"`
	Email         string    `json:"email,omitempty"`
	Role          rbac.Role `json:"role"`
	ExpiresInDays int       `json:"expires_in_days,omitempty"`
}

// InviteUser issues an invitation code. The actor needs invite_users, must be
// able to assign the invited role and the tenant must allow invitations.
func (s *Service) InviteUser(ctx context.Context, actor rbac.Principal, req InviteRequest) (inv *invitations.Invitation, err error) {
	defer func() { s.observe(FlowInvite, err) }()

	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = actor.TenantID
	}
	if !rbac.HasPermission(actor, rbac.PermissionInviteUsers) || !rbac.CanAccessTenant(actor, tenantID) {
		return nil, ErrForbidden
	}
	if !rbac.CanAssignRole(actor, req.Role, tenantID) {
		return nil, ErrForbidden
	}

	tenant, err := s.tenants.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.IsActive {
		return nil, tenants.ErrInactive
	}
	if !tenant.Settings.AllowUserInvites && !actor.IsSuperAdmin() {
		return nil, ErrInvitesDisabled
	}

	inv, err = s.invitations.Create(ctx, invitations.CreateRequest{
		TenantID:      tenantID,
		InvitedBy:     actor.UserID,
		Email:         req.Email,
		Role:          req.Role,
		ExpiresInDays: req.ExpiresInDays,
	})
	if err != nil {
		return nil, err
	}

	created := s.auditEvent(ctx, audit.EventTypeInvitationCreate, actor.UserID, tenantID,
		audit.ResourceTypeInvitation, inv.ID, "invitation created")
	created.Metadata["role"] = string(inv.Role)
	s.record(ctx, created)
	// the email collaborator delivers the code
	s.publish(ctx, events.New(events.TypeInvitationCreated, tenantID, actor.UserID, map[string]any{
		"invitation_id":   inv.ID,
		"invitation_code": inv.InvitationCode,
		"email":           inv.Email,
		"role":            string(inv.Role),
		"tenant_name":     tenant.Name,
		"expires_at":      inv.ExpiresAt,
	}))
	return inv, nil
}

// ValidateInvitation checks a code before signup without redeeming it
func (s *Service) ValidateInvitation(ctx context.Context, code, email string) (*invitations.Invitation, error) {
	return s.invitations.Validate(ctx, code, email)
}

// ListInvitations returns a tenant's invitations
func (s *Service) ListInvitations(ctx context.Context, actor rbac.Principal, tenantID string) ([]*invitations.Invitation, error) {
	if tenantID == "" {
		tenantID = actor.TenantID
	}
	if !rbac.HasPermission(actor, rbac.PermissionInviteUsers) || !rbac.CanAccessTenant(actor, tenantID) {
		return nil, ErrForbidden
	}
	return s.invitations.ListForTenant(ctx, tenantID)
}

// DeleteInvitation withdraws an invitation
func (s *Service) DeleteInvitation(ctx context.Context, actor rbac.Principal, invitationID string) error {
	inv, err := s.invitations.Get(ctx, invitationID)
	if err != nil {
		return err
	}
	if !rbac.HasPermission(actor, rbac.PermissionInviteUsers) || !rbac.CanAccessTenant(actor, inv.TenantID) {
		return ErrForbidden
	}
	if err := s.invitations.Delete(ctx, invitationID); err != nil {
		return err
	}
	s.record(ctx, s.auditEvent(ctx, audit.EventTypeInvitationDelete, actor.UserID, inv.TenantID,
		audit.ResourceTypeInvitation, invitationID, "invitation deleted"))
	return nil
}

// ListUsers returns a tenant's users
func (s *Service) ListUsers(ctx context.Context, actor rbac.Principal, tenantID string) ([]*users.User, error) {
	if tenantID == "" {
		tenantID = actor.TenantID
	}
	if !rbac.HasPermission(actor, rbac.PermissionViewUsers) || !rbac.CanAccessTenant(actor, tenantID) {
		return nil, ErrForbidden
	}
	return s.users.ListForTenant(ctx, tenantID)
}

// GetUser loads a user. Everyone may load themselves.
func (s *Service) GetUser(ctx context.Context, actor rbac.Principal, userID string) (*users.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ID == actor.UserID {
		return user, nil
	}
	if !rbac.HasPermission(actor, rbac.PermissionViewUsers) || !rbac.CanAccessTenant(actor, user.TenantID) {
		return nil, ErrForbidden
	}
	return user, nil
}

// EditUser changes another user's role or active flag. Reactivating a user
// counts against the tenant's cap. The tenant owner is changed only through
// an ownership transfer.
func (s *Service) EditUser(ctx context.Context, actor rbac.Principal, userID string, patch users.EditPatch) (*users.User, error) {
	if !rbac.HasPermission(actor, rbac.PermissionManageUsers) {
		return nil, ErrForbidden
	}
	target, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !rbac.CanAccessTenant(actor, target.TenantID) {
		return nil, ErrForbidden
	}
	if target.ID == actor.UserID {
		return nil, ErrSelfEdit
	}
	if target.Role == rbac.RoleSuperAdmin && !actor.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	if patch.Role != nil && !rbac.CanAssignRole(actor, *patch.Role, target.TenantID) {
		return nil, ErrForbidden
	}

	if target.TenantID != rbac.PlatformTenantID {
		tenant, err := s.tenants.Load(ctx, target.TenantID)
		if err != nil {
			return nil, err
		}
		if tenant.AdminUserID == target.ID {
			return nil, ErrOwnerProtected
		}
		if patch.IsActive != nil && *patch.IsActive && !target.IsActive {
			canAdd, err := s.tenants.CanAddUser(ctx, tenant.ID)
			if err != nil {
				return nil, err
			}
			if !canAdd {
				return nil, tenants.ErrUserLimitReached
			}
		}
	}

	previousRole, wasActive := target.Role, target.IsActive
	user, err := s.users.EditUser(ctx, userID, patch)
	if err != nil {
		return nil, err
	}

	if user.Role != previousRole {
		event := s.auditEvent(ctx, audit.EventTypeUserRoleChange, actor.UserID, user.TenantID,
			audit.ResourceTypeUser, user.ID, "role changed")
		event.Changes = &audit.ChangeDetails{
			Before: map[string]interface{}{"role": string(previousRole)},
			After:  map[string]interface{}{"role": string(user.Role)},
		}
		s.record(ctx, event)
		s.publish(ctx, events.New(events.TypeUserRoleChanged, user.TenantID, actor.UserID, map[string]any{
			"user_id":       user.ID,
			"previous_role": string(previousRole),
			"role":          string(user.Role),
		}))
	}
	if user.IsActive != wasActive {
		eventType, message := audit.EventTypeUserDeactivate, "user deactivated"
		if user.IsActive {
			eventType, message = audit.EventTypeUserActivate, "user activated"
		}
		s.record(ctx, s.auditEvent(ctx, eventType, actor.UserID, user.TenantID, audit.ResourceTypeUser, user.ID, message))
	}
	return user, nil
}

// UpdateProfile applies the actor's edits to their own profile
func (s *Service) UpdateProfile(ctx context.Context, actor rbac.Principal, patch users.ProfilePatch) (*users.User, error) {
	if patch.Phone != nil && *patch.Phone != "" && !ValidPhone(*patch.Phone) {
		return nil, ErrInvalidPhone
	}
	user, err := s.users.UpdateProfile(ctx, actor.UserID, patch)
	if err != nil {
		return nil, err
	}
	s.record(ctx, s.auditEvent(ctx, audit.EventTypeUserProfileUpdate, actor.UserID, user.TenantID,
		audit.ResourceTypeUser, user.ID, "profile updated"))
	return user, nil
}

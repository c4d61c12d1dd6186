package onboarding

import (
	"context"
	"strings"

	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/events"
	"github.com/geoguard/geoguard/pkg/licenses"
	"github.com/geoguard/geoguard/pkg/rbac"
	"github.com/geoguard/geoguard/pkg/tenants"
	"github.com/geoguard/geoguard/pkg/users"
)

// SuperAdminRequest provisions a platform operator account
type SuperAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
}

// CreateSuperAdmin creates an account bound to the platform tenant with the
// super admin role. It is an operator action and takes no actor.
func (s *Service) CreateSuperAdmin(ctx context.Context, req SuperAdminRequest) (user *users.User, err error) {
	defer func() { s.observe(FlowCreateSuperAdmin, err) }()

	if strings.TrimSpace(req.FullName) == "" {
		return nil, ErrMissingName
	}
	subjectID, err := s.identity.CreateAccount(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	user, err = s.users.BindNewUser(ctx, users.BindRequest{
		SubjectID: subjectID,
		TenantID:  rbac.PlatformTenantID,
		Role:      rbac.RoleSuperAdmin,
		Profile: users.Profile{
			FullName: req.FullName,
			Email:    req.Email,
			Phone:    strings.TrimSpace(req.Phone),
		},
	})
	if err != nil {
		return nil, s.compensate(ctx, subjectID, err)
	}

	s.record(ctx, s.auditEvent(ctx, audit.EventTypeUserRoleChange, user.ID, rbac.PlatformTenantID,
		audit.ResourceTypeUser, user.ID, "super admin provisioned"))
	return user, nil
}

// ValidateLicense checks a key without consuming it
func (s *Service) ValidateLicense(ctx context.Context, key string) (*licenses.License, error) {
	return s.licenses.Validate(ctx, key)
}

// IssueLicense issues a new license key on behalf of a super admin
func (s *Service) IssueLicense(ctx context.Context, actor rbac.Principal, req licenses.IssueRequest) (*licenses.License, error) {
	if !rbac.HasPermission(actor, rbac.PermissionManageLicenses) {
		return nil, ErrForbidden
	}
	req.IssuedBy = actor.UserID
	license, err := s.licenses.Issue(ctx, req)
	if err != nil {
		return nil, err
	}

	issued := s.auditEvent(ctx, audit.EventTypeLicenseIssue, actor.UserID, "",
		audit.ResourceTypeLicense, license.ID, "license issued")
	issued.Metadata["issued_to"] = license.IssuedTo
	s.record(ctx, issued)
	return license, nil
}

// RevokeLicense deactivates an unused license
func (s *Service) RevokeLicense(ctx context.Context, actor rbac.Principal, licenseID string) error {
	if !rbac.HasPermission(actor, rbac.PermissionManageLicenses) {
		return ErrForbidden
	}
	if err := s.licenses.Revoke(ctx, licenseID); err != nil {
		return err
	}
	s.record(ctx, s.auditEvent(ctx, audit.EventTypeLicenseRevoke, actor.UserID, "",
		audit.ResourceTypeLicense, licenseID, "license revoked"))
	return nil
}

// ListLicenses returns every license
func (s *Service) ListLicenses(ctx context.Context, actor rbac.Principal) ([]*licenses.License, error) {
	if !rbac.HasPermission(actor, rbac.PermissionManageLicenses) {
		return nil, ErrForbidden
	}
	return s.licenses.List(ctx)
}

// ListTenants returns every tenant. Super admins only.
func (s *Service) ListTenants(ctx context.Context, actor rbac.Principal) ([]*tenants.Tenant, error) {
	if !actor.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	return s.tenants.List(ctx)
}

// GetTenant loads a tenant the actor belongs to
func (s *Service) GetTenant(ctx context.Context, actor rbac.Principal, tenantID string) (*tenants.Tenant, error) {
	if !rbac.CanAccessTenant(actor, tenantID) {
		return nil, ErrForbidden
	}
	return s.tenants.Load(ctx, tenantID)
}

// UpdateTenantSettings applies a settings patch for a tenant admin or super admin
func (s *Service) UpdateTenantSettings(ctx context.Context, actor rbac.Principal, tenantID string, patch tenants.SettingsPatch) (*tenants.Settings, error) {
	if !rbac.CanManageTenantSettings(actor, tenantID) {
		return nil, ErrForbidden
	}
	before, err := s.tenants.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	settings, err := s.tenants.UpdateSettings(ctx, tenantID, patch)
	if err != nil {
		return nil, err
	}

	event := s.auditEvent(ctx, audit.EventTypeTenantSettingsUpdate, actor.UserID, tenantID,
		audit.ResourceTypeTenant, tenantID, "settings updated")
	event.Changes = &audit.ChangeDetails{
		Before: settingsMap(before.Settings),
		After:  settingsMap(*settings),
	}
	s.record(ctx, event)
	return settings, nil
}

func settingsMap(settings tenants.Settings) map[string]interface{} {
	return map[string]interface{}{
		"allow_user_invites":      settings.AllowUserInvites,
		"require_invitation_code": settings.RequireInvitationCode,
		"time_zone":               settings.TimeZone,
		"logo_url":                settings.LogoURL,
		"primary_color":           settings.PrimaryColor,
	}
}

// UploadLogo stores a new tenant logo and points the settings at it. The
// previous logo is removed once the settings no longer reference it.
func (s *Service) UploadLogo(ctx context.Context, actor rbac.Principal, tenantID string, content []byte, contentType string) (*tenants.Settings, error) {
	if !rbac.CanManageTenantSettings(actor, tenantID) {
		return nil, ErrForbidden
	}
	if s.logos == nil {
		return nil, ErrBrandingOff
	}
	tenant, err := s.tenants.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	url, err := s.logos.Upload(ctx, tenantID, content, contentType)
	if err != nil {
		return nil, err
	}
	settings, err := s.UpdateTenantSettings(ctx, actor, tenantID, tenants.SettingsPatch{LogoURL: &url})
	if err != nil {
		return nil, err
	}

	if old := tenant.Settings.LogoURL; old != "" && old != url {
		if err := s.logos.Delete(ctx, old); err != nil {
			s.log(ctx).WithError(err).WithField("logo_url", old).Warn("failed to delete previous logo")
		}
	}
	return settings, nil
}

// SetTenantActive deactivates or reactivates a tenant. Super admins only.
func (s *Service) SetTenantActive(ctx context.Context, actor rbac.Principal, tenantID string, active bool) error {
	if !actor.IsSuperAdmin() {
		return ErrForbidden
	}

	eventType, auditType, message := events.TypeTenantDeactivated, audit.EventTypeTenantDeactivate, "tenant deactivated"
	var err error
	if active {
		eventType, auditType, message = events.TypeTenantReactivated, audit.EventTypeTenantReactivate, "tenant reactivated"
		err = s.tenants.Reactivate(ctx, tenantID)
	} else {
		err = s.tenants.Deactivate(ctx, tenantID)
	}
	if err != nil {
		return err
	}

	s.record(ctx, s.auditEvent(ctx, auditType, actor.UserID, tenantID, audit.ResourceTypeTenant, tenantID, message))
	s.publish(ctx, events.New(eventType, tenantID, actor.UserID, nil))
	return nil
}

// TransferOwnership hands a tenant to another of its admins or managers. The
// current owner or a super admin may do this; the previous owner becomes a
// manager.
func (s *Service) TransferOwnership(ctx context.Context, actor rbac.Principal, tenantID, newOwnerID string) (err error) {
	defer func() { s.observe(FlowTransferOwnership, err) }()

	tenant, err := s.tenants.Load(ctx, tenantID)
	if err != nil {
		return err
	}
	if !actor.IsSuperAdmin() && actor.UserID != tenant.AdminUserID {
		return ErrForbidden
	}

	candidate, err := s.users.Get(ctx, newOwnerID)
	if err != nil {
		return err
	}
	if !rbac.EligibleForOwnership(candidate.Principal(), tenant.AdminUserID, tenantID) {
		return ErrIneligibleOwner
	}

	previousOwner := tenant.AdminUserID
	if err := s.tenants.TransferOwnership(ctx, tenantID, newOwnerID, previousOwner); err != nil {
		return err
	}

	event := s.auditEvent(ctx, audit.EventTypeTenantOwnershipTransfer, actor.UserID, tenantID,
		audit.ResourceTypeTenant, tenantID, "ownership transferred")
	event.Changes = &audit.ChangeDetails{
		Before: map[string]interface{}{"admin_user_id": previousOwner},
		After:  map[string]interface{}{"admin_user_id": newOwnerID},
	}
	s.record(ctx, event)
	s.publish(ctx, events.New(events.TypeOwnershipChanged, tenantID, actor.UserID, map[string]any{
		"previous_owner_id": previousOwner,
		"new_owner_id":      newOwnerID,
	}))
	return nil
}

// AuditTrail searches the audit log. Admins see their own tenant only.
func (s *Service) AuditTrail(ctx context.Context, actor rbac.Principal, filter audit.SearchFilter) ([]*audit.AuditEvent, error) {
	if s.auditSearch == nil {
		return nil, ErrAuditOff
	}
	if !actor.IsSuperAdmin() {
		if filter.TenantID == "" {
			filter.TenantID = actor.TenantID
		}
		if !rbac.CanManageTenantSettings(actor, filter.TenantID) {
			return nil, ErrForbidden
		}
	}
	return s.auditSearch.Search(ctx, filter)
}

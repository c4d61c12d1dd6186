package onboarding

import (
	"context"
	"fmt"
	"strings"

	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/events"
	"github.com/geoguard/geoguard/pkg/identity"
	"github.com/geoguard/geoguard/pkg/rbac"
	"github.com/geoguard/geoguard/pkg/tenants"
	"github.com/geoguard/geoguard/pkg/users"
)

// RegisterOrganizationRequest is a license holder registering a new organization
type RegisterOrganizationRequest struct {
	LicenseKey    string        `json:"license_key"`
	CompanyName   string        `json:"company_name"`
	CompanyDomain string        `json:"company_domain,omitempty"`
	Tier          tenants.Tier  `json:"tier,omitempty"`
	Email         string        `json:"email"`
	Password      string        `json:"password"`
	Admin         PersonDetails `json:"admin"`
}

// Result is the outcome of a flow that ends signed in
type Result struct {
	User    *users.User       `json:"user"`
	Tenant  *tenants.Tenant   `json:"tenant,omitempty"`
	Session *identity.Session `json:"session"`
}

// RegisterOrganization redeems a license key for a new tenant whose first
// user is the registering admin.
//
// The steps run in order: license validation, account creation, tenant
// creation, license consumption, admin binding. A tenant creation failure
// deletes the new account. Failures after the tenant exists are returned
// as-is and leave the tenant in place for an operator to reconcile.
func (s *Service) RegisterOrganization(ctx context.Context, req RegisterOrganizationRequest) (result *Result, err error) {
	defer func() { s.observe(FlowRegisterOrganization, err) }()

	if strings.TrimSpace(req.CompanyName) == "" {
		return nil, ErrMissingCompany
	}
	if err := req.Admin.Validate(); err != nil {
		return nil, err
	}
	tier := req.Tier
	if tier == "" {
		tier = tenants.TierTrial
	}

	license, err := s.licenses.Validate(ctx, req.LicenseKey)
	if err != nil {
		return nil, err
	}

	subjectID, err := s.identity.CreateAccount(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	tenantID, err := s.tenants.Create(ctx, tenants.CreateRequest{
		Name:        req.CompanyName,
		Domain:      req.CompanyDomain,
		AdminUserID: subjectID,
		Tier:        tier,
	})
	if err != nil {
		return nil, s.compensate(ctx, subjectID, err)
	}
	logger := s.log(ctx).WithFields(map[string]interface{}{
		"tenant_id":  tenantID,
		"license_id": license.ID,
	})

	if err := s.licenses.Consume(ctx, license.ID, tenantID, req.CompanyName); err != nil {
		logger.WithError(err).Error("tenant created but license not consumed")
		return nil, fmt.Errorf("failed to consume license: %w", err)
	}

	user, err := s.users.BindNewUser(ctx, users.BindRequest{
		SubjectID: subjectID,
		TenantID:  tenantID,
		Role:      rbac.RoleAdmin,
		Profile:   req.Admin.Profile(req.Email),
	})
	if err != nil {
		logger.WithError(err).Error("tenant created but admin not bound")
		return nil, fmt.Errorf("failed to bind organization admin: %w", err)
	}

	tenant, err := s.tenants.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.Issue(subjectID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, s.auditEvent(ctx, audit.EventTypeTenantCreate, subjectID, tenantID,
		audit.ResourceTypeTenant, tenantID, "organization registered: "+tenant.Name))
	consumed := s.auditEvent(ctx, audit.EventTypeLicenseConsume, subjectID, tenantID,
		audit.ResourceTypeLicense, license.ID, "license consumed")
	consumed.Metadata["license_key"] = license.LicenseKey
	s.record(ctx, consumed)

	s.publish(ctx, events.New(events.TypeTenantCreated, tenantID, subjectID, map[string]any{
		"name":              tenant.Name,
		"domain":            tenant.Domain,
		"subscription_tier": string(tenant.SubscriptionTier),
		"admin_email":       user.Email,
	}))
	s.publish(ctx, events.New(events.TypeLicenseConsumed, tenantID, subjectID, map[string]any{
		"license_id":        license.ID,
		"organization_name": tenant.Name,
	}))

	logger.Info("organization registered")
	return &Result{User: user, Tenant: tenant, Session: session}, nil
}

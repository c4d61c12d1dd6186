package onboarding

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/geoguard/geoguard/pkg/apperr"
	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/docstore"
	"github.com/geoguard/geoguard/pkg/events"
	"github.com/geoguard/geoguard/pkg/identity"
	"github.com/geoguard/geoguard/pkg/invitations"
	"github.com/geoguard/geoguard/pkg/licenses"
	"github.com/geoguard/geoguard/pkg/rbac"
	"github.com/geoguard/geoguard/pkg/tenants"
	"github.com/geoguard/geoguard/pkg/users"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type flowRecorder struct {
	mu       sync.Mutex
	outcomes map[string][]error
}

func (r *flowRecorder) ObserveFlow(flow string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[flow] = append(r.outcomes[flow], err)
}

type fakeLogos struct {
	uploaded map[string][]byte
	deleted  []string
	n        int
}

func (f *fakeLogos) Upload(ctx context.Context, tenantID string, content []byte, contentType string) (string, error) {
	f.n++
	url := fmt.Sprintf("https://cdn.example.com/logos/%s/%d.png", tenantID, f.n)
	f.uploaded[url] = content
	return url, nil
}

func (f *fakeLogos) Delete(ctx context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return nil
}

type fixture struct {
	svc         *Service
	provider    *identity.LocalProvider
	licenses    *licenses.Registry
	tenants     *tenants.Registry
	invitations *invitations.Registry
	users       *users.Binder
	events      *events.MemoryPublisher
	audit       *audit.StoreLogger
	flows       *flowRecorder
	logos       *fakeLogos
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	sessions, err := identity.NewSessions(store, testSecret, "geoguard-test", 0)
	require.NoError(t, err)

	dir := users.NewDirectory(store)
	tenantRegistry := tenants.NewRegistry(store, dir)
	f := &fixture{
		provider:    identity.NewLocalProvider(store, bcrypt.MinCost),
		licenses:    licenses.NewRegistry(store),
		tenants:     tenantRegistry,
		invitations: invitations.NewRegistry(store),
		users:       users.NewBinder(store, tenantRegistry),
		events:      events.NewMemoryPublisher(),
		audit:       audit.NewStoreLogger(store),
		flows:       &flowRecorder{outcomes: map[string][]error{}},
		logos:       &fakeLogos{uploaded: map[string][]byte{}},
	}

	f.svc, err = NewService(Deps{
		Licenses:    f.licenses,
		Tenants:     f.tenants,
		Invitations: f.invitations,
		Users:       f.users,
		Identity:    f.provider,
		Sessions:    sessions,
		Accounts:    f.provider,
		Audit:       f.audit,
		AuditSearch: f.audit,
		Events:      f.events,
		Logos:       f.logos,
		Metrics:     f.flows,
	})
	require.NoError(t, err)
	return f
}

func details(first, last string) PersonDetails {
	return PersonDetails{
		FirstName: first,
		LastName:  last,
		Phone:     "+44 20 7946 0958",
		Address:   "1 High Street",
		City:      "London",
		Country:   "United Kingdom",
	}
}

var operator = rbac.Principal{UserID: "operator", TenantID: rbac.PlatformTenantID, Role: rbac.RoleSuperAdmin, IsActive: true}

func (f *fixture) issueLicense(t *testing.T) *licenses.License {
	t.Helper()
	license, err := f.licenses.Issue(context.Background(), licenses.IssueRequest{IssuedBy: operator.UserID, ExpiresInDays: 30})
	require.NoError(t, err)
	return license
}

func (f *fixture) register(t *testing.T, company, domain string, tier tenants.Tier, email string) *Result {
	t.Helper()
	result, err := f.svc.RegisterOrganization(context.Background(), RegisterOrganizationRequest{
		LicenseKey:    f.issueLicense(t).LicenseKey,
		CompanyName:   company,
		CompanyDomain: domain,
		Tier:          tier,
		Email:         email,
		Password:      "admin-pass",
		Admin:         details("Alice", "Admin"),
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) accountExists(t *testing.T, email string) bool {
	t.Helper()
	_, err := f.provider.LookupEmail(context.Background(), email)
	if err != nil {
		require.ErrorIs(t, err, identity.ErrInvalidCredentials)
		return false
	}
	return true
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)
}

func TestRegisterOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	license := f.issueLicense(t)

	result, err := f.svc.RegisterOrganization(ctx, RegisterOrganizationRequest{
		LicenseKey:    " " + license.LicenseKey + " ",
		CompanyName:   "Acme Security",
		CompanyDomain: "acme.com",
		Tier:          tenants.TierBasic,
		Email:         "alice@acme.com",
		Password:      "admin-pass",
		Admin:         details("Alice", "Admin"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Security", result.Tenant.Name)
	assert.Equal(t, 25, result.Tenant.MaxUsers)
	assert.Equal(t, result.User.ID, result.Tenant.AdminUserID)
	assert.Equal(t, rbac.RoleAdmin, result.User.Role)
	assert.Equal(t, "AA", result.User.Initials)
	assert.Equal(t, "Alice Admin", result.User.FullName)
	assert.NotEmpty(t, result.Session.Token)

	consumed, err := f.licenses.Get(ctx, license.ID)
	require.NoError(t, err)
	assert.True(t, consumed.IsUsed)
	assert.Equal(t, result.Tenant.ID, consumed.UsedBy)
	assert.Equal(t, "Acme Security", consumed.OrganizationName)

	assert.Len(t, f.events.OfType(events.TypeTenantCreated), 1)
	assert.Len(t, f.events.OfType(events.TypeLicenseConsumed), 1)

	trail, err := f.audit.Search(ctx, audit.SearchFilter{TenantID: result.Tenant.ID})
	require.NoError(t, err)
	var types []audit.EventType
	for _, event := range trail {
		types = append(types, event.EventType)
	}
	assert.Contains(t, types, audit.EventTypeTenantCreate)
	assert.Contains(t, types, audit.EventTypeLicenseConsume)

	assert.Equal(t, []error{nil}, f.flows.outcomes[FlowRegisterOrganization])
}

func TestRegisterOrganization_LicenseCannotBeReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	license := f.issueLicense(t)

	req := RegisterOrganizationRequest{
		LicenseKey:  license.LicenseKey,
		CompanyName: "First Co",
		Email:       "first@first.co",
		Password:    "admin-pass",
		Admin:       details("First", "Owner"),
	}
	_, err := f.svc.RegisterOrganization(ctx, req)
	require.NoError(t, err)

	req.CompanyName = "Second Co"
	req.Email = "second@second.co"
	_, err = f.svc.RegisterOrganization(ctx, req)
	assert.ErrorIs(t, err, licenses.ErrAlreadyUsed)
	assert.False(t, f.accountExists(t, "second@second.co"))
	assert.Equal(t, "license_already_used", apperr.CodeOf(f.flows.outcomes[FlowRegisterOrganization][1]))
}

func TestRegisterOrganization_ConcurrentRedemption(t *testing.T) {
	f := newFixture(t)
	license := f.issueLicense(t)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.RegisterOrganization(context.Background(), RegisterOrganizationRequest{
				LicenseKey:  license.LicenseKey,
				CompanyName: fmt.Sprintf("Company %d", i),
				Email:       fmt.Sprintf("owner%d@company.co", i),
				Password:    "admin-pass",
				Admin:       details("Owner", fmt.Sprint(i)),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, licenses.ErrAlreadyUsed)
	}
	assert.Equal(t, 1, succeeded)

	consumed, err := f.licenses.Get(context.Background(), license.ID)
	require.NoError(t, err)
	assert.True(t, consumed.IsUsed)
	owner, err := f.tenants.Load(context.Background(), consumed.UsedBy)
	require.NoError(t, err)
	assert.Equal(t, consumed.OrganizationName, owner.Name)
}

func TestRegisterOrganization_DuplicateNameDeletesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Acme", "", tenants.TierTrial, "alice@acme.com")

	license := f.issueLicense(t)
	_, err := f.svc.RegisterOrganization(ctx, RegisterOrganizationRequest{
		LicenseKey:  license.LicenseKey,
		CompanyName: "Acme",
		Email:       "mallory@other.com",
		Password:    "admin-pass",
		Admin:       details("Mallory", "Other"),
	})
	assert.ErrorIs(t, err, tenants.ErrAlreadyExists)
	assert.False(t, f.accountExists(t, "mallory@other.com"))

	unused, err := f.licenses.Get(ctx, license.ID)
	require.NoError(t, err)
	assert.False(t, unused.IsUsed)
}

func TestRegisterOrganization_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.issueLicense(t).LicenseKey

	bad := details("Alice", "Admin")
	bad.Phone = "020 7946 0958"
	_, err := f.svc.RegisterOrganization(ctx, RegisterOrganizationRequest{
		LicenseKey: key, CompanyName: "Acme", Email: "a@acme.com", Password: "admin-pass", Admin: bad,
	})
	assert.ErrorIs(t, err, ErrInvalidPhone)

	_, err = f.svc.RegisterOrganization(ctx, RegisterOrganizationRequest{
		LicenseKey: key, CompanyName: "  ", Email: "a@acme.com", Password: "admin-pass", Admin: details("Alice", "Admin"),
	})
	assert.ErrorIs(t, err, ErrMissingCompany)

	_, err = f.svc.RegisterOrganization(ctx, RegisterOrganizationRequest{
		LicenseKey: "GGUARD-2026-NOPE", CompanyName: "Acme", Email: "a@acme.com", Password: "admin-pass", Admin: details("Alice", "Admin"),
	})
	assert.Error(t, err)
	assert.False(t, f.accountExists(t, "a@acme.com"))
}

func TestValidPhone(t *testing.T) {
	valid := []string{"+1234567", "+44 (20) 7946-0958", "+123456789012345"}
	invalid := []string{"", "1234567890", "+123456", "+1234567890123456", "+44 20 7946 0958 ext 2", "+44.20.7946"}
	for _, phone := range valid {
		assert.True(t, ValidPhone(phone), phone)
	}
	for _, phone := range invalid {
		assert.False(t, ValidPhone(phone), phone)
	}
}

func TestSignUp_WithInvitation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "", tenants.TierBasic, "alice@acme.com")

	inv, err := f.svc.InviteUser(ctx, org.User.Principal(), InviteRequest{Email: "bob@gmail.com", Role: rbac.RoleManager})
	require.NoError(t, err)
	require.Len(t, f.events.OfType(events.TypeInvitationCreated), 1)
	assert.Equal(t, inv.InvitationCode, f.events.OfType(events.TypeInvitationCreated)[0].Payload["invitation_code"])

	result, err := f.svc.SignUp(ctx, SignUpRequest{
		InvitationCode: " " + inv.InvitationCode + " ",
		Email:          "Bob@gmail.com",
		Password:       "bob-pass",
		Details:        details("Bob", "Builder"),
	})
	require.NoError(t, err)
	assert.Equal(t, org.Tenant.ID, result.User.TenantID)
	assert.Equal(t, rbac.RoleManager, result.User.Role)
	assert.Equal(t, org.User.ID, result.User.InvitedBy)
	assert.Equal(t, inv.InvitationCode, result.User.InvitationCode)

	used, err := f.invitations.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, used.IsUsed)
	assert.Equal(t, result.User.ID, used.UsedBy)

	_, err = f.svc.SignUp(ctx, SignUpRequest{
		InvitationCode: inv.InvitationCode,
		Email:          "carol@gmail.com",
		Password:       "carol-pass",
		Details:        details("Carol", "Clark"),
	})
	assert.ErrorIs(t, err, invitations.ErrInvalidCode)
	assert.False(t, f.accountExists(t, "carol@gmail.com"))

	assert.Len(t, f.events.OfType(events.TypeInvitationRedeemed), 1)
	assert.Len(t, f.events.OfType(events.TypeUserJoined), 1)
}

func TestSignUp_InvitationEmailMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "", tenants.TierBasic, "alice@acme.com")

	inv, err := f.svc.InviteUser(ctx, org.User.Principal(), InviteRequest{Email: "bob@gmail.com", Role: rbac.RoleFieldPersonnel})
	require.NoError(t, err)

	_, err = f.svc.SignUp(ctx, SignUpRequest{
		InvitationCode: inv.InvitationCode,
		Email:          "eve@gmail.com",
		Password:       "eve-pass",
		Details:        details("Eve", "Sdropper"),
	})
	assert.ErrorIs(t, err, invitations.ErrEmailMismatch)
	assert.False(t, f.accountExists(t, "eve@gmail.com"))
}

func TestSignUp_ByDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "acme.com", tenants.TierBasic, "alice@acme.com")

	result, err := f.svc.SignUp(ctx, SignUpRequest{
		Email:    "john@ACME.com",
		Password: "john-pass",
		Details:  details("John", "Doe"),
	})
	require.NoError(t, err)
	assert.Equal(t, org.Tenant.ID, result.User.TenantID)
	assert.Equal(t, rbac.RoleFieldPersonnel, result.User.Role)
	assert.Equal(t, "JD", result.User.Initials)

	second, err := f.svc.SignUp(ctx, SignUpRequest{
		Email:    "jane@acme.com",
		Password: "jane-pass",
		Details:  details("Jane", "Dawson"),
	})
	require.NoError(t, err)
	assert.Equal(t, "JD1", second.User.Initials)
}

func TestSignUp_NoTenantMatchDeletesAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Email:    "stray@nowhere.org",
		Password: "stray-pass",
		Details:  details("Stray", "Person"),
	})
	assert.ErrorIs(t, err, users.ErrNoTenantMatch)
	assert.False(t, f.accountExists(t, "stray@nowhere.org"))
	assert.Len(t, f.events.Events(), 0)
}

func TestSignUp_UserCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Tiny", "tiny.io", tenants.TierTrial, "owner@tiny.io")

	for i := 0; i < 4; i++ {
		_, err := f.svc.SignUp(ctx, SignUpRequest{
			Email:    fmt.Sprintf("user%d@tiny.io", i),
			Password: "user-pass",
			Details:  details("User", fmt.Sprintf("Number%d", i)),
		})
		require.NoError(t, err, "signup %d", i)
	}

	_, err := f.svc.SignUp(ctx, SignUpRequest{
		Email:    "late@tiny.io",
		Password: "user-pass",
		Details:  details("Late", "Comer"),
	})
	assert.ErrorIs(t, err, tenants.ErrUserLimitReached)
	assert.False(t, f.accountExists(t, "late@tiny.io"))
}

func TestSignUp_InactiveTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "", tenants.TierBasic, "alice@acme.com")

	inv, err := f.svc.InviteUser(ctx, org.User.Principal(), InviteRequest{Role: rbac.RoleFieldPersonnel})
	require.NoError(t, err)
	require.NoError(t, f.svc.SetTenantActive(ctx, operator, org.Tenant.ID, false))

	_, err = f.svc.SignUp(ctx, SignUpRequest{
		InvitationCode: inv.InvitationCode,
		Email:          "bob@gmail.com",
		Password:       "bob-pass",
		Details:        details("Bob", "Builder"),
	})
	assert.ErrorIs(t, err, tenants.ErrInactive)
	assert.False(t, f.accountExists(t, "bob@gmail.com"))
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "acme.com", tenants.TierBasic, "alice@acme.com")
	member, err := f.svc.SignUp(ctx, SignUpRequest{Email: "bob@acme.com", Password: "bob-pass", Details: details("Bob", "Builder")})
	require.NoError(t, err)

	result, err := f.svc.SignIn(ctx, "bob@acme.com", "bob-pass")
	require.NoError(t, err)
	assert.Equal(t, member.User.ID, result.User.ID)
	assert.Equal(t, org.Tenant.ID, result.Tenant.ID)

	stored, err := f.users.Get(ctx, member.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)

	_, err = f.svc.SignIn(ctx, "bob@acme.com", "wrong-pass")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	active := false
	_, err = f.svc.EditUser(ctx, org.User.Principal(), member.User.ID, users.EditPatch{IsActive: &active})
	require.NoError(t, err)
	_, err = f.svc.SignIn(ctx, "bob@acme.com", "bob-pass")
	assert.ErrorIs(t, err, ErrUserInactive)

	require.NoError(t, f.svc.SetTenantActive(ctx, operator, org.Tenant.ID, false))
	_, err = f.svc.SignIn(ctx, "alice@acme.com", "admin-pass")
	assert.ErrorIs(t, err, tenants.ErrInactive)

	failed, err := f.audit.Search(ctx, audit.SearchFilter{EventType: audit.EventTypeAuthSignInFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 3)
}

func TestSignIn_SuperAdminIgnoresTenantState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.svc.CreateSuperAdmin(ctx, SuperAdminRequest{Email: "root@geoguard.io", Password: "root-pass", FullName: "Root"})
	require.NoError(t, err)
	assert.Equal(t, rbac.PlatformTenantID, admin.TenantID)
	assert.Equal(t, "SA", admin.Initials)

	result, err := f.svc.SignIn(ctx, "root@geoguard.io", "root-pass")
	require.NoError(t, err)
	assert.Nil(t, result.Tenant)
	assert.True(t, result.User.Principal().IsSuperAdmin())
}

func TestAuthenticateAndSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "", tenants.TierBasic, "alice@acme.com")
	token := org.Session.Token

	user, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, org.User.ID, user.ID)

	me, err := f.svc.CurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, org.Tenant.ID, me.Tenant.ID)

	require.NoError(t, f.svc.SignOut(ctx, token))
	require.NoError(t, f.svc.SignOut(ctx, token))

	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestSignInOIDC(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "", tenants.TierBasic, "alice@acme.com")

	result, err := f.svc.SignInOIDC(ctx, &identity.ExternalIdentity{Subject: "sso|1", Email: "ALICE@acme.com"})
	require.NoError(t, err)
	assert.Equal(t, org.User.ID, result.User.ID)

	_, err = f.svc.SignInOIDC(ctx, &identity.ExternalIdentity{Subject: "sso|2", Email: "nobody@acme.com"})
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestInviteUser_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.register(t, "Acme", "acme.com", tenants.TierBasic, "alice@acme.com")
	other := f.register(t, "Other", "", tenants.TierBasic, "olga@other.com")

	worker, err := f.svc.SignUp(ctx, SignUpRequest{Email: "w@acme.com", Password: "worker-pass", Details: details("Wendy", "Worker")})
	require.NoError(t, err)

	_, err = f.svc.InviteUser(ctx, worker.User.Principal(), InviteRequest{Role: rbac.RoleFieldPersonnel})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.InviteUser(ctx, acme.User.Principal(), InviteRequest{TenantID: other.Tenant.ID, Role: rbac.RoleFieldPersonnel})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.InviteUser(ctx, acme.User.Principal(), InviteRequest{Role: rbac.RoleSuperAdmin})
	assert.ErrorIs(t, err, ErrForbidden)

	disabled := false
	_, err = f.svc.UpdateTenantSettings(ctx, acme.User.Principal(), acme.Tenant.ID, tenants.SettingsPatch{AllowUserInvites: &disabled})
	require.NoError(t, err)
	_, err = f.svc.InviteUser(ctx, acme.User.Principal(), InviteRequest{Role: rbac.RoleFieldPersonnel})
	assert.ErrorIs(t, err, ErrInvitesDisabled)

	inv, err := f.svc.InviteUser(ctx, operator, InviteRequest{TenantID: acme.Tenant.ID, Role: rbac.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, acme.Tenant.ID, inv.TenantID)

	listed, err := f.svc.ListInvitations(ctx, acme.User.Principal(), "")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	assert.ErrorIs(t, f.svc.DeleteInvitation(ctx, other.User.Principal(), inv.ID), ErrForbidden)
	require.NoError(t, f.svc.DeleteInvitation(ctx, acme.User.Principal(), inv.ID))
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "acme.com", tenants.TierBasic, "alice@acme.com")
	owner := org.User.Principal()

	worker, err := f.svc.SignUp(ctx, SignUpRequest{Email: "w@acme.com", Password: "worker-pass", Details: details("Wendy", "Worker")})
	require.NoError(t, err)

	err = f.svc.TransferOwnership(ctx, owner, org.Tenant.ID, worker.User.ID)
	assert.ErrorIs(t, err, ErrIneligibleOwner)

	promoted := rbac.RoleManager
	_, err = f.svc.EditUser(ctx, owner, worker.User.ID, users.EditPatch{Role: &promoted})
	require.NoError(t, err)

	manager, err := f.users.Get(ctx, worker.User.ID)
	require.NoError(t, err)
	err = f.svc.TransferOwnership(ctx, manager.Principal(), org.Tenant.ID, worker.User.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.TransferOwnership(ctx, owner, org.Tenant.ID, worker.User.ID))

	tenant, err := f.tenants.Load(ctx, org.Tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, worker.User.ID, tenant.AdminUserID)

	newOwner, err := f.users.Get(ctx, worker.User.ID)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, newOwner.Role)
	previous, err := f.users.Get(ctx, org.User.ID)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleManager, previous.Role)

	assert.Len(t, f.events.OfType(events.TypeOwnershipChanged), 1)
	trail, err := f.svc.AuditTrail(ctx, newOwner.Principal(), audit.SearchFilter{EventType: audit.EventTypeTenantOwnershipTransfer})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, worker.User.ID, trail[0].Changes.After["admin_user_id"])
}

func TestEditUser_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Tiny", "tiny.io", tenants.TierTrial, "owner@tiny.io")
	owner := org.User.Principal()

	role := rbac.RoleManager
	_, err := f.svc.EditUser(ctx, owner, owner.UserID, users.EditPatch{Role: &role})
	assert.ErrorIs(t, err, ErrSelfEdit)

	_, err = f.svc.EditUser(ctx, operator, owner.UserID, users.EditPatch{Role: &role})
	assert.ErrorIs(t, err, ErrOwnerProtected)

	var members []*users.User
	for i := 0; i < 4; i++ {
		result, err := f.svc.SignUp(ctx, SignUpRequest{
			Email:    fmt.Sprintf("user%d@tiny.io", i),
			Password: "user-pass",
			Details:  details("User", fmt.Sprintf("Number%d", i)),
		})
		require.NoError(t, err)
		members = append(members, result.User)
	}

	inactive, active := false, true
	_, err = f.svc.EditUser(ctx, owner, members[0].ID, users.EditPatch{IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.svc.SignUp(ctx, SignUpRequest{Email: "late@tiny.io", Password: "user-pass", Details: details("Late", "Comer")})
	require.NoError(t, err)

	_, err = f.svc.EditUser(ctx, owner, members[0].ID, users.EditPatch{IsActive: &active})
	assert.ErrorIs(t, err, tenants.ErrUserLimitReached)

	_, err = f.svc.EditUser(ctx, members[1].Principal(), members[2].ID, users.EditPatch{IsActive: &inactive})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEditUser_SuperAdminBoundToPlatform(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "acme.com", tenants.TierBasic, "alice@acme.com")

	member, err := f.svc.SignUp(ctx, SignUpRequest{Email: "m@acme.com", Password: "member-pass", Details: details("Mel", "Member")})
	require.NoError(t, err)

	super := rbac.RoleSuperAdmin
	_, err = f.svc.EditUser(ctx, operator, member.User.ID, users.EditPatch{Role: &super})
	assert.ErrorIs(t, err, ErrForbidden)

	unchanged, err := f.users.Get(ctx, member.User.ID)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleFieldPersonnel, unchanged.Role)
	assert.Equal(t, org.Tenant.ID, unchanged.TenantID)

	platform, err := f.svc.CreateSuperAdmin(ctx, SuperAdminRequest{
		Email:    "ops2@geoguard.io",
		Password: "platform-pass",
		FullName: "Second Operator",
	})
	require.NoError(t, err)

	demoted := rbac.RoleAdmin
	_, err = f.svc.EditUser(ctx, operator, platform.ID, users.EditPatch{Role: &demoted})
	assert.ErrorIs(t, err, ErrForbidden)

	still, err := f.users.Get(ctx, platform.ID)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleSuperAdmin, still.Role)
}

func TestUploadLogo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "", tenants.TierBasic, "alice@acme.com")

	first, err := f.svc.UploadLogo(ctx, org.User.Principal(), org.Tenant.ID, []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Contains(t, first.LogoURL, org.Tenant.ID)

	second, err := f.svc.UploadLogo(ctx, org.User.Principal(), org.Tenant.ID, []byte("png2"), "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, first.LogoURL, second.LogoURL)
	assert.Equal(t, []string{first.LogoURL}, f.logos.deleted)

	other := f.register(t, "Other", "", tenants.TierBasic, "olga@other.com")
	_, err = f.svc.UploadLogo(ctx, other.User.Principal(), org.Tenant.ID, []byte("png"), "image/png")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLicenseAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.register(t, "Acme", "", tenants.TierBasic, "alice@acme.com")

	_, err := f.svc.IssueLicense(ctx, org.User.Principal(), licenses.IssueRequest{})
	assert.ErrorIs(t, err, ErrForbidden)

	license, err := f.svc.IssueLicense(ctx, operator, licenses.IssueRequest{IssuedTo: "Globex"})
	require.NoError(t, err)
	assert.Equal(t, operator.UserID, license.IssuedBy)

	require.NoError(t, f.svc.RevokeLicense(ctx, operator, license.ID))
	_, err = f.svc.ValidateLicense(ctx, license.LicenseKey)
	assert.ErrorIs(t, err, licenses.ErrRevoked)

	all, err := f.svc.ListLicenses(ctx, operator)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.ListTenants(ctx, org.User.Principal())
	assert.ErrorIs(t, err, ErrForbidden)
	tenantList, err := f.svc.ListTenants(ctx, operator)
	require.NoError(t, err)
	assert.Len(t, tenantList, 1)
}

func TestAuditTrail_ScopedToTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.register(t, "Acme", "", tenants.TierBasic, "alice@acme.com")
	other := f.register(t, "Other", "", tenants.TierBasic, "olga@other.com")

	trail, err := f.svc.AuditTrail(ctx, acme.User.Principal(), audit.SearchFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	for _, event := range trail {
		assert.Equal(t, acme.Tenant.ID, event.TenantID)
	}

	_, err = f.svc.AuditTrail(ctx, acme.User.Principal(), audit.SearchFilter{TenantID: other.Tenant.ID})
	assert.ErrorIs(t, err, ErrForbidden)
}

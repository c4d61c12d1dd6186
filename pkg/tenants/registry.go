package tenants

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // time zone validation must not depend on the host

	"github.com/geoguard/geoguard/pkg/docstore"
	"github.com/geoguard/geoguard/pkg/rbac"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Registry creates and maintains tenant records
type Registry struct {
	store docstore.Store
	users UserDirectory
	now   func() time.Time
}

// NewRegistry creates a new Registry
func NewRegistry(store docstore.Store, users UserDirectory) *Registry {
	return &Registry{store: store, users: users, now: time.Now}
}

// WithClock returns a copy of the registry reading time from now
func (r *Registry) WithClock(now func() time.Time) *Registry {
	clone := *r
	clone.now = now
	return &clone
}

// Create stores a new active tenant and returns its id. It does not look at
// licenses; callers validate and consume the license around it.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (string, error) {
	// the name is stored and compared exactly as given
	name := req.Name
	if strings.TrimSpace(name) == "" {
		return "", ErrInvalidName
	}

	tier := req.Tier
	if tier == "" {
		tier = TierTrial
	}
	if !tier.Valid() {
		return "", ErrInvalidTier
	}

	// names are unique across active and inactive tenants
	existing, err := r.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionTenants,
		Filters:    []docstore.Filter{docstore.Where("name", name)},
		Limit:      1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to check tenant name: %w", err)
	}
	if len(existing) > 0 {
		return "", ErrAlreadyExists
	}

	domain := NormalizeDomain(req.Domain)
	if domain != "" {
		if !ValidDomain(domain) {
			return "", ErrInvalidDomain
		}
		taken, err := r.FindByDomain(ctx, domain)
		if err != nil {
			return "", err
		}
		if taken != nil {
			return "", ErrDomainTaken
		}
	}

	tenant := &Tenant{
		Name:             name,
		Domain:           domain,
		AdminUserID:      req.AdminUserID,
		SubscriptionTier: tier,
		IsActive:         true,
		MaxUsers:         tier.MaxUsers(),
		CreatedAt:        r.now().UTC(),
		Settings:         DefaultSettings(),
	}

	data, err := docstore.Encode(tenant)
	if err != nil {
		return "", err
	}
	id, err := r.store.Insert(ctx, docstore.CollectionTenants, data)
	if err != nil {
		return "", fmt.Errorf("failed to create tenant: %w", err)
	}
	return id, nil
}

// Load returns a tenant by id
func (r *Registry) Load(ctx context.Context, tenantID string) (*Tenant, error) {
	if tenantID == "" {
		return nil, ErrNotFound
	}
	doc, err := r.store.Get(ctx, docstore.CollectionTenants, tenantID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}

	var tenant Tenant
	if err := docstore.Decode(doc, &tenant); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// FindByDomain returns the oldest active tenant claiming domain, or nil if none does
func (r *Registry) FindByDomain(ctx context.Context, domain string) (*Tenant, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil, nil
	}

	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionTenants,
		Filters: []docstore.Filter{
			docstore.Where("domain", domain),
			docstore.Where("is_active", true),
		},
		OrderBy: "created_at",
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find tenant by domain: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var tenant Tenant
	if err := docstore.Decode(docs[0], &tenant); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// CanAddUser reports whether the tenant is below its user cap. The answer is
// advisory: concurrent signups can both see room for one more user.
func (r *Registry) CanAddUser(ctx context.Context, tenantID string) (bool, error) {
	if tenantID == rbac.PlatformTenantID {
		return true, nil
	}

	tenant, err := r.Load(ctx, tenantID)
	if err != nil {
		return false, err
	}
	count, err := r.users.CountActive(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return count < tenant.MaxUsers, nil
}

// UpdateSettings applies patch to the tenant's settings
func (r *Registry) UpdateSettings(ctx context.Context, tenantID string, patch SettingsPatch) (*Settings, error) {
	tenant, err := r.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	settings := tenant.Settings
	if patch.AllowUserInvites != nil {
		settings.AllowUserInvites = *patch.AllowUserInvites
	}
	if patch.RequireInvitationCode != nil {
		settings.RequireInvitationCode = *patch.RequireInvitationCode
	}
	if patch.TimeZone != nil {
		if _, err := time.LoadLocation(*patch.TimeZone); err != nil || *patch.TimeZone == "" {
			return nil, ErrInvalidSettings
		}
		settings.TimeZone = *patch.TimeZone
	}
	if patch.LogoURL != nil {
		settings.LogoURL = strings.TrimSpace(*patch.LogoURL)
	}
	if patch.PrimaryColor != nil {
		color := strings.TrimSpace(*patch.PrimaryColor)
		if color != "" && !colorPattern.MatchString(color) {
			return nil, ErrInvalidSettings
		}
		settings.PrimaryColor = color
	}

	if err := r.update(ctx, tenantID, map[string]any{"settings": settings}); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Deactivate marks a tenant inactive. Its users are untouched; sign-in checks
// the tenant flag.
func (r *Registry) Deactivate(ctx context.Context, tenantID string) error {
	if _, err := r.Load(ctx, tenantID); err != nil {
		return err
	}
	return r.update(ctx, tenantID, map[string]any{"is_active": false})
}

// Reactivate marks a tenant active again unless another active tenant took its domain meanwhile
func (r *Registry) Reactivate(ctx context.Context, tenantID string) error {
	tenant, err := r.Load(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.IsActive {
		return nil
	}
	if tenant.Domain != "" {
		other, err := r.FindByDomain(ctx, tenant.Domain)
		if err != nil {
			return err
		}
		if other != nil && other.ID != tenantID {
			return ErrDomainTaken
		}
	}
	return r.update(ctx, tenantID, map[string]any{"is_active": true})
}

// TransferOwnership hands the tenant to newOwnerID and demotes currentOwnerID to manager.
// The caller checks that the new owner is eligible. The three writes are not
// atomic; a failure part way leaves the earlier writes in place.
func (r *Registry) TransferOwnership(ctx context.Context, tenantID, newOwnerID, currentOwnerID string) error {
	tenant, err := r.Load(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.AdminUserID != currentOwnerID || newOwnerID == currentOwnerID {
		return ErrUnauthorized
	}

	if err := r.update(ctx, tenantID, map[string]any{"admin_user_id": newOwnerID}); err != nil {
		return err
	}
	if err := r.users.SetRole(ctx, newOwnerID, rbac.RoleAdmin); err != nil {
		return fmt.Errorf("failed to promote new owner: %w", err)
	}
	if err := r.users.SetRole(ctx, currentOwnerID, rbac.RoleManager); err != nil {
		return fmt.Errorf("failed to demote previous owner: %w", err)
	}
	return nil
}

// List returns every tenant, newest first
func (r *Registry) List(ctx context.Context) ([]*Tenant, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionTenants,
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	out := make([]*Tenant, 0, len(docs))
	for _, doc := range docs {
		var tenant Tenant
		if err := docstore.Decode(doc, &tenant); err != nil {
			return nil, err
		}
		out = append(out, &tenant)
	}
	return out, nil
}

func (r *Registry) update(ctx context.Context, tenantID string, fields map[string]any) error {
	err := r.store.Update(ctx, docstore.CollectionTenants, tenantID, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

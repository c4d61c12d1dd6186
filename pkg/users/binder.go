package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/geoguard/geoguard/pkg/docstore"
	"github.com/geoguard/geoguard/pkg/invitations"
	"github.com/geoguard/geoguard/pkg/rbac"
	"github.com/geoguard/geoguard/pkg/tenants"
)

const (
	// UnknownInitials is the base used when a name has fewer than two parts
	UnknownInitials = "???"
	// SuperAdminInitials replaces UnknownInitials for platform accounts
	SuperAdminInitials = "SA"
	// MaxInitialsProbe bounds the numeric suffix tried for one base
	MaxInitialsProbe = 999
)

// Binder binds authenticated subjects to tenants and manages user records
type Binder struct {
	*Directory
	tenants TenantResolver
	now     func() time.Time
}

// NewBinder creates a new Binder
func NewBinder(store docstore.Store, resolver TenantResolver) *Binder {
	return &Binder{
		Directory: NewDirectory(store),
		tenants:   resolver,
		now:       time.Now,
	}
}

// SetClock replaces the time source
func (b *Binder) SetClock(now func() time.Time) {
	b.now = now
}

// BindNewUser stores an active user for req.SubjectID with unique initials.
// It does not check the tenant's user cap.
func (b *Binder) BindNewUser(ctx context.Context, req BindRequest) (*User, error) {
	if req.SubjectID == "" || req.TenantID == "" {
		return nil, fmt.Errorf("subject and tenant are required")
	}
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}
	profile := req.Profile
	profile.FullName = strings.TrimSpace(profile.FullName)
	profile.Email = strings.TrimSpace(profile.Email)
	if profile.FullName == "" || profile.Email == "" {
		return nil, ErrInvalidProfile
	}

	if _, err := b.Get(ctx, req.SubjectID); err == nil {
		return nil, ErrAlreadyBound
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	base := BaseInitials(profile.FullName)
	if base == UnknownInitials && req.Role == rbac.RoleSuperAdmin {
		base = SuperAdminInitials
	}
	initials, err := b.probeInitials(ctx, req.TenantID, base)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:             req.SubjectID,
		TenantID:       req.TenantID,
		Profile:        profile,
		Initials:       initials,
		Role:           req.Role,
		IsActive:       true,
		CreatedAt:      b.now().UTC(),
		InvitedBy:      req.InvitedBy,
		InvitationCode: req.InvitationCode,
	}

	data, err := docstore.Encode(user)
	if err != nil {
		return nil, err
	}
	if err := b.store.Put(ctx, docstore.CollectionUsers, user.ID, data); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// BaseInitials returns the uppercased first letters of the first and last name parts
func BaseInitials(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) < 2 {
		return UnknownInitials
	}
	first := []rune(parts[0])[0]
	last := []rune(parts[len(parts)-1])[0]
	return string([]rune{unicode.ToUpper(first), unicode.ToUpper(last)})
}

// UniqueInitials returns the first of base, base1, base2, ... that no user of
// the tenant holds. Two concurrent signups can receive the same value.
func (b *Binder) UniqueInitials(ctx context.Context, tenantID, fullName string) (string, error) {
	return b.probeInitials(ctx, tenantID, BaseInitials(fullName))
}

func (b *Binder) probeInitials(ctx context.Context, tenantID, base string) (string, error) {
	for i := 0; i <= MaxInitialsProbe; i++ {
		candidate := base
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}

		docs, err := b.store.Query(ctx, docstore.Query{
			Collection: docstore.CollectionUsers,
			Filters: []docstore.Filter{
				docstore.Where("tenant_id", tenantID),
				docstore.Where("initials", candidate),
			},
			Limit: 1,
		})
		if err != nil {
			return "", fmt.Errorf("failed to check initials: %w", err)
		}
		if len(docs) == 0 {
			return candidate, nil
		}
	}
	return "", ErrInitialsExhausted
}

// ResolveSignupTarget decides which tenant and role a signup gets. A validated
// invitation always wins; otherwise the email domain must match an active tenant.
func (b *Binder) ResolveSignupTarget(ctx context.Context, inv *invitations.Invitation, email string) (*Target, error) {
	if inv != nil {
		return &Target{TenantID: inv.TenantID, Role: inv.Role, Invitation: inv}, nil
	}

	domain := tenants.EmailDomain(email)
	if domain == "" || b.tenants == nil {
		return nil, ErrNoTenantMatch
	}
	tenant, err := b.tenants.FindByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrNoTenantMatch
	}
	return &Target{TenantID: tenant.ID, Role: rbac.RoleFieldPersonnel}, nil
}

// Get loads a user by id
func (b *Binder) Get(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	doc, err := b.store.Get(ctx, docstore.CollectionUsers, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user User
	if err := docstore.Decode(doc, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListForTenant returns a tenant's users ordered by name
func (b *Binder) ListForTenant(ctx context.Context, tenantID string) ([]*User, error) {
	docs, err := b.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionUsers,
		Filters:    []docstore.Filter{docstore.Where("tenant_id", tenantID)},
		OrderBy:    "full_name",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	out := make([]*User, 0, len(docs))
	for _, doc := range docs {
		var user User
		if err := docstore.Decode(doc, &user); err != nil {
			return nil, err
		}
		out = append(out, &user)
	}
	return out, nil
}

// EditUser applies an administrative role or activation change.
// Permissions are derived from the role on every check, so nothing else changes.
func (b *Binder) EditUser(ctx context.Context, userID string, patch EditPatch) (*User, error) {
	user, err := b.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, ErrInvalidRole
		}
		fields["role"] = *patch.Role
		user.Role = *patch.Role
	}
	if patch.IsActive != nil {
		fields["is_active"] = *patch.IsActive
		user.IsActive = *patch.IsActive
	}
	if len(fields) == 0 {
		return user, nil
	}

	if err := b.update(ctx, userID, fields); err != nil {
		return nil, err
	}
	return user, nil
}

// RecordLogin stamps last_login_at
func (b *Binder) RecordLogin(ctx context.Context, userID string) error {
	return b.update(ctx, userID, map[string]any{"last_login_at": b.now().UTC()})
}

// UpdateProfile applies a user's own profile edits. Initials are kept even
// when the name changes.
func (b *Binder) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*User, error) {
	user, err := b.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	set := func(key string, value *string, target *string) {
		if value == nil {
			return
		}
		v := strings.TrimSpace(*value)
		fields[key] = v
		*target = v
	}

	if patch.FullName != nil && strings.TrimSpace(*patch.FullName) == "" {
		return nil, ErrInvalidProfile
	}
	set("full_name", patch.FullName, &user.FullName)
	set("phone", patch.Phone, &user.Phone)
	set("address", patch.Address, &user.Address)
	set("city", patch.City, &user.City)
	set("country", patch.Country, &user.Country)
	set("vehicle", patch.Vehicle, &user.Vehicle)
	set("emergency_contact", patch.EmergencyContact, &user.EmergencyContact)
	set("emergency_phone", patch.EmergencyPhone, &user.EmergencyPhone)
	set("blood_type", patch.BloodType, &user.BloodType)
	set("medical_notes", patch.MedicalNotes, &user.MedicalNotes)
	if len(fields) == 0 {
		return user, nil
	}

	if err := b.update(ctx, userID, fields); err != nil {
		return nil, err
	}
	return user, nil
}

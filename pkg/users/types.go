package users

import (
	"context"
	"time"

	"github.com/geoguard/geoguard/pkg/apperr"
	"github.com/geoguard/geoguard/pkg/invitations"
	"github.com/geoguard/geoguard/pkg/rbac"
	"github.com/geoguard/geoguard/pkg/tenants"
)

// Profile holds the self-described fields of a user
type Profile struct {
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	Address          string `json:"address,omitempty"`
	City             string `json:"city,omitempty"`
	Country          string `json:"country,omitempty"`
	Vehicle          string `json:"vehicle,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
	EmergencyPhone   string `json:"emergency_phone,omitempty"`
	BloodType        string `json:"blood_type,omitempty"`
	MedicalNotes     string `json:"medical_notes,omitempty"`
}

// User is an identity-provider subject bound to a tenant and a role.
// The id is the provider's subject id.
type User struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Profile
	Initials       string     `json:"initials"`
	Role           rbac.Role  `json:"role"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at"`
	InvitedBy      string     `json:"invited_by,omitempty"`
	InvitationCode string     `json:"invitation_code,omitempty"`
}

// Principal returns the authorization view of u
func (u *User) Principal() rbac.Principal {
	return rbac.Principal{
		UserID:   u.ID,
		TenantID: u.TenantID,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

// BindRequest describes a subject to bind
type BindRequest struct {
	SubjectID      string
	TenantID       string
	Role           rbac.Role
	Profile        Profile
	InvitedBy      string
	InvitationCode string
}

// Target is where a signup lands
type Target struct {
	TenantID   string
	Role       rbac.Role
	Invitation *invitations.Invitation
}

// EditPatch is an administrative change to a user
type EditPatch struct {
	Role     *rbac.Role `json:"role,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}

// ProfilePatch changes the non-nil profile fields. Email is owned by the
// identity provider and cannot be patched.
type ProfilePatch struct {
	FullName         *string `json:"full_name,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Address          *string `json:"address,omitempty"`
	City             *string `json:"city,omitempty"`
	Country          *string `json:"country,omitempty"`
	Vehicle          *string `json:"vehicle,omitempty"`
	EmergencyContact *string `json:"emergency_contact,omitempty"`
	EmergencyPhone   *string `json:"emergency_phone,omitempty"`
	BloodType        *string `json:"blood_type,omitempty"`
	MedicalNotes     *string `json:"medical_notes,omitempty"`
}

// TenantResolver finds the tenant that auto-joins an email domain
type TenantResolver interface {
	FindByDomain(ctx context.Context, domain string) (*tenants.Tenant, error)
}

var (
	ErrNoTenantMatch     = apperr.New(apperr.KindNotFound, "user_no_tenant_match", "No organization found for your email domain. Please use an invitation code or register your organization.")
	ErrInitialsExhausted = apperr.New(apperr.KindExhausted, "user_initials_exhausted", "Could not assign unique initials.")
	ErrNotFound          = apperr.New(apperr.KindNotFound, "user_not_found", "User not found.")
	ErrAlreadyBound      = apperr.New(apperr.KindConflict, "user_already_bound", "This account is already registered.")
	ErrInvalidRole       = apperr.New(apperr.KindInvalid, "user_invalid_role", "Invalid role.")
	ErrInvalidProfile    = apperr.New(apperr.KindInvalid, "user_invalid_profile", "Full name and email are required.")
)

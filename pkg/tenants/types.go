package tenants

import (
	"context"
	"time"

	"github.com/geoguard/geoguard/pkg/apperr"
	"github.com/geoguard/geoguard/pkg/rbac"
)

// Tier is a subscription tier; it fixes the user cap of a tenant
type Tier string

const (
	TierTrial        Tier = "trial"
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// MaxUsers returns the user cap for the tier, or 0 for an unknown tier
func (t Tier) MaxUsers() int {
	switch t {
	case TierTrial:
		return 5
	case TierBasic:
		return 25
	case TierProfessional:
		return 100
	case TierEnterprise:
		return 1000
	}
	return 0
}

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	return t.MaxUsers() > 0
}

// DefaultTimeZone is the time zone given to new tenants
const DefaultTimeZone = "Europe/London"

// Settings are the tenant-wide preferences
type Settings struct {
	AllowUserInvites      bool   `json:"allow_user_invites"`
	RequireInvitationCode bool   `json:"require_invitation_code"`
	TimeZone              string `json:"time_zone"`
	LogoURL               string `json:"logo_url,omitempty"`
	PrimaryColor          string `json:"primary_color,omitempty"`
}

// DefaultSettings returns the settings of a newly registered tenant
func DefaultSettings() Settings {
	return Settings{
		AllowUserInvites:      true,
		RequireInvitationCode: true,
		TimeZone:              DefaultTimeZone,
	}
}

// SettingsPatch changes the non-nil fields of Settings
type SettingsPatch struct {
	AllowUserInvites      *bool   `json:"allow_user_invites,omitempty"`
	RequireInvitationCode *bool   `json:"require_invitation_code,omitempty"`
	TimeZone              *string `json:"time_zone,omitempty"`
	LogoURL               *string `json:"logo_url,omitempty"`
	PrimaryColor          *string `json:"primary_color,omitempty"`
}

// Tenant is an organization and the isolation boundary for its users
type Tenant struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Domain           string    `json:"domain,omitempty"`
	AdminUserID      string    `json:"admin_user_id"`
	SubscriptionTier Tier      `json:"subscription_tier"`
	IsActive         bool      `json:"is_active"`
	MaxUsers         int       `json:"max_users"`
	CreatedAt        time.Time `json:"created_at"`
	Settings         Settings  `json:"settings"`
}

// CreateRequest describes a tenant to create
type CreateRequest struct {
	Name        string `json:"name"`
	Domain      string `json:"domain,omitempty"`
	AdminUserID string `json:"admin_user_id"`
	Tier        Tier   `json:"tier"`
}

// UserDirectory is the slice of the user registry the tenant registry needs
type UserDirectory interface {
	CountActive(ctx context.Context, tenantID string) (int, error)
	SetRole(ctx context.Context, userID string, role rbac.Role) error
}

var (
	ErrAlreadyExists    = apperr.New(apperr.KindConflict, "tenant_already_exists", "A company with this name already exists.")
	ErrNotFound         = apperr.New(apperr.KindNotFound, "tenant_not_found", "Company not found.")
	ErrUserLimitReached = apperr.New(apperr.KindExhausted, "tenant_user_limit_reached", "Maximum number of users reached for this subscription tier.")
	ErrInvalidDomain    = apperr.New(apperr.KindInvalid, "tenant_invalid_domain", "Invalid email domain.")
	ErrUnauthorized     = apperr.New(apperr.KindForbidden, "tenant_unauthorized", "You don't have permission to perform this action.")
	ErrDomainTaken      = apperr.New(apperr.KindConflict, "tenant_domain_taken", "Another company already uses this email domain.")
	ErrInvalidName      = apperr.New(apperr.KindInvalid, "tenant_invalid_name", "Company name is required.")
	ErrInvalidTier      = apperr.New(apperr.KindInvalid, "tenant_invalid_tier", "Unknown subscription tier.")
	ErrInvalidSettings  = apperr.New(apperr.KindInvalid, "tenant_invalid_settings", "Invalid company settings.")
	ErrInactive         = apperr.New(apperr.KindForbidden, "tenant_inactive", "This company account has been deactivated.")
)

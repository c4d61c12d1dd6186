package invitations

import (
	"time"

	"github.com/geoguard/geoguard/pkg/apperr"
	"github.com/geoguard/geoguard/pkg/rbac"
)

const (
	// DefaultExpiryDays is how long an invitation stays redeemable by default
	DefaultExpiryDays = 7
	// MaxCodeAttempts bounds the search for an unused invitation code
	MaxCodeAttempts = 10
)

// Invitation lets one new user join a tenant with a fixed role
type Invitation struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	InvitedBy      string     `json:"invited_by"`
	InvitationCode string     `json:"invitation_code"`
	Email          string     `json:"email,omitempty"`
	Role           rbac.Role  `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	IsUsed         bool       `json:"is_used"`
	UsedBy         string     `json:"used_by,omitempty"`
	UsedAt         *time.Time `json:"used_at"`
}

// IsExpired reports whether the invitation expired before now
func (i *Invitation) IsExpired(now time.Time) bool {
	return i.ExpiresAt.Before(now)
}

// CreateRequest describes an invitation to issue
type CreateRequest struct {
	TenantID      string    `json:"tenant_id"`
	InvitedBy     string    `json:"invited_by"`
	Email         string    `json:"email,omitempty"`
	Role          rbac.Role `json:"role"`
	ExpiresInDays int       `json:"expires_in_days,omitempty"`
}

var (
	ErrInvalidCode        = apperr.New(apperr.KindNotFound, "invitation_invalid_code", "Invalid invitation code.")
	ErrExpired            = apperr.New(apperr.KindExpired, "invitation_expired", "This invitation has expired.")
	ErrEmailMismatch      = apperr.New(apperr.KindForbidden, "invitation_email_mismatch", "This invitation was sent to a different email address.")
	ErrAlreadyUsed        = apperr.New(apperr.KindConflict, "invitation_already_used", "This invitation has already been used.")
	ErrCodeSpaceExhausted = apperr.New(apperr.KindExhausted, "invitation_code_space_exhausted", "Could not generate a unique invitation code.")
	ErrNotFound           = apperr.New(apperr.KindNotFound, "invitation_not_found", "Invitation not found.")
	ErrInvalidRequest     = apperr.New(apperr.KindInvalid, "invitation_invalid_request", "An invitation needs a company, an inviter, a company role and a positive expiry.")
)

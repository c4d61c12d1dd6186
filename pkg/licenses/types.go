package licenses

import (
	"time"

	"github.com/geoguard/geoguard/pkg/apperr"
)

// License is a single-use key that gates the creation of one organization
type License struct {
	ID               string     `json:"id"`
	LicenseKey       string     `json:"license_key"`
	IssuedBy         string     `json:"issued_by"`
	IssuedTo         string     `json:"issued_to,omitempty"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	MaxOrganizations int        `json:"max_organizations"`
	IsUsed           bool       `json:"is_used"`
	UsedAt           *time.Time `json:"used_at"`
	UsedBy           string     `json:"used_by,omitempty"`
	OrganizationName string     `json:"organization_name,omitempty"`
	IsActive         bool       `json:"is_active"`
	Notes            string     `json:"notes,omitempty"`
}

// IsValid reports whether the license can still be redeemed at now
func (l *License) IsValid(now time.Time) bool {
	return l.IsActive && !l.IsUsed && !l.IsExpired(now)
}

// IsExpired reports whether the license expired before now. A license without
// an expiry never expires.
func (l *License) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// IssueRequest describes a license to issue
type IssueRequest struct {
	IssuedBy      string `json:"issued_by"`
	IssuedTo      string `json:"issued_to,omitempty"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"` // 0 means the license never expires
	Notes         string `json:"notes,omitempty"`
}

var (
	ErrNotFound      = apperr.New(apperr.KindNotFound, "license_not_found", "Invalid license key. Please check the key and try again.")
	ErrAlreadyUsed   = apperr.New(apperr.KindConflict, "license_already_used", "This license key has already been used to create an organization.")
	ErrExpired       = apperr.New(apperr.KindExpired, "license_expired", "This license key has expired. Please contact support for a new key.")
	ErrRevoked       = apperr.New(apperr.KindForbidden, "license_revoked", "This license key has been revoked. Please contact support.")
	ErrInvalidFormat = apperr.New(apperr.KindInvalid, "license_invalid_format", "Invalid license key format.")
	ErrInvalidIssue  = apperr.New(apperr.KindInvalid, "license_invalid_request", "A license needs an issuer and a non-negative expiry.")
)

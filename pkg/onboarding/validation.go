package onboarding

import (
	"strings"

	"github.com/geoguard/geoguard/pkg/apperr"
	"github.com/geoguard/geoguard/pkg/users"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
	phoneCharset   = "+0123456789 -()"
)

var (
	ErrForbidden       = apperr.New(apperr.KindForbidden, "forbidden", "You don't have permission to perform this action.")
	ErrIneligibleOwner = apperr.New(apperr.KindInvalid, "ineligible_owner", "Ownership can only be transferred to an active admin or manager of the company.")
	ErrUserInactive    = apperr.New(apperr.KindForbidden, "user_inactive", "Your account has been deactivated. Please contact your administrator.")
	ErrInvitesDisabled = apperr.New(apperr.KindForbidden, "invites_disabled", "User invitations are disabled for this company.")
	ErrSelfEdit        = apperr.New(apperr.KindForbidden, "self_edit", "You cannot change your own role or status.")
	ErrOwnerProtected  = apperr.New(apperr.KindForbidden, "owner_protected", "Transfer ownership before changing the company owner's role or status.")
	ErrMissingName     = apperr.New(apperr.KindInvalid, "missing_name", "Please enter your first and last name.")
	ErrInvalidPhone    = apperr.New(apperr.KindInvalid, "invalid_phone", "Please enter a valid international phone number (e.g., +1234567890).")
	ErrMissingAddress  = apperr.New(apperr.KindInvalid, "missing_address", "Please enter your address, city and country.")
	ErrMissingCompany  = apperr.New(apperr.KindInvalid, "missing_company", "Please enter your company name.")
	ErrOIDCUnavailable = apperr.New(apperr.KindInvalid, "oidc_unavailable", "Single sign-on is not configured.")
	ErrNoAccount       = apperr.New(apperr.KindNotFound, "no_account", "No account exists for this email. Please sign up first.")
	ErrBrandingOff     = apperr.New(apperr.KindInvalid, "branding_unavailable", "Logo uploads are not configured.")
	ErrAuditOff        = apperr.New(apperr.KindInvalid, "audit_unavailable", "The audit trail is not configured.")
)

// PersonDetails is what a person enters about themselves when signing up
type PersonDetails struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Country   string `json:"country"`
	Vehicle   string `json:"vehicle,omitempty"`
}

// Validate checks the required fields and the phone number
func (d PersonDetails) Validate() error {
	if strings.TrimSpace(d.FirstName) == "" || strings.TrimSpace(d.LastName) == "" {
		return ErrMissingName
	}
	if !ValidPhone(d.Phone) {
		return ErrInvalidPhone
	}
	if strings.TrimSpace(d.Address) == "" || strings.TrimSpace(d.City) == "" || strings.TrimSpace(d.Country) == "" {
		return ErrMissingAddress
	}
	return nil
}

// Profile converts the details into a user profile for email
func (d PersonDetails) Profile(email string) users.Profile {
	return users.Profile{
		FullName: strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName),
		Email:    strings.TrimSpace(email),
		Phone:    strings.TrimSpace(d.Phone),
		Address:  strings.TrimSpace(d.Address),
		City:     strings.TrimSpace(d.City),
		Country:  strings.TrimSpace(d.Country),
		Vehicle:  strings.TrimSpace(d.Vehicle),
	}
}

// ValidPhone reports whether phone looks like an international number:
// a leading '+', 7 to 15 digits, and only digits, spaces, dashes and parentheses.
func ValidPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if !strings.HasPrefix(phone, "+") {
		return false
	}
	digits := 0
	for _, r := range phone {
		if !strings.ContainsRune(phoneCharset, r) {
			return false
		}
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits && digits <= maxPhoneDigits
}

package identity

import (
	"context"

	"github.com/geoguard/geoguard/pkg/apperr"
)

// Provider authenticates credentials and owns the subject ids users are keyed by
type Provider interface {
	// CreateAccount registers credentials and returns the new subject id
	CreateAccount(ctx context.Context, email, password string) (string, error)
	// SignIn checks credentials and returns the subject id
	SignIn(ctx context.Context, email, password string) (string, error)
	// DeleteAccount removes an account; deleting a missing account is not an error
	DeleteAccount(ctx context.Context, subjectID string) error
}

var (
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthenticated, "identity_invalid_credentials", "Invalid email or password.")
	ErrEmailInUse         = apperr.New(apperr.KindConflict, "identity_email_in_use", "An account with this email already exists.")
	ErrWeakPassword       = apperr.New(apperr.KindInvalid, "identity_weak_password", "Password must be at least 6 characters.")
	ErrInvalidEmail       = apperr.New(apperr.KindInvalid, "identity_invalid_email", "Please enter a valid email address.")
	ErrUnauthenticated    = apperr.New(apperr.KindUnauthenticated, "identity_unauthenticated", "Please sign in to continue.")
)

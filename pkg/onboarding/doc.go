// Package onboarding composes the license, tenant, invitation, user and
// identity components into the flows people go through:
//
//   - organization registration with a license key
//   - signup with an invitation code
//   - signup by email domain
//   - sign-in with a password or through SSO
//
// It also gates the administrative operations (invitations, user edits,
// tenant settings, ownership transfer, licenses) on the caller's principal,
// and writes the audit trail and domain events for each change.
package onboarding

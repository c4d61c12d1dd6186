// Package tenants manages organizations: creation, user caps, email domain
// auto-join, settings, activation and ownership.
//
// Tenants are never deleted. Deactivation only flips is_active; whether the
// users of an inactive tenant may still sign in is decided at sign-in time.
//
// The user cap is derived from the subscription tier:
//
//	trial         5
//	basic         25
//	professional  100
//	enterprise    1000
package tenants

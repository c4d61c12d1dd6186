// Package licenses manages the pre-issued keys that gate organization registration.
//
// A license key looks like GGUARD-2026-K7QM3XWPA. It is issued by the platform
// team, validated by the registration form, and consumed exactly once when the
// organization it unlocks has been created:
//
//	lic, err := registry.Validate(ctx, key)
//	// create the tenant
//	err = registry.Consume(ctx, lic.ID, tenantID, name)
//
// Validation is read-only. If tenant creation fails between Validate and
// Consume the key stays redeemable.
package licenses

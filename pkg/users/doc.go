// Package users binds identity-provider subjects to tenants and roles.
//
// A user record is keyed by the subject id the identity provider assigned at
// account creation. Binding computes per-tenant display initials by probing
// JD, JD1, JD2 and so on until a free value is found.
//
// Directory is the narrow view used by the tenant registry (active user
// counts and role changes during ownership transfer); Binder builds on it.
package users

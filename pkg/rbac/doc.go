// Package rbac implements GeoGuard's fixed role and permission model.
//
// # Roles
//
// Every bound user carries exactly one role:
//
//	RoleSuperAdmin     - GeoGuard platform team, member of the PLATFORM tenant
//	RoleAdmin          - organization administrator
//	RoleManager        - operations manager
//	RoleFieldPersonnel - field personnel being tracked
//
// Roles map to a fixed set of permissions; there are no custom roles and no
// per-user grants. Super admins hold every permission.
//
// # Gates
//
// The gate functions are pure predicates over a Principal. Callers decide
// what to return when a gate fails:
//
//	if !rbac.HasPermission(actor, rbac.PermissionInviteUsers) {
//	    return ErrForbidden
//	}
//
// CanAssignRole and EligibleForOwnership encode the role transition rules
// used by user editing and ownership transfer.
package rbac

package rbac

// PlatformTenantID is the reserved tenant that owns super admin accounts
const PlatformTenantID = "PLATFORM"

// Principal is the authorization view of a bound user
type Principal struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}

// IsSuperAdmin reports whether p is a platform super admin
func (p Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

// HasPermission reports whether p's role grants perm
func HasPermission(p Principal, perm Permission) bool {
	for _, granted := range p.Role.Permissions() {
		if granted == perm {
			return true
		}
	}
	return false
}

// HasRole reports whether p has exactly role
func HasRole(p Principal, role Role) bool {
	return p.Role == role
}

// CanAccessTenant reports whether p may act inside tenantID
func CanAccessTenant(p Principal, tenantID string) bool {
	return p.IsSuperAdmin() || (tenantID != "" && p.TenantID == tenantID)
}

// CanAssignRole reports whether actor may give target to a user of
// targetTenantID. Super admins may assign any role; admins may assign any
// tenant role; nobody else assigns. Super admin is only held inside the
// platform tenant, and the platform tenant holds nothing else.
func CanAssignRole(actor Principal, target Role, targetTenantID string) bool {
	if !target.Valid() {
		return false
	}
	if (target == RoleSuperAdmin) != (targetTenantID == PlatformTenantID) {
		return false
	}
	switch actor.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return target != RoleSuperAdmin
	}
	return false
}

// CanManageTenantSettings reports whether actor may edit tenantID's settings
func CanManageTenantSettings(actor Principal, tenantID string) bool {
	if actor.IsSuperAdmin() {
		return true
	}
	return actor.Role == RoleAdmin && actor.TenantID == tenantID
}

// EligibleForOwnership reports whether candidate can take over tenantID from currentOwnerID.
// The candidate must be an active admin or manager of the same tenant and not the current owner.
func EligibleForOwnership(candidate Principal, currentOwnerID, tenantID string) bool {
	if candidate.UserID == "" || candidate.UserID == currentOwnerID {
		return false
	}
	if !candidate.IsActive || candidate.TenantID != tenantID {
		return false
	}
	return candidate.Role == RoleAdmin || candidate.Role == RoleManager
}

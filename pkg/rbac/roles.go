package rbac

import (
	"fmt"
	"strings"
)

// Role is one of the four fixed authorization levels
type Role string

const (
	RoleSuperAdmin     Role = "super_admin"     // GeoGuard platform team only
	RoleAdmin          Role = "admin"           // Organization administrator
	RoleManager        Role = "manager"         // Operations manager
	RoleFieldPersonnel Role = "field_personnel" // Field personnel being tracked
)

// Permission names an authorized capability
type Permission string

const (
	PermissionViewUsers          Permission = "view_users"
	PermissionManageUsers        Permission = "manage_users"
	PermissionViewGeofences      Permission = "view_geofences"
	PermissionManageGeofences    Permission = "manage_geofences"
	PermissionViewLocations      Permission = "view_locations"
	PermissionManageLocations    Permission = "manage_locations"
	PermissionViewReports        Permission = "view_reports"
	PermissionInviteUsers        Permission = "invite_users"
	PermissionManageTenant       Permission = "manage_tenant"
	PermissionManageLicenses     Permission = "manage_licenses"
	PermissionShareLocation      Permission = "share_location"
	PermissionSendEmergencyAlert Permission = "send_emergency_alert"
	PermissionSendAlerts         Permission = "send_alerts"
	PermissionViewEmergencyInfo  Permission = "view_emergency_info"
)

// AllRoles lists every role, most privileged first
var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleFieldPersonnel}

// AllPermissions lists every permission
var AllPermissions = []Permission{
	PermissionViewUsers,
	PermissionManageUsers,
	PermissionViewGeofences,
	PermissionManageGeofences,
	PermissionViewLocations,
	PermissionManageLocations,
	PermissionViewReports,
	PermissionInviteUsers,
	PermissionManageTenant,
	PermissionManageLicenses,
	PermissionShareLocation,
	PermissionSendEmergencyAlert,
	PermissionSendAlerts,
	PermissionViewEmergencyInfo,
}

var (
	adminPermissions = []Permission{
		PermissionViewUsers, PermissionManageUsers,
		PermissionViewGeofences, PermissionManageGeofences,
		PermissionViewLocations, PermissionManageLocations,
		PermissionViewReports, PermissionInviteUsers,
		PermissionSendAlerts, PermissionViewEmergencyInfo,
	}
	managerPermissions = []Permission{
		PermissionViewUsers,
		PermissionViewGeofences, PermissionManageGeofences,
		PermissionViewLocations, PermissionViewReports,
		PermissionSendAlerts, PermissionViewEmergencyInfo,
	}
	fieldPersonnelPermissions = []Permission{
		PermissionViewGeofences, PermissionShareLocation, PermissionSendEmergencyAlert,
	}
)

// Permissions returns the fixed permission set of a role.
// Unknown roles have no permissions.
func (r Role) Permissions() []Permission {
	var perms []Permission
	switch r {
	case RoleSuperAdmin:
		perms = AllPermissions
	case RoleAdmin:
		perms = adminPermissions
	case RoleManager:
		perms = managerPermissions
	case RoleFieldPersonnel:
		perms = fieldPersonnelPermissions
	default:
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Valid reports whether r is one of the defined roles
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleFieldPersonnel:
		return true
	}
	return false
}

// DisplayName returns a human readable role name
func (r Role) DisplayName() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Administrator"
	case RoleManager:
		return "Manager"
	case RoleFieldPersonnel:
		return "Field Personnel"
	}
	return string(r)
}

// ParseRole converts a raw role name, rejecting anything outside the enumeration
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return role, nil
}

// ParsePermission converts a raw permission name
func ParsePermission(s string) (Permission, error) {
	for _, p := range AllPermissions {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid permission: %q", s)
}

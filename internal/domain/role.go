package domain

import (
	"fmt"
	"strings"
)

// Permission names a capability checked by the authorization layer.
type Permission string

const (
	PermTicketsView        Permission = "tickets.view"
	PermTicketsManage      Permission = "tickets.manage"
	PermContactsView       Permission = "contacts.view"
	PermContactsManage     Permission = "contacts.manage"
	PermTeamsManage        Permission = "teams.manage"
	PermUsersManage        Permission = "users.manage"
	PermRolesManage        Permission = "roles.manage"
	PermSLAManage          Permission = "sla.manage"
	PermImportsManage      Permission = "imports.manage"
	PermExportsManage      Permission = "exports.manage"
	PermAppointmentsView   Permission = "appointments.view"
	PermAppointmentsManage Permission = "appointments.manage"
	PermSettingsManage     Permission = "settings.manage"
	PermAPIKeysManage      Permission = "apikeys.manage"
	PermNotificationsView  Permission = "notifications.view"
)

// AllPermissions lists every permission known to the system.
func AllPermissions() []Permission {
	return []Permission{
		PermTicketsView, PermTicketsManage,
		PermContactsView, PermContactsManage,
		PermTeamsManage, PermUsersManage, PermRolesManage,
		PermSLAManage, PermImportsManage, PermExportsManage,
		PermAppointmentsView, PermAppointmentsManage,
		PermSettingsManage, PermAPIKeysManage, PermNotificationsView,
	}
}

// IsValidPermission reports whether p is a known permission.
func IsValidPermission(p Permission) bool {
	for _, known := range AllPermissions() {
		if known == p {
			return true
		}
	}
	return false
}

// Role groups permissions assigned to users within a tenant.
type Role struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	Permissions []Permission
	IsBuiltIn   bool
	Audit
}

// HasPermission reports whether the role grants p.
func (r Role) HasPermission(p Permission) bool {
	for _, granted := range r.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

// BuiltInRole is one of the roles seeded into every tenant.
type BuiltInRole struct {
	name        string
	description string
	permissions []Permission
}

var (
	BuiltInRoleAdmin = BuiltInRole{
		name:        "Admin",
		description: "Full access to every tenant setting and record",
		permissions: AllPermissions(),
	}
	BuiltInRoleManager = BuiltInRole{
		name:        "Manager",
		description: "Runs teams, SLA policies and data jobs",
		permissions: []Permission{
			PermTicketsView, PermTicketsManage,
			PermContactsView, PermContactsManage,
			PermTeamsManage, PermSLAManage,
			PermImportsManage, PermExportsManage,
			PermAppointmentsView, PermAppointmentsManage,
			PermNotificationsView,
		},
	}
	BuiltInRoleAgent = BuiltInRole{
		name:        "Agent",
		description: "Works tickets and appointments",
		permissions: []Permission{
			PermTicketsView, PermTicketsManage,
			PermContactsView, PermContactsManage,
			PermAppointmentsView, PermAppointmentsManage,
			PermNotificationsView,
		},
	}
	BuiltInRoleReadOnly = BuiltInRole{
		name:        "ReadOnly",
		description: "Read-only access to tickets, contacts and appointments",
		permissions: []Permission{
			PermTicketsView, PermContactsView, PermAppointmentsView, PermNotificationsView,
		},
	}
)

// BuiltInRoles returns the seeded roles in display order.
func BuiltInRoles() []BuiltInRole {
	return []BuiltInRole{BuiltInRoleAdmin, BuiltInRoleManager, BuiltInRoleAgent, BuiltInRoleReadOnly}
}

// ParseBuiltInRole resolves a built-in role by name, case-insensitively.
func ParseBuiltInRole(name string) (BuiltInRole, error) {
	for _, role := range BuiltInRoles() {
		if strings.EqualFold(role.name, strings.TrimSpace(name)) {
			return role, nil
		}
	}
	return BuiltInRole{}, fmt.Errorf("unknown built-in role %q", name)
}

// IsBuiltInRoleName reports whether name collides with a built-in role.
func IsBuiltInRoleName(name string) bool {
	_, err := ParseBuiltInRole(name)
	return err == nil
}

func (b BuiltInRole) String() string { return b.name }

// Name returns the role name.
func (b BuiltInRole) Name() string { return b.name }

// Description returns the role description.
func (b BuiltInRole) Description() string { return b.description }

// Permissions returns a copy of the role's permissions.
func (b BuiltInRole) Permissions() []Permission {
	return append([]Permission(nil), b.permissions...)
}

// Role materializes the built-in role for a tenant.
func (b BuiltInRole) Role(tenantID string) Role {
	return Role{
		TenantID:    tenantID,
		Name:        b.name,
		Description: b.description,
		Permissions: b.Permissions(),
		IsBuiltIn:   true,
	}
}

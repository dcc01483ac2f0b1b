package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltInRoles_Count(t *testing.T) {
	assert.Len(t, BuiltInRoles(), 4)
}

func TestBuiltInRoles_RoundTripByName(t *testing.T) {
	for _, role := range BuiltInRoles() {
		parsed, err := ParseBuiltInRole(role.String())
		require.NoError(t, err)
		assert.Equal(t, role.Name(), parsed.Name())
		assert.ElementsMatch(t, role.Permissions(), parsed.Permissions())
	}
}

func TestParseBuiltInRole_IsCaseInsensitive(t *testing.T) {
	role, err := ParseBuiltInRole("  admin ")
	require.NoError(t, err)
	assert.Equal(t, BuiltInRoleAdmin.Name(), role.Name())

	_, err = ParseBuiltInRole("Owner")
	assert.Error(t, err)
}

func TestBuiltInRoleAdmin_HasEveryPermission(t *testing.T) {
	admin := BuiltInRoleAdmin.Role("tenant-1")
	for _, perm := range AllPermissions() {
		assert.True(t, admin.HasPermission(perm), perm)
	}
	assert.True(t, admin.IsBuiltIn)
	assert.Equal(t, "tenant-1", admin.TenantID)
}

func TestBuiltInRoleReadOnly_CannotManage(t *testing.T) {
	ro := BuiltInRoleReadOnly.Role("t")
	assert.False(t, ro.HasPermission(PermTicketsManage))
	assert.True(t, ro.HasPermission(PermTicketsView))
}

func TestBuiltInRole_PermissionsAreCopied(t *testing.T) {
	perms := BuiltInRoleAgent.Permissions()
	perms[0] = "mutated"
	assert.NotEqual(t, Permission("mutated"), BuiltInRoleAgent.Permissions()[0])
}

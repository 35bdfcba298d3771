package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleContainment(t *testing.T) {
	t.Parallel()

	// each tier must hold everything the tier below it holds
	order := []Role{RoleUser, RoleManager, RoleAdmin}
	for i := 0; i < len(order)-1; i++ {
		lower, higher := order[i], order[i+1]
		hp := &Principal{ID: "x", Role: higher}
		for _, perm := range rolePermissions(lower) {
			if !HasPermission(hp, perm) {
				t.Errorf("%s should inherit %s from %s", higher, perm, lower)
			}
		}
	}
}

func TestHasPermission(t *testing.T) {
	t.Parallel()

	user := &Principal{ID: "u", Role: RoleUser}
	manager := &Principal{ID: "m", Role: RoleManager}
	admin := &Principal{ID: "a", Role: RoleAdmin}

	tests := []struct {
		name string
		p    *Principal
		perm Permission
		want bool
	}{
		{"user creates checks", user, PermCreateCheck, true},
		{"user views checks", user, PermViewChecks, true},
		{"user cannot void", user, PermVoidCheck, false},
		{"user cannot see bank details", user, PermViewBankDetails, false},
		{"user cannot manage users", user, PermManageUsers, false},
		{"manager voids", manager, PermVoidCheck, true},
		{"manager views audit", manager, PermViewAudit, true},
		{"manager cannot manage users", manager, PermManageUsers, false},
		{"manager cannot export audit", manager, PermExportAudit, false},
		{"admin manages users", admin, PermManageUsers, true},
		{"admin exports audit", admin, PermExportAudit, true},
		{"admin runs migration", admin, PermRunMigration, true},
		{"nil principal", nil, PermViewChecks, false},
		{"unknown role", &Principal{ID: "z", Role: Role(42)}, PermViewChecks, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.p, tt.perm))
		})
	}
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	t.Parallel()

	manager := &Principal{ID: "m", Role: RoleManager}

	assert.True(t, HasAnyPermission(manager, PermManageUsers, PermVoidCheck))
	assert.False(t, HasAnyPermission(manager, PermManageUsers, PermExportAudit))
	assert.True(t, HasAllPermissions(manager, PermVoidCheck, PermViewAudit))
	assert.False(t, HasAllPermissions(manager, PermVoidCheck, PermManageUsers))
	assert.True(t, HasAllPermissions(manager))
}

func TestHasRoleAtLeast(t *testing.T) {
	t.Parallel()

	assert.True(t, HasRoleAtLeast(&Principal{Role: RoleAdmin}, RoleUser))
	assert.True(t, HasRoleAtLeast(&Principal{Role: RoleManager}, RoleManager))
	assert.False(t, HasRoleAtLeast(&Principal{Role: RoleUser}, RoleManager))
	assert.False(t, HasRoleAtLeast(nil, RoleUser))
	assert.False(t, HasRoleAtLeast(&Principal{Role: Role(42)}, RoleUser))
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	r, err := ParseRole("MANAGER")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, r)

	_, err = ParseRole("SUPERADMIN")
	assert.Error(t, err)

	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRoleString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "USER", RoleUser.String())
	assert.Equal(t, "ADMIN", RoleAdmin.String())
	assert.Equal(t, "Role(42)", Role(42).String())
	assert.False(t, Role(42).Valid())
	assert.True(t, RoleManager.Valid())
}

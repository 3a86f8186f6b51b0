package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-admin/internal/model"
)

func TestRoleServiceProtectsSuperAdmin(t *testing.T) {
	ctx := context.Background()
	roles := &fakeRoles{roles: map[int][]string{1: {"roles:write"}}, names: map[int]string{1: "Super Admin"}}
	svc := NewRoleService(roles)

	_, err := svc.UpdateRole(ctx, model.SuperAdminRoleID, model.RoleRequest{Name: "Renamed"})
	assert.ErrorIs(t, err, ErrRoleImmutable)
	assert.ErrorIs(t, svc.DeleteRole(ctx, model.SuperAdminRoleID), ErrRoleImmutable)
	assert.Equal(t, "Super Admin", roles.names[1])
}

func TestRoleServiceValidatesPermissions(t *testing.T) {
	ctx := context.Background()
	roles := &fakeRoles{roles: map[int][]string{1: {}}, names: map[int]string{1: "Super Admin"}}
	svc := NewRoleService(roles)

	_, err := svc.CreateRole(ctx, model.RoleRequest{Name: "Proctor", Permissions: []string{"exams:read", "exams:fly"}})
	assert.ErrorIs(t, err, ErrUnknownPermission)

	role, err := svc.CreateRole(ctx, model.RoleRequest{
		Name:        "  Proctor ",
		Permissions: []string{"exams:read", "attempts:read", "exams:read"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Proctor", role.Name)
	assert.Equal(t, []string{"exams:read", "attempts:read"}, role.Permissions)
}

func TestGetAllPermissionsMatchesCatalog(t *testing.T) {
	perms := NewRoleService(nil).GetAllPermissions()
	assert.Len(t, perms, len(model.AllPermissions))
	assert.Contains(t, perms, string(model.PermissionAIExtract))
}

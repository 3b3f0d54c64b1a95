package roles_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medistore/medistore/internal/platform/httpx"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/store/memory"
	"github.com/medistore/medistore/internal/users"
)

type registry struct {
	roles  *roles.Service
	users  *users.Service
	ids    []int64
	byCode map[string]int64
}

func newRegistry(t *testing.T) *registry {
	t.Helper()
	store := memory.New()
	privs := privileges.NewService(store.Privileges(), nil)
	reg := &registry{
		roles:  roles.NewService(store.Roles(), nil),
		users:  users.NewService(store.Users(), nil),
		byCode: make(map[string]int64),
	}
	for _, in := range []privileges.Input{
		{Code: privileges.ViewInventory, Category: privileges.CategoryInventory},
		{Code: privileges.ManageInventory, Category: privileges.CategoryInventory},
		{Code: privileges.SystemSettings, Category: privileges.CategorySystem},
	} {
		p, _, err := privs.Register(context.Background(), in)
		require.NoError(t, err)
		reg.ids = append(reg.ids, p.ID)
		reg.byCode[p.Code] = p.ID
	}
	return reg
}

func (r *registry) systemAdmin(t *testing.T) roles.Role {
	t.Helper()
	admin, err := r.roles.UpsertByCode(context.Background(), roles.UpsertInput{
		Code:         "ADMIN",
		Name:         "Administrator",
		PrivilegeIDs: r.ids,
		IsSystem:     true,
	})
	require.NoError(t, err)
	return admin
}

func TestDeleteSystemRoleForbidden(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	admin := reg.systemAdmin(t)
	require.True(t, admin.IsSystem)
	require.Len(t, admin.Privileges, 3)

	err := reg.roles.Delete(ctx, admin.ID)
	require.ErrorIs(t, err, roles.ErrSystemRole)
	require.Equal(t, 403, httpx.StatusOf(err))

	_, err = reg.roles.FindByCode(ctx, "ADMIN")
	require.NoError(t, err)
}

func TestSystemRoleRejectsEdits(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	admin := reg.systemAdmin(t)

	name := "Superuser"
	_, err := reg.roles.Update(ctx, admin.ID, roles.Patch{Name: &name})
	require.ErrorIs(t, err, roles.ErrSystemRole)

	ids := []int64{reg.byCode[privileges.ViewInventory]}
	_, err = reg.roles.Update(ctx, admin.ID, roles.Patch{PrivilegeIDs: &ids})
	require.ErrorIs(t, err, roles.ErrSystemRole)

	_, err = reg.roles.SetActive(ctx, admin.ID, false)
	require.ErrorIs(t, err, roles.ErrSystemRole)

	reloaded, err := reg.roles.Get(ctx, admin.ID)
	require.NoError(t, err)
	require.Equal(t, "Administrator", reloaded.Name)
	require.Len(t, reloaded.PrivilegeIDs, 3)
	require.True(t, reloaded.IsActive)
}

func TestDeleteUnusedCustomRole(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	temp, err := reg.roles.Create(ctx, roles.CreateInput{Code: "TEMP", Name: "Temp", PrivilegeIDs: []int64{reg.ids[0]}})
	require.NoError(t, err)
	require.False(t, temp.IsSystem)

	require.NoError(t, reg.roles.Delete(ctx, temp.ID))

	_, err = reg.roles.FindByCode(ctx, "TEMP")
	require.ErrorIs(t, err, roles.ErrNotFound)
}

func TestDeleteRoleInUse(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	locum, err := reg.roles.Create(ctx, roles.CreateInput{Code: "LOCUM", Name: "Locum", PrivilegeIDs: []int64{reg.ids[0]}})
	require.NoError(t, err)
	user, err := reg.users.Create(ctx, users.CreateInput{Email: "locum@example.com", Name: "Locum", Password: "correct-horse", RoleID: locum.ID})
	require.NoError(t, err)

	err = reg.roles.Delete(ctx, locum.ID)
	require.ErrorIs(t, err, roles.ErrInUse)
	require.Equal(t, 409, httpx.StatusOf(err))

	admin := reg.systemAdmin(t)
	_, err = reg.users.AssignRole(ctx, user.ID, admin.ID)
	require.NoError(t, err)
	require.NoError(t, reg.roles.Delete(ctx, locum.ID))
}

func TestUpsertByCodeRefreshesWithoutTouchingSystemFlag(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	custom, err := reg.roles.Create(ctx, roles.CreateInput{Code: "AUDITOR", Name: "Auditor"})
	require.NoError(t, err)

	updated, err := reg.roles.UpsertByCode(ctx, roles.UpsertInput{
		Code:         "AUDITOR",
		Name:         "External Auditor",
		PrivilegeIDs: []int64{reg.ids[1], reg.ids[0], reg.ids[1]},
		IsSystem:     true,
	})
	require.NoError(t, err)
	require.Equal(t, custom.ID, updated.ID)
	require.Equal(t, "External Auditor", updated.Name)
	require.False(t, updated.IsSystem)
	require.Equal(t, []int64{reg.ids[0], reg.ids[1]}, updated.PrivilegeIDs)

	admin := reg.systemAdmin(t)
	again, err := reg.roles.UpsertByCode(ctx, roles.UpsertInput{Code: "ADMIN", Name: "Administrator", PrivilegeIDs: reg.ids[:1]})
	require.NoError(t, err)
	require.Equal(t, admin.ID, again.ID)
	require.True(t, again.IsSystem)
	require.Equal(t, reg.ids[:1], again.PrivilegeIDs)
}

func TestCreateRoleValidation(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	_, err := reg.roles.Create(ctx, roles.CreateInput{Code: "GHOST", Name: "Ghost", PrivilegeIDs: []int64{9999}})
	require.ErrorIs(t, err, roles.ErrUnknownPrivilege)
	require.Equal(t, 400, httpx.StatusOf(err))

	_, err = reg.roles.FindByCode(ctx, "GHOST")
	require.ErrorIs(t, err, roles.ErrNotFound)

	_, err = reg.roles.Create(ctx, roles.CreateInput{Code: "intern", Name: "Intern"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = reg.roles.Create(ctx, roles.CreateInput{Code: "INTERN", Name: "Intern"})
	require.NoError(t, err)
	_, err = reg.roles.Create(ctx, roles.CreateInput{Code: "INTERN", Name: "Intern Again"})
	require.ErrorIs(t, err, roles.ErrDuplicateCode)
}

func TestUpdateCustomRole(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	role, err := reg.roles.Create(ctx, roles.CreateInput{Code: "BUYER", Name: "Buyer", PrivilegeIDs: []int64{reg.byCode[privileges.ViewInventory]}})
	require.NoError(t, err)

	name := "Purchasing Officer"
	ids := []int64{reg.byCode[privileges.ManageInventory]}
	updated, err := reg.roles.Update(ctx, role.ID, roles.Patch{Name: &name, PrivilegeIDs: &ids})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)
	require.Equal(t, []string{privileges.ManageInventory}, updated.PrivilegeCodes())

	bad := []int64{reg.byCode[privileges.ViewInventory], 424242}
	_, err = reg.roles.Update(ctx, role.ID, roles.Patch{PrivilegeIDs: &bad})
	require.ErrorIs(t, err, roles.ErrUnknownPrivilege)

	reloaded, err := reg.roles.Get(ctx, role.ID)
	require.NoError(t, err)
	require.Equal(t, []string{privileges.ManageInventory}, reloaded.PrivilegeCodes())
}

func TestDeactivatedRoleCannotBeAssigned(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	role, err := reg.roles.Create(ctx, roles.CreateInput{Code: "SEASONAL", Name: "Seasonal"})
	require.NoError(t, err)
	_, err = reg.roles.SetActive(ctx, role.ID, false)
	require.NoError(t, err)

	_, err = reg.users.Create(ctx, users.CreateInput{Email: "temp@example.com", Name: "Temp", Password: "correct-horse", RoleID: role.ID})
	require.ErrorIs(t, err, users.ErrRoleUnavailable)
}

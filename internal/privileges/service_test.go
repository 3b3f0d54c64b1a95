package privileges_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medistore/medistore/internal/platform/httpx"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/store/memory"
)

func TestRegisterIsIdempotent(t *testing.T) {
	store := memory.New()
	svc := privileges.NewService(store.Privileges(), nil)
	ctx := context.Background()

	first, created, err := svc.Register(ctx, privileges.Input{Code: privileges.ViewInventory, Category: privileges.CategoryInventory})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "View Inventory", first.Name)
	require.True(t, first.IsActive)

	second, created, err := svc.Register(ctx, privileges.Input{
		Code:     privileges.ViewInventory,
		Name:     "Renamed By Catalog",
		Category: privileges.CategoryReports,
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "View Inventory", second.Name)
	require.Equal(t, privileges.CategoryInventory, second.Category)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestRegisterRejectsMalformedInput(t *testing.T) {
	svc := privileges.NewService(memory.New().Privileges(), nil)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, privileges.Input{Code: "view inventory", Category: privileges.CategoryInventory})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = svc.Register(ctx, privileges.Input{Code: "VIEW_THINGS", Category: "GARDENING"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateDuplicateCode(t *testing.T) {
	svc := privileges.NewService(memory.New().Privileges(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, privileges.Input{Code: "VIEW_TEMPERATURE_LOGS", Category: privileges.CategoryInventory})
	require.NoError(t, err)
	_, err = svc.Create(ctx, privileges.Input{Code: "VIEW_TEMPERATURE_LOGS", Category: privileges.CategoryInventory})
	require.ErrorIs(t, err, privileges.ErrDuplicateCode)
	require.Equal(t, 400, httpx.StatusOf(err))
}

func TestFindActiveByCategorySortedAndFiltered(t *testing.T) {
	svc := privileges.NewService(memory.New().Privileges(), nil)
	ctx := context.Background()

	ids := map[string]int64{}
	for _, in := range []privileges.Input{
		{Code: privileges.ViewReports, Category: privileges.CategoryReports},
		{Code: privileges.ExportReports, Category: privileges.CategoryReports},
		{Code: "AUDIT_REPORTS", Name: "Audit Reports", Category: privileges.CategoryReports},
		{Code: privileges.ViewSales, Category: privileges.CategorySales},
	} {
		p, _, err := svc.Register(ctx, in)
		require.NoError(t, err)
		ids[p.Code] = p.ID
	}

	_, err := svc.Deactivate(ctx, ids["AUDIT_REPORTS"])
	require.NoError(t, err)

	items, err := svc.FindActiveByCategory(ctx, privileges.CategoryReports)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Export Reports", items[0].Name)
	require.Equal(t, "View Reports", items[1].Name)

	_, err = svc.FindActiveByCategory(ctx, "GARDENING")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteRefusesWhileActiveRoleReferences(t *testing.T) {
	store := memory.New()
	svc := privileges.NewService(store.Privileges(), nil)
	roleSvc := roles.NewService(store.Roles(), nil)
	ctx := context.Background()

	p, _, err := svc.Register(ctx, privileges.Input{Code: privileges.AdjustStock, Category: privileges.CategoryInventory})
	require.NoError(t, err)
	role, err := roleSvc.Create(ctx, roles.CreateInput{Code: "STOCK_CLERK", Name: "Stock Clerk", PrivilegeIDs: []int64{p.ID}})
	require.NoError(t, err)

	err = svc.Delete(ctx, p.ID)
	require.ErrorIs(t, err, privileges.ErrInUse)
	require.Equal(t, 409, httpx.StatusOf(err))

	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)

	_, err = roleSvc.SetActive(ctx, role.ID, false)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, p.ID))

	_, err = svc.Get(ctx, p.ID)
	require.ErrorIs(t, err, privileges.ErrNotFound)

	reloaded, err := roleSvc.Get(ctx, role.ID)
	require.NoError(t, err)
	require.Empty(t, reloaded.PrivilegeIDs)
}

func TestDeleteUnknownPrivilege(t *testing.T) {
	svc := privileges.NewService(memory.New().Privileges(), nil)
	err := svc.Delete(context.Background(), 999)
	require.ErrorIs(t, err, privileges.ErrNotFound)
	require.Equal(t, 404, httpx.StatusOf(err))
}

func TestDeactivateKeepsRoleMembership(t *testing.T) {
	store := memory.New()
	svc := privileges.NewService(store.Privileges(), nil)
	roleSvc := roles.NewService(store.Roles(), nil)
	ctx := context.Background()

	p, _, err := svc.Register(ctx, privileges.Input{Code: privileges.ViewDrugs, Category: privileges.CategoryDrugManagement})
	require.NoError(t, err)
	role, err := roleSvc.Create(ctx, roles.CreateInput{Code: "TECHNICIAN", Name: "Technician", PrivilegeIDs: []int64{p.ID}})
	require.NoError(t, err)

	deactivated, err := svc.Deactivate(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, deactivated.IsActive)

	reloaded, err := roleSvc.Get(ctx, role.ID)
	require.NoError(t, err)
	require.Equal(t, []string{privileges.ViewDrugs}, reloaded.PrivilegeCodes())

	activated, err := svc.Activate(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, activated.IsActive)
}

func TestDefaultCatalogIsWellFormed(t *testing.T) {
	seen := map[string]bool{}
	for _, in := range privileges.DefaultCatalog() {
		normalized, err := in.Normalize()
		require.NoError(t, err, in.Code)
		require.False(t, seen[normalized.Code], "duplicate %s", normalized.Code)
		seen[normalized.Code] = true
	}
	require.Len(t, seen, 22)
}

package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/store/memory"
	"github.com/medistore/medistore/internal/users"
)

type fixture struct {
	store     *memory.Store
	privs     *privileges.Service
	roles     *roles.Service
	users     *users.Service
	resolver  *Resolver
	evaluator *Evaluator
	ids       map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	f := &fixture{
		store: store,
		privs: privileges.NewService(store.Privileges(), nil),
		roles: roles.NewService(store.Roles(), nil),
		users: users.NewService(store.Users(), nil),
		ids:   make(map[string]int64),
	}
	f.resolver = NewResolver(store.Users(), store.Roles(), nil)
	f.evaluator = NewEvaluator(f.resolver)

	for _, in := range []privileges.Input{
		{Code: privileges.ViewInventory, Category: privileges.CategoryInventory},
		{Code: privileges.ManageInventory, Category: privileges.CategoryInventory},
		{Code: privileges.AdjustStock, Category: privileges.CategoryInventory},
		{Code: privileges.ViewReports, Category: privileges.CategoryReports},
		{Code: privileges.EditUsers, Category: privileges.CategoryUserManagement},
		{Code: privileges.SystemSettings, Category: privileges.CategorySystem},
	} {
		p, _, err := f.privs.Register(context.Background(), in)
		require.NoError(t, err)
		f.ids[p.Code] = p.ID
	}
	return f
}

func (f *fixture) role(t *testing.T, code string, privs ...string) roles.Role {
	t.Helper()
	ids := make([]int64, 0, len(privs))
	for _, c := range privs {
		ids = append(ids, f.ids[c])
	}
	role, err := f.roles.Create(context.Background(), roles.CreateInput{Code: code, Name: privileges.DisplayName(code), PrivilegeIDs: ids})
	require.NoError(t, err)
	return role
}

func (f *fixture) user(t *testing.T, email string, roleID int64, storeID string) users.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), users.CreateInput{
		Email:    email,
		Name:     email,
		Password: "correct-horse",
		RoleID:   roleID,
		StoreID:  storeID,
	})
	require.NoError(t, err)
	return u
}

type stubUsers map[int64]users.User

func (s stubUsers) FindByID(_ context.Context, id int64) (users.User, error) {
	u, ok := s[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

type stubRoles map[int64]roles.Role

func (s stubRoles) FindByID(_ context.Context, id int64) (roles.Role, error) {
	r, ok := s[id]
	if !ok {
		return roles.Role{}, roles.ErrNotFound
	}
	return r, nil
}

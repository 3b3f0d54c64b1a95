package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/shared"
)

func claimsFor(userID int64, role, store string) *shared.Claims {
	return &shared.Claims{UserID: userID, RoleClaim: role, StoreID: store}
}

func TestEvaluateSinglePrivilege(t *testing.T) {
	f := newFixture(t)
	role := f.role(t, "PHARMACIST", privileges.ViewInventory)
	u := f.user(t, "pharm@example.com", role.ID, "store-1")
	ctx := context.Background()

	d := f.evaluator.Evaluate(ctx, claimsFor(u.ID, "PHARMACIST", "store-1"), Single(privileges.ManageInventory))
	require.Equal(t, OutcomeDeny, d.Outcome)
	require.Equal(t, privileges.ManageInventory, d.Missing)

	d = f.evaluator.Evaluate(ctx, claimsFor(u.ID, "PHARMACIST", "store-1"), Single(privileges.ViewInventory))
	require.Equal(t, OutcomeGrant, d.Outcome)
	require.NotNil(t, d.Principal)
	require.Equal(t, "PHARMACIST", d.Principal.Role.Code)
}

func TestEvaluateAllOfReportsFirstMissingInDeclaredOrder(t *testing.T) {
	f := newFixture(t)
	role := f.role(t, "STOCK_CLERK", privileges.ViewInventory, privileges.ManageInventory)
	u := f.user(t, "clerk@example.com", role.ID, "store-1")
	claims := claimsFor(u.ID, "STOCK_CLERK", "store-1")

	d := f.evaluator.Evaluate(context.Background(), claims, AllOf(privileges.ViewInventory, privileges.ManageInventory, privileges.AdjustStock))
	require.Equal(t, OutcomeDeny, d.Outcome)
	require.Equal(t, privileges.AdjustStock, d.Missing)

	d = f.evaluator.Evaluate(context.Background(), claims, AllOf(privileges.SystemSettings, privileges.AdjustStock))
	require.Equal(t, privileges.SystemSettings, d.Missing)

	d = f.evaluator.Evaluate(context.Background(), claims, AllOf(privileges.ManageInventory, privileges.ViewInventory))
	require.True(t, d.Granted())
}

func TestEvaluateAnyOfShortCircuitsOnFirstMatch(t *testing.T) {
	f := newFixture(t)
	role := f.role(t, "STOCK_CLERK", privileges.ViewInventory, privileges.ManageInventory)
	u := f.user(t, "clerk@example.com", role.ID, "store-1")
	claims := claimsFor(u.ID, "STOCK_CLERK", "store-1")

	d := f.evaluator.Evaluate(context.Background(), claims, AnyOf(privileges.AdjustStock, privileges.ManageInventory, privileges.ViewReports))
	require.True(t, d.Granted())
	require.Equal(t, privileges.ManageInventory, d.Matched)

	d = f.evaluator.Evaluate(context.Background(), claims, AnyOf(privileges.AdjustStock, privileges.ViewReports))
	require.Equal(t, OutcomeDeny, d.Outcome)
	require.Empty(t, d.Matched)
}

func TestEvaluateCategoryIgnoresDeactivatedPrivileges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role := f.role(t, "ANALYST", privileges.ViewReports)
	u := f.user(t, "analyst@example.com", role.ID, "store-1")
	claims := claimsFor(u.ID, "ANALYST", "store-1")

	require.True(t, f.evaluator.Evaluate(ctx, claims, InCategory(privileges.CategoryReports)).Granted())
	require.False(t, f.evaluator.Evaluate(ctx, claims, InCategory(privileges.CategoryInventory)).Granted())

	_, err := f.privs.Deactivate(ctx, f.ids[privileges.ViewReports])
	require.NoError(t, err)

	require.Equal(t, OutcomeDeny, f.evaluator.Evaluate(ctx, claims, InCategory(privileges.CategoryReports)).Outcome)
	require.True(t, f.evaluator.Evaluate(ctx, claims, Single(privileges.ViewReports)).Granted(), "role still lists the deactivated privilege")
	require.False(t, f.resolver.HasAnyPrivilegeInCategory(ctx, u.ID, privileges.CategoryReports))
}

func TestEvaluateRoleModeUsesClaimOnly(t *testing.T) {
	e := NewEvaluator(failingResolver{err: errors.New("must not be called")})

	d := e.Evaluate(context.Background(), claimsFor(1, "ADMIN", ""), RoleIn("ADMIN", "STORE_MANAGER"))
	require.True(t, d.Granted())
	require.Nil(t, d.Principal)

	d = e.Evaluate(context.Background(), claimsFor(1, "CASHIER", ""), RoleIn("ADMIN"))
	require.Equal(t, OutcomeDeny, d.Outcome)
}

func TestEvaluateWithoutClaimsIsUnauthenticated(t *testing.T) {
	e := NewEvaluator(failingResolver{err: errors.New("must not be called")})
	for _, req := range []Requirement{Single(privileges.ViewInventory), RoleIn("ADMIN"), InCategory(privileges.CategorySales)} {
		require.Equal(t, OutcomeUnauthenticated, e.Evaluate(context.Background(), nil, req).Outcome)
	}
}

func TestEvaluateSurfacesResolutionFailureAsError(t *testing.T) {
	f := newFixture(t)
	role := f.role(t, "PHARMACIST", privileges.ViewInventory)
	u := f.user(t, "pharm@example.com", role.ID, "store-1")

	f.store.FailReads(errors.New("connection refused"))
	d := f.evaluator.Evaluate(context.Background(), claimsFor(u.ID, "PHARMACIST", "store-1"), Single(privileges.ViewInventory))
	require.Equal(t, OutcomeError, d.Outcome)
	require.Error(t, d.Err)
	require.False(t, f.resolver.HasPrivilege(context.Background(), u.ID, privileges.ViewInventory))
}

func TestEvaluateOrphanedRoleFailsClosed(t *testing.T) {
	resolver := NewResolver(
		stubUsers{7: {ID: 7, RoleID: 99, IsActive: true}},
		stubRoles{},
		nil,
	)
	e := NewEvaluator(resolver)

	d := e.Evaluate(context.Background(), claimsFor(7, "GHOST", "store-1"), Single(privileges.ViewInventory))
	require.Equal(t, OutcomeError, d.Outcome)
	require.ErrorIs(t, d.Err, ErrRoleUnresolvable)
	require.False(t, resolver.HasPrivilege(context.Background(), 7, privileges.ViewInventory))
	require.False(t, resolver.HasAnyPrivilegeInCategory(context.Background(), 7, privileges.CategoryInventory))
}

func TestEvaluateTimeoutIsError(t *testing.T) {
	e := NewEvaluator(blockingResolver{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	d := e.Evaluate(ctx, claimsFor(1, "CASHIER", "store-1"), Single(privileges.ViewSales))
	require.Equal(t, OutcomeError, d.Outcome)
	require.ErrorIs(t, d.Err, context.DeadlineExceeded)
}

func TestRevocationTakesEffectOnNextEvaluation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role := f.role(t, "STOCK_CLERK", privileges.ViewInventory, privileges.ManageInventory)
	u := f.user(t, "clerk@example.com", role.ID, "store-1")
	claims := claimsFor(u.ID, "STOCK_CLERK", "store-1")
	req := Single(privileges.ManageInventory)

	require.True(t, f.evaluator.Evaluate(ctx, claims, req).Granted())

	_, err := f.users.SetActive(ctx, u.ID, false)
	require.NoError(t, err)
	require.Equal(t, OutcomeUnauthenticated, f.evaluator.Evaluate(ctx, claims, req).Outcome)
	require.False(t, f.resolver.HasPrivilege(ctx, u.ID, privileges.ManageInventory))

	_, err = f.users.SetActive(ctx, u.ID, true)
	require.NoError(t, err)
	require.True(t, f.evaluator.Evaluate(ctx, claims, req).Granted())

	remaining := []int64{f.ids[privileges.ViewInventory]}
	_, err = f.roles.Update(ctx, role.ID, roles.Patch{PrivilegeIDs: &remaining})
	require.NoError(t, err)
	d := f.evaluator.Evaluate(ctx, claims, req)
	require.Equal(t, OutcomeDeny, d.Outcome)
	require.Equal(t, privileges.ManageInventory, d.Missing)
}

func TestInactiveRoleGrantsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role := f.role(t, "STOCK_CLERK", privileges.ViewInventory)
	u := f.user(t, "clerk@example.com", role.ID, "store-1")

	_, err := f.roles.SetActive(ctx, role.ID, false)
	require.NoError(t, err)

	d := f.evaluator.Evaluate(ctx, claimsFor(u.ID, "STOCK_CLERK", "store-1"), Single(privileges.ViewInventory))
	require.Equal(t, OutcomeDeny, d.Outcome)
}

func TestHasPrivilegeUnknownUser(t *testing.T) {
	f := newFixture(t)
	require.False(t, f.resolver.HasPrivilege(context.Background(), 4242, privileges.ViewInventory))
	_, err := f.resolver.Resolve(context.Background(), 4242)
	require.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestRequirementValidate(t *testing.T) {
	require.NoError(t, Single(privileges.ViewInventory).Validate())
	require.Error(t, AllOf().Validate())
	require.Error(t, AnyOf("lowercase").Validate())
	require.Error(t, InCategory("billing").Validate())
	require.Error(t, RoleIn().Validate())
	require.Error(t, Requirement{Mode: Mode(42)}.Validate())
}

type failingResolver struct{ err error }

func (r failingResolver) Resolve(context.Context, int64) (Principal, error) {
	return Principal{}, r.err
}

type blockingResolver struct{}

func (blockingResolver) Resolve(ctx context.Context, _ int64) (Principal, error) {
	<-ctx.Done()
	return Principal{}, ctx.Err()
}

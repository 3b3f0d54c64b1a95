package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/users"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	p, _, err := store.Privileges().InsertIfAbsent(ctx, privileges.Input{Code: "VIEW_SALES", Name: "View Sales", Category: privileges.CategorySales})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.Roles().WithTx(ctx, func(ctx context.Context, tx roles.TxRepository) error {
		role, err := tx.InsertRole(ctx, roles.CreateInput{Code: "TEMP", Name: "Temp"})
		require.NoError(t, err)
		require.NoError(t, tx.ReplacePrivileges(ctx, role.ID, []int64{p.ID}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Roles().FindByCode(ctx, "TEMP")
	require.ErrorIs(t, err, roles.ErrNotFound)
}

func TestFailReads(t *testing.T) {
	ctx := context.Background()
	store := New()
	outage := errors.New("connection reset")
	store.FailReads(outage)

	_, err := store.Users().FindByID(ctx, 1)
	require.ErrorIs(t, err, outage)

	store.FailReads(nil)
	_, err = store.Users().FindByID(ctx, 1)
	require.ErrorIs(t, err, users.ErrNotFound)
}

//go:build integration

package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medistore/medistore/internal/audit"
	"github.com/medistore/medistore/internal/auth"
	"github.com/medistore/medistore/internal/platform/db"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/rbac"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/seed"
	"github.com/medistore/medistore/internal/shared"
	"github.com/medistore/medistore/internal/users"
	"github.com/medistore/medistore/jobs"
)

type stack struct {
	pool       *pgxpool.Pool
	privileges *privileges.Service
	roles      *roles.Service
	users      *users.Service
	resolver   *rbac.Resolver
	seeder     *seed.Seeder
}

func setupPostgres(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("docker not available, skipping integration tests")
	}
	_ = provider.Close()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("medistore_test"),
		postgres.WithUsername("medistore"),
		postgres.WithPassword("medistore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := db.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applied, err := db.Migrate(ctx, pool)
	require.NoError(t, err)
	require.Equal(t, len(db.Migrations()), applied)

	privRepo := privileges.NewRepository(pool)
	roleRepo := roles.NewRepository(pool)
	userRepo := users.NewRepository(pool)
	s := &stack{
		pool:       pool,
		privileges: privileges.NewService(privRepo, nil),
		roles:      roles.NewService(roleRepo, nil),
		users:      users.NewService(userRepo, nil),
		resolver:   rbac.NewResolver(userRepo, roleRepo, nil),
	}
	s.seeder = seed.NewSeeder(s.privileges, s.roles, nil)
	_, err = s.seeder.Run(ctx)
	require.NoError(t, err)
	return s
}

func TestPostgresRBAC(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	t.Run("migrations and seeding are idempotent", func(t *testing.T) {
		applied, err := db.Migrate(ctx, s.pool)
		require.NoError(t, err)
		require.Zero(t, applied)

		before, err := s.roles.List(ctx)
		require.NoError(t, err)
		report, err := s.seeder.Run(ctx)
		require.NoError(t, err)
		require.Zero(t, report.PrivilegesCreated)
		require.Equal(t, len(privileges.DefaultCatalog()), report.PrivilegesTotal)
		after, err := s.roles.List(ctx)
		require.NoError(t, err)
		require.Len(t, after, len(before))
		for i := range before {
			require.Equal(t, before[i].Code, after[i].Code)
			require.ElementsMatch(t, before[i].PrivilegeIDs, after[i].PrivilegeIDs)
		}
	})

	t.Run("resolver reads the live role graph", func(t *testing.T) {
		cashier, err := s.roles.FindByCode(ctx, seed.RoleCashier)
		require.NoError(t, err)
		user, err := s.users.Create(ctx, users.CreateInput{
			Email: "Till@Example.com", Name: "Till", Password: "correct-horse", RoleID: cashier.ID, StoreID: "store-1",
		})
		require.NoError(t, err)
		require.Equal(t, "till@example.com", user.Email)

		principal, err := s.resolver.Resolve(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, principal.Has(privileges.CreateSales))
		require.False(t, principal.Has(privileges.SystemSettings))

		creds, err := auth.NewRepository(s.pool).FindByEmail(ctx, "TILL@example.com")
		require.NoError(t, err)
		require.Equal(t, seed.RoleCashier, creds.RoleCode)
		require.Equal(t, "store-1", creds.StoreID)

		_, err = s.users.Create(ctx, users.CreateInput{
			Email: "till@example.com", Name: "Dup", Password: "correct-horse", RoleID: cashier.ID,
		})
		require.ErrorIs(t, err, users.ErrDuplicateEmail)
	})

	t.Run("privilege delete is refused while an active role holds it", func(t *testing.T) {
		priv, err := s.privileges.Create(ctx, privileges.Input{
			Code: "MANAGE_LOYALTY", Name: "Manage loyalty", Category: privileges.CategorySales,
		})
		require.NoError(t, err)
		role, err := s.roles.Create(ctx, roles.CreateInput{
			Code: "LOYALTY_CLERK", Name: "Loyalty clerk", PrivilegeIDs: []int64{priv.ID},
		})
		require.NoError(t, err)

		require.ErrorIs(t, s.privileges.Delete(ctx, priv.ID), privileges.ErrInUse)

		_, err = s.roles.SetActive(ctx, role.ID, false)
		require.NoError(t, err)
		require.NoError(t, s.privileges.Delete(ctx, priv.ID))

		role, err = s.roles.Get(ctx, role.ID)
		require.NoError(t, err)
		require.Empty(t, role.PrivilegeIDs)
	})

	t.Run("system and assigned roles cannot be deleted", func(t *testing.T) {
		admin, err := s.roles.FindByCode(ctx, seed.RoleAdmin)
		require.NoError(t, err)
		require.ErrorIs(t, s.roles.Delete(ctx, admin.ID), roles.ErrSystemRole)

		custom, err := s.roles.Create(ctx, roles.CreateInput{Code: "NIGHT_SHIFT", Name: "Night shift"})
		require.NoError(t, err)
		user, err := s.users.Create(ctx, users.CreateInput{
			Email: "night@example.com", Name: "Night", Password: "correct-horse", RoleID: custom.ID,
		})
		require.NoError(t, err)
		require.ErrorIs(t, s.roles.Delete(ctx, custom.ID), roles.ErrInUse)

		cashier, err := s.roles.FindByCode(ctx, seed.RoleCashier)
		require.NoError(t, err)
		_, err = s.users.AssignRole(ctx, user.ID, cashier.ID)
		require.NoError(t, err)
		require.NoError(t, s.roles.Delete(ctx, custom.ID))
	})

	t.Run("denials land in audit_logs", func(t *testing.T) {
		job := jobs.NewDenialAuditJob(shared.NewAuditLogger(s.pool), nil, nil)
		err := job.RecordDenial(ctx, rbac.Denial{
			UserID: 7, Resource: "GET /admin/roles", Mode: "single", Detail: "missing SYSTEM_SETTINGS", At: time.Now().UTC(),
		})
		require.NoError(t, err)

		var count int
		require.NoError(t, s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM audit_logs WHERE action = $1 AND actor_id = 7 AND meta->>'mode' = 'single'`,
			shared.ActionAuthzDenied).Scan(&count))
		require.Equal(t, 1, count)

		timeline, err := audit.NewService(audit.NewRepository(s.pool)).Timeline(ctx, audit.TimelineFilters{
			ActorID: 7, Action: shared.ActionAuthzDenied,
		})
		require.NoError(t, err)
		require.Len(t, timeline.Rows, 1)
		require.Equal(t, "GET /admin/roles", timeline.Rows[0].EntityID)
		require.Equal(t, "single", timeline.Rows[0].Meta["mode"])
	})

	t.Run("integrity scan is clean after seeding", func(t *testing.T) {
		scan := jobs.NewIntegrityScanJob(
			privileges.NewRepository(s.pool),
			roles.NewRepository(s.pool),
			users.NewRepository(s.pool),
			nil, nil,
		)
		report, err := scan.Scan(ctx)
		require.NoError(t, err)
		require.Zero(t, report.Count(jobs.FindingUserMissingRole))
		require.Zero(t, report.Count(jobs.FindingRoleUnknownPrivilege))
	})
}

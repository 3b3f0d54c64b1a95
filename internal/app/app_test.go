package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medistore/medistore/internal/observability"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/rbac"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/seed"
	"github.com/medistore/medistore/internal/shared"
	"github.com/medistore/medistore/internal/store/memory"
	"github.com/medistore/medistore/internal/users"
	"github.com/medistore/medistore/jobs"
	_ "github.com/medistore/medistore/testing"
)

type tokenTable map[string]shared.Claims

func (t tokenTable) Verify(_ context.Context, token string) (shared.Claims, error) {
	claims, ok := t[token]
	if !ok {
		return shared.Claims{}, shared.ErrTokenInvalid
	}
	return claims, nil
}

type testServer struct {
	handler http.Handler
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	privSvc := privileges.NewService(store.Privileges(), nil)
	roleSvc := roles.NewService(store.Roles(), nil)
	userSvc := users.NewService(store.Users(), nil)
	_, err := seed.NewSeeder(privSvc, roleSvc, nil).Run(ctx)
	require.NoError(t, err)

	admin, err := roleSvc.FindByCode(ctx, seed.RoleAdmin)
	require.NoError(t, err)
	cashier, err := roleSvc.FindByCode(ctx, seed.RoleCashier)
	require.NoError(t, err)
	adminUser, err := userSvc.Create(ctx, users.CreateInput{Email: "admin@example.com", Name: "Admin", Password: "correct-horse", RoleID: admin.ID})
	require.NoError(t, err)
	cashierUser, err := userSvc.Create(ctx, users.CreateInput{Email: "till@example.com", Name: "Till", Password: "correct-horse", RoleID: cashier.ID, StoreID: "store-1"})
	require.NoError(t, err)

	tokens := tokenTable{
		"admin-token":   {UserID: adminUser.ID, RoleClaim: seed.RoleAdmin},
		"cashier-token": {UserID: cashierUser.ID, RoleClaim: seed.RoleCashier, StoreID: "store-1"},
	}

	cfg := &Config{AppEnv: "test", RateLimitPerMinute: 1000}
	metrics := observability.NewMetrics()
	resolver := rbac.NewResolver(store.Users(), store.Roles(), nil)
	enforcer := rbac.NewEnforcer(rbac.EnforcerConfig{Evaluator: rbac.NewEvaluator(resolver), Metrics: metrics})

	handler := NewRouter(RouterParams{
		Config:            cfg,
		Verifier:          tokens,
		Enforcer:          enforcer,
		MeHandler:         rbac.NewHandler(nil, resolver, enforcer),
		PrivilegesHandler: privileges.NewHandler(nil, privSvc, enforcer),
		RolesHandler:      roles.NewHandler(nil, roleSvc, enforcer),
		UsersHandler:      users.NewHandler(nil, userSvc, enforcer),
		JobHandler:        jobs.NewHandler(nil, nil),
		Metrics:           metrics,
	})
	return &testServer{handler: handler, metrics: metrics}
}

func (s *testServer) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthzCarriesSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.get("/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAdminSurfaceIsSelfHosted(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get("/admin/privileges/", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"message":"Authentication required"`)

	rec = srv.get("/admin/privileges/", "forged-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.get("/admin/privileges/", "cashier-token")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), `"requiredPrivilege":"SYSTEM_SETTINGS"`)

	rec = srv.get("/admin/privileges/", "admin-token")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), privileges.ManageDrugs)

	rec = srv.get("/admin/roles/codes/CASHIER", "admin-token")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.get("/jobs/health", "cashier-token")
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = srv.get("/jobs/health", "admin-token")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMeEndpointAndDecisionMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get("/me/privileges", "cashier-token")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), privileges.CreateSales)
	require.NotContains(t, rec.Body.String(), privileges.SystemSettings)

	srv.get("/admin/privileges/", "cashier-token")

	metrics := srv.get("/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), `medistore_authz_decisions_total{mode="single",outcome="deny"} 1`)
	require.Contains(t, metrics.Body.String(), `medistore_http_requests_total{code="200",route="/me/privileges"} 1`)
}

func TestLoadConfigRequiresTokenSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("TOKEN_SECRET", "s3cret")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 30, cfg.RateLimitPerMinute)
	require.Equal(t, "ADMIN", cfg.AdminRoleCode)
	require.True(t, cfg.AuditAsync)
	require.False(t, cfg.IsProduction())
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json"}, &buf).Info("hello")
	require.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	newLogger(&Config{LogFormat: "pretty"}, &buf).Info("hello")
	require.Contains(t, buf.String(), "msg=hello")
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}

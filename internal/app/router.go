package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medistore/medistore/internal/audit"
	"github.com/medistore/medistore/internal/auth"
	"github.com/medistore/medistore/internal/observability"
	"github.com/medistore/medistore/internal/platform/httpx"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/rbac"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/users"
	"github.com/medistore/medistore/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Verifier          auth.Verifier
	Enforcer          *rbac.Enforcer
	AuthHandler       *auth.Handler
	MeHandler         *rbac.Handler
	PrivilegesHandler *privileges.Handler
	RolesHandler      *roles.Handler
	UsersHandler      *users.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with MediStore defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(params.Verifier, params.Logger))

		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.MeHandler != nil {
			r.Route("/me", params.MeHandler.MountRoutes)
		}
		r.Route("/admin", func(r chi.Router) {
			if params.PrivilegesHandler != nil {
				r.Route("/privileges", params.PrivilegesHandler.MountRoutes)
			}
			if params.RolesHandler != nil {
				r.Route("/roles", params.RolesHandler.MountRoutes)
			}
			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				r.Route("/audit", params.AuditHandler.MountRoutes)
			}
		})
		if params.JobHandler != nil && params.Enforcer != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.Enforcer.RequireSystemSettings())
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}

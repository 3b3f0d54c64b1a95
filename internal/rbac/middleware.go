package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/medistore/medistore/internal/platform/httpx"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/shared"
)

const (
	msgUnauthenticated = "Authentication required"
	msgForbidden       = "Insufficient privileges"
	msgForbiddenRole   = "Insufficient role"
	msgStoreScope      = "Store access required"
	msgServerError     = "Server error verifying privileges"

	modeStoreScope = "store_scope"
)

// DefaultAdminRole is the role code that bypasses store scoping.
const DefaultAdminRole = "ADMIN"

// Denial is an audit record for a refused request.
type Denial struct {
	UserID   int64     `json:"userId"`
	Resource string    `json:"resource"`
	Mode     string    `json:"mode"`
	Detail   string    `json:"detail"`
	At       time.Time `json:"at"`
}

// DenialSink receives denial audit records.
type DenialSink interface {
	RecordDenial(ctx context.Context, d Denial) error
}

// DecisionRecorder counts decisions by mode and outcome.
type DecisionRecorder interface {
	ObserveDecision(mode, outcome string)
}

// EnforcerConfig collects Enforcer dependencies. Metrics and Audit are optional.
type EnforcerConfig struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
	Metrics   DecisionRecorder
	Audit     DenialSink
	AdminRole string
}

// Enforcer builds HTTP middleware that gates handlers on access decisions.
type Enforcer struct {
	evaluator *Evaluator
	logger    *slog.Logger
	metrics   DecisionRecorder
	audit     DenialSink
	adminRole string
	now       func() time.Time
}

// NewEnforcer constructs an Enforcer.
func NewEnforcer(cfg EnforcerConfig) *Enforcer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	adminRole := cfg.AdminRole
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	return &Enforcer{
		evaluator: cfg.Evaluator,
		logger:    logger,
		metrics:   cfg.Metrics,
		audit:     cfg.Audit,
		adminRole: adminRole,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type denialBody struct {
	Success            bool     `json:"success"`
	Message            string   `json:"message"`
	RequiredPrivilege  string   `json:"requiredPrivilege,omitempty"`
	MissingPrivilege   string   `json:"missingPrivilege,omitempty"`
	RequiredPrivileges []string `json:"requiredPrivileges,omitempty"`
	RequiredCategory   string   `json:"requiredCategory,omitempty"`
	RequiredRoles      []string `json:"requiredRoles,omitempty"`
}

// RequirePrivilege grants requests whose principal holds code.
func (m *Enforcer) RequirePrivilege(code string) func(http.Handler) http.Handler {
	return m.Require(Single(code))
}

// RequireAllOf grants requests whose principal holds every code.
func (m *Enforcer) RequireAllOf(codes ...string) func(http.Handler) http.Handler {
	return m.Require(AllOf(codes...))
}

// RequireAnyOf grants requests whose principal holds at least one code.
func (m *Enforcer) RequireAnyOf(codes ...string) func(http.Handler) http.Handler {
	return m.Require(AnyOf(codes...))
}

// RequireCategory grants requests whose role lists an active privilege of category.
func (m *Enforcer) RequireCategory(category privileges.Category) func(http.Handler) http.Handler {
	return m.Require(InCategory(category))
}

// RequireRole grants requests whose role claim is one of codes.
func (m *Enforcer) RequireRole(codes ...string) func(http.Handler) http.Handler {
	return m.Require(RoleIn(codes...))
}

// Require wraps handlers with req. It panics on an invalid requirement so
// misdeclared routes fail at startup.
func (m *Enforcer) Require(req Requirement) func(http.Handler) http.Handler {
	if err := req.Validate(); err != nil {
		panic(err)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := shared.ClaimsFromContext(r.Context())
			d := m.evaluator.Evaluate(r.Context(), claims, req)
			m.observe(req.Mode.String(), d.Outcome)

			switch d.Outcome {
			case OutcomeGrant:
				ctx := r.Context()
				if d.Principal != nil {
					ctx = ContextWithPrincipal(ctx, *d.Principal)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			case OutcomeUnauthenticated:
				if claims != nil {
					m.logger.Info("principal no longer valid", slog.Int64("principal_id", claims.UserID), slog.String("resource", resource(r)))
				}
				httpx.JSON(w, http.StatusUnauthorized, denialBody{Message: msgUnauthenticated})
			case OutcomeDeny:
				body := denialFor(req, d)
				m.deny(r, claims.UserID, req.Mode.String(), denialDetail(req, d))
				httpx.JSON(w, http.StatusForbidden, body)
			default:
				userID := int64(0)
				if claims != nil {
					userID = claims.UserID
				}
				m.logger.Error("authorization decision failed",
					slog.Int64("principal_id", userID),
					slog.String("resource", resource(r)),
					slog.String("mode", req.Mode.String()),
					slog.Any("error", d.Err),
				)
				httpx.JSON(w, http.StatusInternalServerError, denialBody{Message: msgServerError})
			}
		})
	}
}

// RequireStoreScope denies principals without a store reference unless their
// role claim is the administrative role. It does not consult privileges.
func (m *Enforcer) RequireStoreScope() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := shared.ClaimsFromContext(r.Context())
			switch {
			case claims == nil:
				m.observe(modeStoreScope, OutcomeUnauthenticated)
				httpx.JSON(w, http.StatusUnauthorized, denialBody{Message: msgUnauthenticated})
			case claims.RoleClaim == m.adminRole || claims.StoreID != "":
				m.observe(modeStoreScope, OutcomeGrant)
				next.ServeHTTP(w, r)
			default:
				m.observe(modeStoreScope, OutcomeDeny)
				m.deny(r, claims.UserID, modeStoreScope, "missing store reference")
				httpx.JSON(w, http.StatusForbidden, denialBody{Message: msgStoreScope})
			}
		})
	}
}

func (m *Enforcer) deny(r *http.Request, userID int64, mode, detail string) {
	res := resource(r)
	m.logger.Warn("access denied",
		slog.Int64("principal_id", userID),
		slog.String("resource", res),
		slog.String("mode", mode),
		slog.String("detail", detail),
	)
	if m.audit == nil {
		return
	}
	err := m.audit.RecordDenial(r.Context(), Denial{UserID: userID, Resource: res, Mode: mode, Detail: detail, At: m.now()})
	if err != nil {
		m.logger.Warn("record denial", slog.String("resource", res), slog.Any("error", err))
	}
}

func (m *Enforcer) observe(mode string, outcome Outcome) {
	if m.metrics != nil {
		m.metrics.ObserveDecision(mode, outcome.String())
	}
}

func denialFor(req Requirement, d Decision) denialBody {
	body := denialBody{Message: msgForbidden}
	switch req.Mode {
	case ModeSingle:
		body.RequiredPrivilege = req.Privileges[0]
	case ModeAllOf:
		body.RequiredPrivileges = req.Privileges
		body.MissingPrivilege = d.Missing
	case ModeAnyOf:
		body.RequiredPrivileges = req.Privileges
	case ModeCategory:
		body.RequiredCategory = string(req.Category)
	case ModeRole:
		body.Message = msgForbiddenRole
		body.RequiredRoles = req.Roles
	}
	return body
}

func denialDetail(req Requirement, d Decision) string {
	switch req.Mode {
	case ModeSingle, ModeAllOf:
		return "missing " + d.Missing
	case ModeAnyOf:
		return fmt.Sprintf("none of %v", req.Privileges)
	case ModeCategory:
		return "no active privilege in " + string(req.Category)
	default:
		return fmt.Sprintf("role not in %v", req.Roles)
	}
}

func resource(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

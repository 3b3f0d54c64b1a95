package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medistore/medistore/internal/platform/httpx"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/shared"
)

// Handler serves the caller's own effective privileges.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	enforcer *Enforcer
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, resolver *Resolver, enforcer *Enforcer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, resolver: resolver, enforcer: enforcer}
}

// MountRoutes registers the introspection routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/privileges", h.myPrivileges)
	r.With(h.enforcer.RequireReportsSection()).Get("/sections/reports", h.sectionAccess(privileges.CategoryReports))
	r.With(h.enforcer.RequireViewInventory()).Get("/sections/inventory", h.sectionAccess(privileges.CategoryInventory))
	r.With(h.enforcer.RequireManagePrescriptions()).Get("/sections/dispensary", h.sectionAccess(privileges.CategoryPrescriptions))
	r.With(h.enforcer.RequireAdmin()).Get("/sections/system", h.sectionAccess(privileges.CategorySystem))
}

type privilegesResponse struct {
	UserID     int64    `json:"userId"`
	Role       string   `json:"role"`
	StoreID    string   `json:"storeId,omitempty"`
	Privileges []string `json:"privileges"`
}

func (h *Handler) myPrivileges(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": privilegesResponse{
		UserID:     p.UserID,
		Role:       p.Role.Code,
		StoreID:    p.StoreID,
		Privileges: append([]string{}, p.PrivilegeCodes()...),
	}})
}

func (h *Handler) sectionAccess(category privileges.Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := h.principal(w, r)
		if !ok {
			return
		}
		codes := []string{}
		for _, priv := range p.Role.Privileges {
			if priv.IsActive && priv.Category == category {
				codes = append(codes, priv.Code)
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"section":    category,
			"privileges": codes,
		}})
	}
}

// principal reuses the Principal a privilege guard already resolved. Role-mode
// guards never resolve one, so it is looked up here.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (*Principal, bool) {
	if p := PrincipalFromContext(r.Context()); p != nil {
		return p, true
	}
	claims := shared.ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.JSON(w, http.StatusUnauthorized, denialBody{Message: msgUnauthenticated})
		return nil, false
	}
	resolved, err := h.resolver.Resolve(r.Context(), claims.UserID)
	if err != nil {
		if httpx.StatusOf(err) == http.StatusNotFound {
			httpx.JSON(w, http.StatusUnauthorized, denialBody{Message: msgUnauthenticated})
			return nil, false
		}
		h.logger.Error("resolve principal", slog.Int64("principal_id", claims.UserID), slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, denialBody{Message: msgServerError})
		return nil, false
	}
	return &resolved, true
}

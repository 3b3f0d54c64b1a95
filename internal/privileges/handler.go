package privileges

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medistore/medistore/internal/platform/httpx"
)

// Guard gates routes behind a privilege.
type Guard interface {
	RequirePrivilege(code string) func(http.Handler) http.Handler
}

// Handler exposes the administrative privilege endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     Guard
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers privilege routes. Every route requires SYSTEM_SETTINGS.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.guard.RequirePrivilege(SystemSettings))
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/categories/{category}", h.listByCategory)
	r.Get("/codes/{code}", h.getByCode)
	r.Get("/{id}", h.get)
	r.Post("/{id}/activate", h.activate)
	r.Post("/{id}/deactivate", h.deactivate)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list privileges", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": nonNil(items)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create privilege", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": p})
}

func (h *Handler) listByCategory(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.FindActiveByCategory(r.Context(), Category(chi.URLParam(r, "category")))
	if err != nil {
		h.fail(w, "list privileges by category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": nonNil(items)})
}

func (h *Handler) getByCode(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "get privilege by code", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": p})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get privilege", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": p})
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.Activate)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.Deactivate)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id int64) (Privilege, error)) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	p, err := apply(r.Context(), id)
	if err != nil {
		h.fail(w, "toggle privilege", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": p})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete privilege", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid privilege id", httpx.ErrValidation))
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func nonNil(items []Privilege) []Privilege {
	if items == nil {
		return []Privilege{}
	}
	return items
}

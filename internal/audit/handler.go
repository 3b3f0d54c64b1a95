package audit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/medistore/medistore/internal/platform/httpx"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/shared"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
	exportRateLimit  = 10
	dateLayout       = "2006-01-02"
)

// Guard gates routes behind a privilege.
type Guard interface {
	RequirePrivilege(code string) func(http.Handler) http.Handler
}

// TimelineService is the read contract the handler needs.
type TimelineService interface {
	Timeline(ctx context.Context, filters TimelineFilters) (Result, error)
	Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	guard   Guard
	now     func() time.Time
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service TimelineService, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, now: time.Now}
}

// MountRoutes registers audit routes. Every route requires VIEW_AUDIT_LOGS.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.guard.RequirePrivilege(privileges.ViewAuditLogs))
	r.Get("/", h.timeline(""))
	r.Get("/denials", h.timeline(shared.ActionAuthzDenied))
	r.With(httprate.Limit(exportRateLimit, time.Minute, httprate.WithKeyFuncs(rateLimitKey))).
		Get("/export.csv", h.export)
}

func (h *Handler) timeline(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := h.parseFilters(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if action != "" {
			filters.Action = action
		}
		result, err := h.service.Timeline(r.Context(), filters)
		if err != nil {
			h.fail(w, "load audit timeline", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": result})
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.fail(w, "export audit timeline", err)
		return
	}
	body, err := WriteCSV(rows)
	if err != nil {
		h.fail(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters reads from/to as dates. To is inclusive on the wire and
// becomes the exclusive start of the following day.
func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	query := r.URL.Query()
	now := h.now().UTC()

	toDay := now.Truncate(24 * time.Hour)
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return TimelineFilters{}, invalid("to")
		}
		toDay = parsed
	}
	fromDay := toDay.Add(-defaultDateRange)
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return TimelineFilters{}, invalid("from")
		}
		fromDay = parsed
	}
	if fromDay.After(toDay) || toDay.Sub(fromDay) > maxDateRange {
		return TimelineFilters{}, invalid("range")
	}

	filters := TimelineFilters{
		From:   fromDay,
		To:     toDay.Add(24 * time.Hour),
		Entity: strings.TrimSpace(query.Get("entity")),
		Action: strings.TrimSpace(query.Get("action")),
	}
	if v := strings.TrimSpace(query.Get("actor")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return TimelineFilters{}, invalid("actor")
		}
		filters.ActorID = id
	}
	if v := strings.TrimSpace(query.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page <= 0 || page > MaxPage {
			return TimelineFilters{}, invalid("page")
		}
		filters.Page = page
	}
	if v := strings.TrimSpace(query.Get("page_size")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return TimelineFilters{}, invalid("page_size")
		}
		filters.PageSize = size
	}
	return filters, nil
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func invalid(field string) error {
	return fmt.Errorf("%w: invalid %s", httpx.ErrValidation, field)
}

// rateLimitKey keys exports by caller, falling back to the client IP.
func rateLimitKey(r *http.Request) (string, error) {
	if claims := shared.ClaimsFromContext(r.Context()); claims != nil && claims.UserID > 0 {
		return "user:" + strconv.FormatInt(claims.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

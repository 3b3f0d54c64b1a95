package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/medistore/medistore/internal/platform/httpx"
)

type stubTimelineRepo struct {
	rows      []TimelineRow
	err       error
	lastQuery Query
	calls     int
}

func (s *stubTimelineRepo) Timeline(_ context.Context, q Query) ([]TimelineRow, error) {
	s.lastQuery = q
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if q.Limit > 0 && len(s.rows) > q.Limit {
		return s.rows[:q.Limit], nil
	}
	return s.rows, nil
}

func denialRow(ts string, actor int64, resource string) TimelineRow {
	at, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{
		At:       at,
		ActorID:  actor,
		Action:   "authz.denied",
		Entity:   "route",
		EntityID: resource,
		Meta:     map[string]any{"mode": "single", "detail": "missing SYSTEM_SETTINGS"},
	}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		denialRow("2026-03-10T10:00:00Z", 7, "GET /admin/roles"),
		denialRow("2026-03-09T09:00:00Z", 7, "POST /admin/users"),
		denialRow("2026-03-08T08:00:00Z", 8, "GET /admin/privileges"),
	}}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2, Action: " authz.denied "})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("expected a next page, got %+v", result.Paging)
	}
	if repo.lastQuery.Limit != 3 || repo.lastQuery.Offset != 0 {
		t.Fatalf("expected limit 3 offset 0, got %+v", repo.lastQuery)
	}
	if repo.lastQuery.Action != "authz.denied" {
		t.Fatalf("expected trimmed action, got %q", repo.lastQuery.Action)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 500})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if result.Paging.PageSize != maxPageSize || result.Paging.PrevPage != 2 || result.Paging.HasNext {
		t.Fatalf("unexpected paging %+v", result.Paging)
	}
	if repo.lastQuery.Offset != 2*maxPageSize {
		t.Fatalf("expected offset %d, got %d", 2*maxPageSize, repo.lastQuery.Offset)
	}
	if result.Rows == nil {
		t.Fatalf("expected empty rows slice, got nil")
	}
}

func TestServiceTimelineRejectsOutOfRangePage(t *testing.T) {
	repo := &stubTimelineRepo{}
	_, err := NewService(repo).Timeline(context.Background(), TimelineFilters{Page: MaxPage + 1})
	if !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("repository should not be queried")
	}
	if _, err := NewService(repo).Timeline(context.Background(), TimelineFilters{Page: MaxPage}); err != nil {
		t.Fatalf("last page: %v", err)
	}
	if repo.lastQuery.Offset < 0 {
		t.Fatalf("negative offset %d", repo.lastQuery.Offset)
	}
}

func TestServiceExportIsCapped(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{denialRow("2026-03-10T10:00:00Z", 7, "GET /admin/roles")}}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{ActorID: 7})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(rows) != 1 || repo.lastQuery.Limit != ExportLimit || repo.lastQuery.ActorID != 7 {
		t.Fatalf("unexpected export call %+v", repo.lastQuery)
	}
}

func TestServiceWithoutRepository(t *testing.T) {
	if _, err := NewService(nil).Timeline(context.Background(), TimelineFilters{}); err == nil {
		t.Fatalf("expected error without repository")
	}
	repo := &stubTimelineRepo{err: errors.New("db down")}
	if _, err := NewService(repo).Export(context.Background(), TimelineFilters{}); err == nil {
		t.Fatalf("expected repository error")
	}
}

func TestWriteCSV(t *testing.T) {
	out, err := WriteCSV([]TimelineRow{denialRow("2026-03-10T10:00:00Z", 7, "GET /admin/roles")})
	if err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if lines[0] != "occurred_at,actor_id,action,entity,entity_id,meta" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2026-03-10T10:00:00Z,7,authz.denied,route,GET /admin/roles,") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

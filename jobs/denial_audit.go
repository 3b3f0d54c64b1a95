package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/medistore/medistore/internal/jobs"
	"github.com/medistore/medistore/internal/rbac"
	"github.com/medistore/medistore/internal/shared"
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// DenialAuditJob writes denial records into the audit trail. It handles the
// queued task and can also be used directly as a synchronous rbac.DenialSink.
type DenialAuditJob struct {
	Audit   AuditRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDenialAuditJob initialises the denial audit handler.
func NewDenialAuditJob(audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *DenialAuditJob {
	return &DenialAuditJob{Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle processes TaskAuthzDenialAudit tasks.
func (j *DenialAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("denial audit: handler not configured")
	}
	var payload DenialAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("denial audit: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.metrics().Track(TaskAuthzDenialAudit)
	return tracker.End(j.persist(ctx, payload))
}

// RecordDenial implements rbac.DenialSink by writing synchronously.
func (j *DenialAuditJob) RecordDenial(ctx context.Context, d rbac.Denial) error {
	return j.persist(ctx, payloadFromDenial(d))
}

func (j *DenialAuditJob) persist(ctx context.Context, payload DenialAuditPayload) error {
	err := j.Audit.Record(ctx, shared.AuditLog{
		ActorID:  payload.UserID,
		Action:   shared.ActionAuthzDenied,
		Entity:   "route",
		EntityID: payload.Resource,
		Meta: map[string]any{
			"mode":   payload.Mode,
			"detail": payload.Detail,
		},
		At: payload.At,
	})
	if err != nil {
		j.logger().Error("persist denial", slog.String("resource", payload.Resource), slog.Any("error", err))
	}
	return err
}

func (j *DenialAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuthzDenialAudit))
	}
	return slog.Default().With(slog.String("job", TaskAuthzDenialAudit))
}

func (j *DenialAuditJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func payloadFromDenial(d rbac.Denial) DenialAuditPayload {
	return DenialAuditPayload{
		UserID:   d.UserID,
		Resource: d.Resource,
		Mode:     d.Mode,
		Detail:   d.Detail,
		At:       d.At,
	}
}

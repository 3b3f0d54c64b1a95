package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/medistore/medistore/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries denial audit records.
	QueueAudit = "audit"

	// TaskAuthzDenialAudit persists one authorization denial.
	TaskAuthzDenialAudit = "authz:denial_audit"
	// TaskRBACIntegrity scans the role and privilege registries.
	TaskRBACIntegrity = "rbac:integrity"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DenialAuditPayload describes a refused request.
type DenialAuditPayload struct {
	UserID   int64     `json:"user_id"`
	Resource string    `json:"resource"`
	Mode     string    `json:"mode"`
	Detail   string    `json:"detail"`
	At       time.Time `json:"at"`
}

// NewDenialAuditTask constructs an Asynq task.
func NewDenialAuditTask(payload DenialAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzDenialAudit, data, asynq.Queue(QueueAudit), asynq.MaxRetry(5)), nil
}

// NewIntegrityScanTask constructs the periodic registry scan task.
func NewIntegrityScanTask() *asynq.Task {
	return asynq.NewTask(TaskRBACIntegrity, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

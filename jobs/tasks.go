// Package jobs holds the asynchronous task definitions and the worker that
// processes them.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditRecord persists one audit event off the request path.
	TaskTypeAuditRecord = "audit:record"
	// TaskTypeCacheInvalidate drops all cached effective permission sets.
	TaskTypeCacheInvalidate = "authz:invalidate"
	// TaskTypeGrantIntegrity is the periodic sweep over materialized grants.
	TaskTypeGrantIntegrity = "authz:grant_integrity"
)

// AuditRecordPayload carries one audit event to the worker.
type AuditRecordPayload struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"at"`
}

// NewAuditRecordTask constructs an Asynq task.
func NewAuditRecordTask(payload AuditRecordPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditRecord, data), nil
}

// NewCacheInvalidateTask constructs an invalidation task. No payload: the
// cache invalidates wholesale by version bump.
func NewCacheInvalidateTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCacheInvalidate, nil)
}

// NewGrantIntegrityTask constructs the periodic integrity sweep task.
func NewGrantIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskTypeGrantIntegrity, nil)
}

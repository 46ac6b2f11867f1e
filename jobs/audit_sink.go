package jobs

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atrium-platform/atrium-admin/internal/shared"
)

// AsyncAuditSink forwards audit events to the worker queue. The event id is
// assigned before enqueueing so retries stay idempotent on the insert.
type AsyncAuditSink struct {
	client *Client
	logger *slog.Logger
}

// NewAsyncAuditSink builds an AsyncAuditSink.
func NewAsyncAuditSink(client *Client, logger *slog.Logger) *AsyncAuditSink {
	return &AsyncAuditSink{client: client, logger: logger}
}

// Record implements shared.AuditSink. Enqueue failures are logged, never
// returned; audit delivery must not fail the operation being audited.
func (s *AsyncAuditSink) Record(ctx context.Context, event shared.AuditEvent) {
	if s == nil || s.client == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	_, err := s.client.EnqueueAuditRecord(ctx, AuditRecordPayload{
		ID:         event.ID,
		ActorID:    event.ActorID,
		Action:     event.Action,
		TargetType: event.TargetType,
		TargetID:   event.TargetID,
		Details:    event.Details,
		At:         event.At,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("enqueue audit event",
			slog.String("action", event.Action),
			slog.Any("error", err))
	}
}

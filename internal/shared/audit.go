package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent is one entry for the audit trail: who did what to which target.
type AuditEvent struct {
	ID         uuid.UUID
	ActorID    int64
	Action     string
	TargetType string
	TargetID   string
	Details    map[string]any
	At         time.Time
}

// AuditSink accepts events fire-and-forget: implementations must never block
// or fail the calling decision. Delivery problems are logged for operators.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent)
}

// AuditLogger writes events into audit_events.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Insert persists the event. Used by the worker and by the direct sink.
func (l *AuditLogger) Insert(ctx context.Context, event AuditEvent) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if event.Action == "" || event.TargetType == "" || event.TargetID == "" {
		return errors.New("audit event requires action/target_type/target_id")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return err
	}
	var at *time.Time
	if !event.At.IsZero() {
		at = &event.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_events (id, actor_id, action, target_type, target_id, details, at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
ON CONFLICT (id) DO NOTHING`,
		event.ID, event.ActorID, event.Action, event.TargetType, event.TargetID, detailsJSON, at)
	return err
}

// DirectAuditSink writes synchronously to the database while keeping the
// fire-and-forget contract: failures are logged, never propagated.
type DirectAuditSink struct {
	logger *slog.Logger
	writer *AuditLogger
}

// NewDirectAuditSink builds a DirectAuditSink.
func NewDirectAuditSink(logger *slog.Logger, writer *AuditLogger) *DirectAuditSink {
	return &DirectAuditSink{logger: logger, writer: writer}
}

// Record implements AuditSink.
func (s *DirectAuditSink) Record(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	if err := s.writer.Insert(ctx, event); err != nil && s.logger != nil {
		s.logger.Error("record audit event",
			slog.String("action", event.Action),
			slog.Any("error", err))
	}
}

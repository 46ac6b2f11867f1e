package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrium-platform/atrium-admin/internal/authz"
	jobmetrics "github.com/atrium-platform/atrium-admin/internal/jobs"
	"github.com/atrium-platform/atrium-admin/internal/shared"
)

// Processor owns the dependencies task handlers need.
type Processor struct {
	pool    *pgxpool.Pool
	audit   *shared.AuditLogger
	cache   *authz.Cache
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(pool *pgxpool.Pool, audit *shared.AuditLogger, cache *authz.Cache, logger *slog.Logger) *Processor {
	return &Processor{
		pool:    pool,
		audit:   audit,
		cache:   cache,
		metrics: jobmetrics.NewMetrics(nil),
		logger:  logger,
	}
}

// HandleAuditRecord persists one audit event.
func (p *Processor) HandleAuditRecord(ctx context.Context, t *asynq.Task) error {
	tracker := p.metrics.Track(TaskTypeAuditRecord)
	var payload AuditRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	return tracker.End(p.audit.Insert(ctx, shared.AuditEvent{
		ID:         payload.ID,
		ActorID:    payload.ActorID,
		Action:     payload.Action,
		TargetType: payload.TargetType,
		TargetID:   payload.TargetID,
		Details:    payload.Details,
		At:         payload.At,
	}))
}

// HandleCacheInvalidate bumps the permission cache version.
func (p *Processor) HandleCacheInvalidate(ctx context.Context, _ *asynq.Task) error {
	tracker := p.metrics.Track(TaskTypeCacheInvalidate)
	if p.cache == nil {
		return tracker.End(nil)
	}
	if err := p.cache.Invalidate(ctx); err != nil {
		return tracker.End(err)
	}
	_ = tracker.End(nil)
	if p.logger != nil {
		p.logger.Info("permission cache invalidated", slog.String("job", TaskTypeCacheInvalidate))
	}
	return nil
}

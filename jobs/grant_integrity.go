package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// HandleGrantIntegrity sweeps the grant tables for rows that should not
// exist: materialized grants of roles that are no longer active, and
// assignments pointing at deleted roles. The sweep only reports; cleanup is
// an operator decision because a hit here means a bug elsewhere.
func (p *Processor) HandleGrantIntegrity(ctx context.Context, _ *asynq.Task) error {
	tracker := p.metrics.Track(TaskTypeGrantIntegrity)
	if p.pool == nil {
		return tracker.End(nil)
	}

	var orphanedGrants int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_permissions rp
JOIN roles r ON r.id = rp.role_id
WHERE r.status <> 'ACTIVE'`).Scan(&orphanedGrants); err != nil {
		return tracker.End(err)
	}

	var danglingAssignments int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles ur
LEFT JOIN roles r ON r.id = ur.role_id
WHERE r.id IS NULL`).Scan(&danglingAssignments); err != nil {
		return tracker.End(err)
	}

	var stalePending int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles
WHERE status = 'PENDING_APPROVAL' AND updated_at < NOW() - INTERVAL '14 days'`).Scan(&stalePending); err != nil {
		return tracker.End(err)
	}

	if p.logger != nil {
		level := slog.LevelInfo
		if orphanedGrants > 0 || danglingAssignments > 0 {
			level = slog.LevelWarn
		}
		p.logger.Log(ctx, level, "grant integrity sweep",
			slog.Int("orphaned_grants", orphanedGrants),
			slog.Int("dangling_assignments", danglingAssignments),
			slog.Int("stale_pending_roles", stalePending),
			slog.String("job", TaskTypeGrantIntegrity))
	}
	return tracker.End(nil)
}

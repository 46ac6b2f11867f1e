package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines the timeline query contract.
type RepositoryPort interface {
	TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
}

// Repository provides PostgreSQL backed timeline queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TimelineWindow returns one window of audit events, newest first. All
// filters are optional; nil / empty means unfiltered.
func (r *Repository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	var from, to *time.Time
	if !filters.From.IsZero() {
		from = &filters.From
	}
	if !filters.To.IsZero() {
		to = &filters.To
	}
	var target, action *string
	if filters.Target != "" {
		target = &filters.Target
	}
	if filters.Action != "" {
		action = &filters.Action
	}

	rows, err := r.pool.Query(ctx, `SELECT id, at, actor_id, action, target_type, target_id, details
FROM audit_events
WHERE ($1::timestamptz IS NULL OR at >= $1)
  AND ($2::timestamptz IS NULL OR at < $2)
  AND ($3::bigint IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR target_type = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY at DESC, id DESC
LIMIT $6 OFFSET $7`, from, to, filters.ActorID, target, action, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var details []byte
		if err := rows.Scan(&row.ID, &row.At, &row.ActorID, &row.Action, &row.TargetType, &row.TargetID, &details); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &row.Details)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

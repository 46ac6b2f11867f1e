package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/platform/db"
	"github.com/atrium-platform/atrium-admin/internal/risk"
	"github.com/atrium-platform/atrium-admin/internal/shared"
)

// ErrDuplicateName indicates a role name collision within a scope.
var ErrDuplicateName = errors.New("roles: name already in use")

// ListFilters narrows role listings.
type ListFilters struct {
	Status   *Status
	TenantID *int64
	Page     int
	PerPage  int
}

// TransitionParams carries one lifecycle state change. ExpectedVersion
// implements the optimistic lock: the update only applies when the stored
// version still matches, so concurrent transitions cannot both win.
type TransitionParams struct {
	RoleID          int64
	ExpectedVersion int64
	Status          Status
	SubmittedBy     *int64
	ApprovedBy      *int64
	RejectReason    *string
	RiskScore       *int
	RiskLevel       *risk.Level
}

// TxRepository exposes the operations that must commit as one unit.
type TxRepository interface {
	TransitionStatus(ctx context.Context, params TransitionParams) error
	ReplaceGrants(ctx context.Context, roleID int64, perms []authz.Permission) error
}

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	GetRole(ctx context.Context, id int64) (Role, error)
	ListRoles(ctx context.Context, filters ListFilters) ([]Role, int, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateDraft(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id int64) error
	CountAssignments(ctx context.Context, roleID int64) (int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const roleColumns = `id, name, description, scope_type, tenant_id, status, version,
submitted_by, approved_by, COALESCE(reject_reason, ''), risk_score, risk_level, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	var scopeType, status, level string
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &scopeType, &r.TenantID, &status,
		&r.Version, &r.SubmittedBy, &r.ApprovedBy, &r.RejectReason, &r.RiskScore, &level,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return Role{}, err
	}
	r.ScopeType = authz.ScopeType(scopeType)
	r.Status = Status(status)
	r.RiskLevel = risk.Level(level)
	return r, nil
}

// GetRole fetches a role with its proposed permissions and composite edges.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	role.Permissions, err = r.proposedPermissions(ctx, r.pool, id)
	if err != nil {
		return Role{}, err
	}
	role.CompositeRoles, err = r.compositeEdges(ctx, r.pool, id)
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns a page of roles plus the total count.
func (r *Repository) ListRoles(ctx context.Context, filters ListFilters) ([]Role, int, error) {
	page := shared.NewPagination(filters.Page, filters.PerPage, 0)

	var status *string
	if filters.Status != nil {
		s := string(*filters.Status)
		status = &s
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::bigint IS NULL OR tenant_id = $2)`, status, filters.TenantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::bigint IS NULL OR tenant_id = $2)
ORDER BY name, id
LIMIT $3 OFFSET $4`, status, filters.TenantID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// CreateRole inserts a new draft role with its proposed permission set.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO roles (name, description, scope_type, tenant_id, status, version, risk_score, risk_level)
VALUES ($1, $2, $3, $4, $5, 1, 0, $6)
RETURNING `+roleColumns, role.Name, role.Description, string(role.ScopeType), role.TenantID, string(StatusDraft), string(risk.LevelLow))
		created, err := scanRole(row)
		if err != nil {
			return mapDuplicate(err)
		}
		if err := replaceProposed(ctx, tx, created.ID, role.Permissions); err != nil {
			return err
		}
		if err := replaceComposites(ctx, tx, created.ID, role.CompositeRoles); err != nil {
			return err
		}
		created.Permissions = role.Permissions
		created.CompositeRoles = role.CompositeRoles
		role = created
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// UpdateDraft replaces name, description, proposed permissions and composite
// edges of an editable role, guarded by the version check.
func (r *Repository) UpdateDraft(ctx context.Context, role Role) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE roles
SET name = $3, description = $4, version = version + 1, updated_at = NOW()
WHERE id = $1 AND version = $2 AND status IN ($5, $6)`,
			role.ID, role.Version, role.Name, role.Description, string(StatusDraft), string(StatusRejected))
		if err != nil {
			return mapDuplicate(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrVersionConflict
		}
		if err := replaceProposed(ctx, tx, role.ID, role.Permissions); err != nil {
			return err
		}
		return replaceComposites(ctx, tx, role.ID, role.CompositeRoles)
	})
}

// DeleteRole removes a role by ID.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountAssignments returns how many user assignments reference the role.
func (r *Repository) CountAssignments(ctx context.Context, roleID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

// WithTx runs fn against a transactional repository view.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// TransitionStatus applies a state change when the stored version matches.
func (t *txRepository) TransitionStatus(ctx context.Context, params TransitionParams) error {
	tag, err := t.tx.Exec(ctx, `UPDATE roles SET
status = $3,
submitted_by = COALESCE($4, submitted_by),
approved_by = COALESCE($5, approved_by),
reject_reason = COALESCE($6, reject_reason),
risk_score = COALESCE($7, risk_score),
risk_level = COALESCE($8, risk_level),
version = version + 1,
updated_at = NOW()
WHERE id = $1 AND version = $2`,
		params.RoleID, params.ExpectedVersion, string(params.Status),
		params.SubmittedBy, params.ApprovedBy, params.RejectReason,
		params.RiskScore, levelArg(params.RiskLevel))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrVersionConflict
	}
	return nil
}

// ReplaceGrants rewrites the materialized (effective) grants of a role.
func (t *txRepository) ReplaceGrants(ctx context.Context, roleID int64, perms []authz.Permission) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, p := range perms {
		if _, err := t.tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission) VALUES ($1, $2)`, roleID, string(p)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) proposedPermissions(ctx context.Context, q querier, roleID int64) ([]authz.Permission, error) {
	rows, err := q.Query(ctx, `SELECT permission FROM role_proposed_permissions WHERE role_id = $1 ORDER BY permission`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []authz.Permission
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, authz.Permission(p))
	}
	return perms, rows.Err()
}

func (r *Repository) compositeEdges(ctx context.Context, q querier, roleID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT child_role_id FROM role_composites WHERE parent_role_id = $1 ORDER BY child_role_id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func replaceProposed(ctx context.Context, tx pgx.Tx, roleID int64, perms []authz.Permission) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_proposed_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, p := range perms {
		if _, err := tx.Exec(ctx, `INSERT INTO role_proposed_permissions (role_id, permission) VALUES ($1, $2)`, roleID, string(p)); err != nil {
			return err
		}
	}
	return nil
}

func replaceComposites(ctx context.Context, tx pgx.Tx, roleID int64, children []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_composites WHERE parent_role_id = $1`, roleID); err != nil {
		return err
	}
	for _, child := range children {
		if _, err := tx.Exec(ctx, `INSERT INTO role_composites (parent_role_id, child_role_id) VALUES ($1, $2)`, roleID, child); err != nil {
			return err
		}
	}
	return nil
}

func levelArg(level *risk.Level) *string {
	if level == nil {
		return nil
	}
	s := string(*level)
	return &s
}

func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateName
	}
	return err
}

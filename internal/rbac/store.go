// Package rbac connects the permission calculator to persistence and exposes
// HTTP authorization middleware.
package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrium-platform/atrium-admin/internal/authz"
)

// Store loads role assignments and grants from PostgreSQL. It implements
// authz.IdentityStore.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetUserRoleAssignments returns the role ids directly assigned to the user.
// A nil tenantID selects system-scoped assignments only; assignments bound to
// a tenant never count toward a system computation.
func (s *Store) GetUserRoleAssignments(ctx context.Context, userID int64, tenantID *int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT role_id FROM user_roles
WHERE user_id = $1 AND tenant_id IS NOT DISTINCT FROM $2`, userID, tenantID)
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

// GetRolePermissions returns the union of materialized grants of the given
// roles. Only active roles contribute; a retired or revoked role's rows are
// gone from role_permissions, so the join on status is belt and braces.
func (s *Store) GetRolePermissions(ctx context.Context, roleIDs []int64) ([]authz.Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT rp.permission
FROM role_permissions rp
JOIN roles r ON r.id = rp.role_id
WHERE rp.role_id = ANY($1) AND r.status = 'ACTIVE'`, roleIDs)
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

// GetCompositeRoleEdges returns the child role ids a composite role includes.
func (s *Store) GetCompositeRoleEdges(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT child_role_id FROM role_composites WHERE parent_role_id = $1`, roleID)
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

package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrium-platform/atrium-admin/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, page, perPage int) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	ListAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error)
	GetRoleMeta(ctx context.Context, roleID int64) (status string, scopeType string, tenantID *int64, err error)
	AssignRole(ctx context.Context, userID, roleID int64, tenantID *int64) error
	RemoveRole(ctx context.Context, userID, roleID int64, tenantID *int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns a page of users with the total count.
func (r *Repository) ListUsers(ctx context.Context, page, perPage int) ([]User, int, error) {
	p := shared.NewPagination(page, perPage, 0)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, email, name, is_active, created_at, updated_at
FROM users ORDER BY id LIMIT $1 OFFSET $2`, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// GetUser fetches one user.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, is_active, created_at, updated_at
FROM users WHERE id = $1`, id).Scan(&user.ID, &user.Email, &user.Name, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ListAssignments returns all role assignments of a user, any scope.
func (r *Repository) ListAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT ur.user_id, ur.role_id, ro.name, ro.status, ur.tenant_id, ur.assigned_at
FROM user_roles ur
JOIN roles ro ON ro.id = ur.role_id
WHERE ur.user_id = $1
ORDER BY ur.assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.RoleName, &a.RoleStatus, &a.TenantID, &a.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetRoleMeta returns the lifecycle status and scope of a role.
func (r *Repository) GetRoleMeta(ctx context.Context, roleID int64) (string, string, *int64, error) {
	var status, scopeType string
	var tenantID *int64
	err := r.pool.QueryRow(ctx, `SELECT status, scope_type, tenant_id FROM roles WHERE id = $1`, roleID).
		Scan(&status, &scopeType, &tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", nil, shared.ErrNotFound
	}
	if err != nil {
		return "", "", nil, err
	}
	return status, scopeType, tenantID, nil
}

// AssignRole inserts a user-role binding.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID int64, tenantID *int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id, tenant_id, assigned_at)
VALUES ($1, $2, $3, NOW())`, userID, roleID, tenantID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyAssigned
	}
	return err
}

// RemoveRole deletes a user-role binding. Removing an absent binding is not
// an error.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64, tenantID *int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles
WHERE user_id = $1 AND role_id = $2 AND tenant_id IS NOT DISTINCT FROM $3`, userID, roleID, tenantID)
	return err
}

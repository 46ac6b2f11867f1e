// Package users manages user accounts and their role assignments.
package users

import (
	"errors"
	"time"
)

// User represents a managed account. Authentication happens upstream; this
// service only administers what the account may do.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleAssignment binds a role to a user within a scope. TenantID is nil for
// system-wide assignments.
type RoleAssignment struct {
	UserID     int64
	RoleID     int64
	RoleName   string
	RoleStatus string
	TenantID   *int64
	AssignedAt time.Time
}

var (
	// ErrRoleNotAssignable rejects assigning a role that is not active.
	ErrRoleNotAssignable = errors.New("users: only active roles can be assigned")
	// ErrAlreadyAssigned rejects a duplicate assignment.
	ErrAlreadyAssigned = errors.New("users: role already assigned in this scope")
	// ErrScopeMismatch rejects a tenant assignment of a system role or the
	// reverse.
	ErrScopeMismatch = errors.New("users: role scope does not match assignment scope")
)

package users

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/atrium-platform/atrium-admin/internal/shared"
)

// Invalidator drops computed effective-permission sets after an assignment
// change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service handles user administration.
type Service struct {
	repo        RepositoryPort
	audit       shared.AuditSink
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit shared.AuditSink, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, invalidator: invalidator, logger: logger}
}

// ListUsers returns a page of users.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	users, total, err := s.repo.ListUsers(ctx, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(page, perPage, total), nil
}

// GetUser fetches one user with assignments.
func (s *Service) GetUser(ctx context.Context, id int64) (User, []RoleAssignment, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, nil, err
	}
	assignments, err := s.repo.ListAssignments(ctx, id)
	if err != nil {
		return User{}, nil, err
	}
	return user, assignments, nil
}

// AssignRole binds an active role to a user. The role's scope must match the
// assignment scope: a tenant-scoped role cannot grant system-wide and a
// system role cannot be narrowed to one tenant here.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64, tenantID *int64, actorID int64) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	status, scopeType, roleTenant, err := s.repo.GetRoleMeta(ctx, roleID)
	if err != nil {
		return err
	}
	if status != "ACTIVE" {
		return ErrRoleNotAssignable
	}
	if (scopeType == "TENANT") != (tenantID != nil) {
		return ErrScopeMismatch
	}
	if tenantID != nil && roleTenant != nil && *roleTenant != *tenantID {
		return ErrScopeMismatch
	}
	if err := s.repo.AssignRole(ctx, userID, roleID, tenantID); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "ROLE_ASSIGN", userID, roleID, tenantID)
	return nil
}

// RemoveRole unbinds a role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64, tenantID *int64, actorID int64) error {
	if err := s.repo.RemoveRole(ctx, userID, roleID, tenantID); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "ROLE_UNASSIGN", userID, roleID, tenantID)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Error("invalidate permission cache", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID, roleID int64, tenantID *int64) {
	if s.audit == nil {
		return
	}
	details := map[string]any{"role_id": roleID}
	if tenantID != nil {
		details["tenant_id"] = *tenantID
	}
	s.audit.Record(ctx, shared.AuditEvent{
		ActorID:    actorID,
		Action:     action,
		TargetType: "user",
		TargetID:   strconv.FormatInt(userID, 10),
		Details:    details,
	})
}

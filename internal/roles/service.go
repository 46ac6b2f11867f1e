package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/risk"
	"github.com/atrium-platform/atrium-admin/internal/shared"
)

const approvalModule = "ROLE"

// Invalidator drops computed effective-permission sets. Any change to
// materialized grants, assignments or composite edges must go through it;
// serving a stale set past that boundary is a correctness bug.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service drives the role lifecycle state machine.
type Service struct {
	repo        RepositoryPort
	approvals   *shared.ApprovalRecorder
	audit       shared.AuditSink
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds a Service instance. approvals, audit and invalidator may
// be nil in tests.
func NewService(repo RepositoryPort, approvals *shared.ApprovalRecorder, audit shared.AuditSink, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, approvals: approvals, audit: audit, invalidator: invalidator, logger: logger}
}

// CreateInput carries a new role definition.
type CreateInput struct {
	Name           string
	Description    string
	ScopeType      authz.ScopeType
	TenantID       *int64
	Permissions    []authz.Permission
	CompositeRoles []int64
}

// Create inserts a new draft role.
func (s *Service) Create(ctx context.Context, input CreateInput, actorID int64) (Role, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Role{}, ErrNameRequired
	}
	if input.ScopeType == "" {
		input.ScopeType = authz.ScopeSystem
	}
	if err := validatePermissions(input.Permissions); err != nil {
		return Role{}, err
	}
	role, err := s.repo.CreateRole(ctx, Role{
		Name:           input.Name,
		Description:    strings.TrimSpace(input.Description),
		ScopeType:      input.ScopeType,
		TenantID:       input.TenantID,
		Permissions:    dedupe(input.Permissions),
		CompositeRoles: input.CompositeRoles,
	})
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actorID, "ROLE_CREATE", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// UpdateInput carries edits to a draft or rejected role.
type UpdateInput struct {
	Name            string
	Description     string
	Permissions     []authz.Permission
	CompositeRoles  []int64
	ExpectedVersion int64
}

// Update replaces the proposed definition of an editable role.
func (s *Service) Update(ctx context.Context, roleID int64, input UpdateInput, actorID int64) (Role, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Role{}, ErrNameRequired
	}
	if err := validatePermissions(input.Permissions); err != nil {
		return Role{}, err
	}
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if !role.Editable() {
		return Role{}, ErrInvalidStateTransition
	}
	role.Name = input.Name
	role.Description = strings.TrimSpace(input.Description)
	role.Permissions = dedupe(input.Permissions)
	role.CompositeRoles = input.CompositeRoles
	role.Version = input.ExpectedVersion
	if err := s.repo.UpdateDraft(ctx, role); err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actorID, "ROLE_UPDATE", roleID, map[string]any{"name": role.Name})
	return s.repo.GetRole(ctx, roleID)
}

// Get fetches a role with a fresh risk assessment of its proposed set.
func (s *Service) Get(ctx context.Context, roleID int64) (Role, risk.Assessment, risk.SoDResult, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, risk.Assessment{}, risk.SoDResult{}, err
	}
	return role, risk.ScoreRisk(role.Permissions), risk.ValidateSoD(role.Permissions), nil
}

// List returns a page of roles.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Role, shared.Pagination, error) {
	roles, total, err := s.repo.ListRoles(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return roles, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// Assess scores an arbitrary proposed permission set without persisting.
func (s *Service) Assess(permissions []authz.Permission) (risk.Assessment, risk.SoDResult) {
	perms := dedupe(permissions)
	return risk.ScoreRisk(perms), risk.ValidateSoD(perms)
}

// Submit moves a draft or rejected role into pending approval. The proposed
// permission set is gated: a critical SoD conflict fails the submission and
// leaves the state untouched.
func (s *Service) Submit(ctx context.Context, roleID, actorID int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if role.Status != StatusDraft && role.Status != StatusRejected {
		return Role{}, ErrInvalidStateTransition
	}

	sod := risk.ValidateSoD(role.Permissions)
	if !sod.IsValid {
		return Role{}, &SoDBlockingError{Result: sod}
	}
	assessment := risk.ScoreRisk(role.Permissions)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		score := assessment.Score
		level := assessment.Level
		return tx.TransitionStatus(ctx, TransitionParams{
			RoleID:          roleID,
			ExpectedVersion: role.Version,
			Status:          StatusPendingApproval,
			SubmittedBy:     &actorID,
			RiskScore:       &score,
			RiskLevel:       &level,
		})
	})
	if err != nil {
		return Role{}, err
	}

	s.recordApproval(ctx, roleID, actorID, shared.ApprovalSubmit,
		fmt.Sprintf("role %s submitted (risk %s/%d)", role.Name, assessment.Level, assessment.Score))
	s.recordAudit(ctx, actorID, "ROLE_SUBMIT", roleID, map[string]any{
		"name":       role.Name,
		"risk_score": assessment.Score,
		"risk_level": string(assessment.Level),
	})
	return s.repo.GetRole(ctx, roleID)
}

// Approve activates a pending role. The four-eyes control lives here, not in
// the UI: the submitter can never approve their own change. The status
// change, approver record and grant materialization commit as one unit.
func (s *Service) Approve(ctx context.Context, roleID, actorID int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if role.Status != StatusPendingApproval {
		return Role{}, ErrInvalidStateTransition
	}
	if role.SubmittedBy != nil && *role.SubmittedBy == actorID {
		return Role{}, ErrSelfApprovalForbidden
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.TransitionStatus(ctx, TransitionParams{
			RoleID:          roleID,
			ExpectedVersion: role.Version,
			Status:          StatusActive,
			ApprovedBy:      &actorID,
		}); err != nil {
			return err
		}
		return tx.ReplaceGrants(ctx, roleID, role.Permissions)
	})
	if err != nil {
		return Role{}, err
	}

	s.invalidate(ctx)
	s.recordApproval(ctx, roleID, actorID, shared.ApprovalApprove, fmt.Sprintf("role %s approved", role.Name))
	s.recordAudit(ctx, actorID, "ROLE_APPROVE", roleID, map[string]any{"name": role.Name})
	return s.repo.GetRole(ctx, roleID)
}

// Reject returns a pending role to the rejected state. A reason is required
// before the transition is attempted.
func (s *Service) Reject(ctx context.Context, roleID, actorID int64, reason string) (Role, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Role{}, ErrMissingReason
	}
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if role.Status != StatusPendingApproval {
		return Role{}, ErrInvalidStateTransition
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.TransitionStatus(ctx, TransitionParams{
			RoleID:          roleID,
			ExpectedVersion: role.Version,
			Status:          StatusRejected,
			RejectReason:    &reason,
		})
	})
	if err != nil {
		return Role{}, err
	}

	s.recordApproval(ctx, roleID, actorID, shared.ApprovalReject, reason)
	s.recordAudit(ctx, actorID, "ROLE_REJECT", roleID, map[string]any{"name": role.Name, "reason": reason})
	return s.repo.GetRole(ctx, roleID)
}

// Revise returns an active role to draft for editing. The previously
// materialized grants stay in force for existing holders until the revision
// is itself approved.
func (s *Service) Revise(ctx context.Context, roleID, actorID int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if role.Status != StatusActive {
		return Role{}, ErrInvalidStateTransition
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.TransitionStatus(ctx, TransitionParams{
			RoleID:          roleID,
			ExpectedVersion: role.Version,
			Status:          StatusDraft,
		})
	})
	if err != nil {
		return Role{}, err
	}

	s.recordAudit(ctx, actorID, "ROLE_REVISE", roleID, map[string]any{"name": role.Name})
	return s.repo.GetRole(ctx, roleID)
}

// Retire soft-retires an active role: its materialized grants are removed so
// holders lose the permissions, but the definition and history remain.
func (s *Service) Retire(ctx context.Context, roleID, actorID int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if role.Status != StatusActive {
		return Role{}, ErrInvalidStateTransition
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.TransitionStatus(ctx, TransitionParams{
			RoleID:          roleID,
			ExpectedVersion: role.Version,
			Status:          StatusRetired,
		}); err != nil {
			return err
		}
		return tx.ReplaceGrants(ctx, roleID, nil)
	})
	if err != nil {
		return Role{}, err
	}

	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "ROLE_RETIRE", roleID, map[string]any{"name": role.Name})
	return s.repo.GetRole(ctx, roleID)
}

// Delete hard-deletes a role that never went live and has no assignments.
func (s *Service) Delete(ctx context.Context, roleID, actorID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if !role.Editable() {
		return ErrInvalidStateTransition
	}
	count, err := s.repo.CountAssignments(ctx, roleID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrRoleReferenced
	}
	if err := s.repo.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ROLE_DELETE", roleID, map[string]any{"name": role.Name})
	return nil
}

// History returns the approval trail of a role.
func (s *Service) History(ctx context.Context, roleID int64) ([]shared.ApprovalLog, error) {
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, approvalModule, shared.ApprovalRef(approvalModule, roleID))
}

func (s *Service) recordApproval(ctx context.Context, roleID, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   shared.ApprovalRef(approvalModule, roleID),
		ActorID: actorID,
		Action:  action,
		Note:    note,
	}); err != nil && s.logger != nil {
		s.logger.Error("record role approval", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, roleID int64, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, shared.AuditEvent{
		ActorID:    actorID,
		Action:     action,
		TargetType: "role",
		TargetID:   strconv.FormatInt(roleID, 10),
		Details:    details,
	})
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Error("invalidate permission cache", slog.Any("error", err))
	}
}

func validatePermissions(perms []authz.Permission) error {
	for _, p := range perms {
		if !p.Valid() {
			return fmt.Errorf("roles: malformed permission %q", p)
		}
	}
	return nil
}

func dedupe(perms []authz.Permission) []authz.Permission {
	return authz.NewSet(perms...).Sorted()
}

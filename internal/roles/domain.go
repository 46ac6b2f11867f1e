// Package roles manages role definitions and their change lifecycle:
// Draft -> Pending Approval -> Active/Rejected, under four-eyes control.
package roles

import (
	"errors"
	"fmt"
	"time"

	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/risk"
)

// Status is the lifecycle state of a role definition.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusActive          Status = "ACTIVE"
	StatusRejected        Status = "REJECTED"
	StatusRetired         Status = "RETIRED"
)

// Role is a named permission grouping with scope and lifecycle state.
// Permissions holds the proposed set being edited; grants become effective
// for holders only when an approval materializes them.
type Role struct {
	ID             int64
	Name           string
	Description    string
	ScopeType      authz.ScopeType
	TenantID       *int64
	Status         Status
	Version        int64
	Permissions    []authz.Permission
	CompositeRoles []int64
	SubmittedBy    *int64
	ApprovedBy     *int64
	RejectReason   string
	RiskScore      int
	RiskLevel      risk.Level
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Scope renders the role's computation scope.
func (r Role) Scope() authz.Scope {
	if r.ScopeType == authz.ScopeTenant && r.TenantID != nil {
		return authz.TenantScope(*r.TenantID)
	}
	return authz.SystemScope()
}

// Editable reports whether the proposed permission set may be changed.
func (r Role) Editable() bool {
	return r.Status == StatusDraft || r.Status == StatusRejected
}

// Lifecycle errors. These surface with enough structure for the caller to
// render a specific message; a bare "forbidden" is not enough in this domain.
var (
	// ErrInvalidStateTransition rejects a transition the current state does
	// not permit. The role is left untouched; callers re-fetch state.
	ErrInvalidStateTransition = errors.New("roles: invalid state transition")
	// ErrSelfApprovalForbidden enforces the four-eyes control: the actor who
	// submitted a change must not approve it.
	ErrSelfApprovalForbidden = errors.New("roles: submitter cannot approve own change")
	// ErrMissingReason rejects a rejection without a comment.
	ErrMissingReason = errors.New("roles: rejection reason required")
	// ErrNameRequired rejects role creation without a name.
	ErrNameRequired = errors.New("roles: role name required")
	// ErrRoleReferenced prevents deleting a role that users still hold.
	ErrRoleReferenced = errors.New("roles: role still assigned, retire it instead")
)

// SoDBlockingError fails a submission whose proposed permission set triggers
// a critical segregation-of-duties conflict. It names the violated rules so
// the UI can point at the offending permissions.
type SoDBlockingError struct {
	Result risk.SoDResult
}

// Error implements error.
func (e *SoDBlockingError) Error() string {
	for _, c := range e.Result.Conflicts {
		if c.Rule.Severity == risk.SeverityCritical {
			return fmt.Sprintf("roles: blocking SoD conflict %s: %s and %s must not be held together",
				c.Rule.ID, c.PermissionA, c.PermissionB)
		}
	}
	return "roles: blocking SoD conflict"
}

// CriticalConflicts returns only the blocking conflicts.
func (e *SoDBlockingError) CriticalConflicts() []risk.SoDConflict {
	var out []risk.SoDConflict
	for _, c := range e.Result.Conflicts {
		if c.Rule.Severity == risk.SeverityCritical {
			out = append(out, c)
		}
	}
	return out
}

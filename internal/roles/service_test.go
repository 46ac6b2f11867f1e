package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/risk"
	"github.com/atrium-platform/atrium-admin/internal/shared"
)

type mockRepository struct {
	roles         map[int64]*Role
	grants        map[int64][]authz.Permission
	assignments   map[int64]int
	nextID        int64
	transitionErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:       map[int64]*Role{},
		grants:      map[int64][]authz.Permission{},
		assignments: map[int64]int{},
		nextID:      1,
	}
}

func (m *mockRepository) GetRole(_ context.Context, id int64) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return *r, nil
}

func (m *mockRepository) ListRoles(_ context.Context, _ ListFilters) ([]Role, int, error) {
	var out []Role
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockRepository) CreateRole(_ context.Context, role Role) (Role, error) {
	role.ID = m.nextID
	role.Status = StatusDraft
	role.Version = 1
	m.nextID++
	m.roles[role.ID] = &role
	return role, nil
}

func (m *mockRepository) UpdateDraft(_ context.Context, role Role) error {
	stored, ok := m.roles[role.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != role.Version {
		return shared.ErrVersionConflict
	}
	role.Status = stored.Status
	role.Version = stored.Version + 1
	m.roles[role.ID] = &role
	return nil
}

func (m *mockRepository) DeleteRole(_ context.Context, id int64) error {
	delete(m.roles, id)
	return nil
}

func (m *mockRepository) CountAssignments(_ context.Context, roleID int64) (int, error) {
	return m.assignments[roleID], nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) TransitionStatus(_ context.Context, params TransitionParams) error {
	if m.transitionErr != nil {
		return m.transitionErr
	}
	stored, ok := m.roles[params.RoleID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != params.ExpectedVersion {
		return shared.ErrVersionConflict
	}
	stored.Status = params.Status
	stored.Version++
	if params.SubmittedBy != nil {
		stored.SubmittedBy = params.SubmittedBy
	}
	if params.ApprovedBy != nil {
		stored.ApprovedBy = params.ApprovedBy
	}
	if params.RejectReason != nil {
		stored.RejectReason = *params.RejectReason
	}
	if params.RiskScore != nil {
		stored.RiskScore = *params.RiskScore
	}
	if params.RiskLevel != nil {
		stored.RiskLevel = *params.RiskLevel
	}
	return nil
}

func (m *mockRepository) ReplaceGrants(_ context.Context, roleID int64, perms []authz.Permission) error {
	m.grants[roleID] = perms
	return nil
}

type mockInvalidator struct {
	calls int
}

func (m *mockInvalidator) Invalidate(context.Context) error {
	m.calls++
	return nil
}

func newTestService(repo *mockRepository, inv *mockInvalidator) *Service {
	return NewService(repo, nil, nil, inv, nil)
}

func createDraft(t *testing.T, svc *Service, perms ...authz.Permission) Role {
	t.Helper()
	role, err := svc.Create(context.Background(), CreateInput{
		Name:        "Billing Operator",
		Permissions: perms,
	}, 1)
	require.NoError(t, err)
	return role
}

func TestCreateRequiresName(t *testing.T) {
	svc := newTestService(newMockRepository(), nil)
	_, err := svc.Create(context.Background(), CreateInput{Name: "  "}, 1)
	require.ErrorIs(t, err, ErrNameRequired)
}

func TestCreateRejectsMalformedPermission(t *testing.T) {
	svc := newTestService(newMockRepository(), nil)
	_, err := svc.Create(context.Background(), CreateInput{
		Name:        "Ops",
		Permissions: []authz.Permission{"Tenant..Read"},
	}, 1)
	require.Error(t, err)
}

func TestSubmitMovesDraftToPending(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil)
	role := createDraft(t, svc, "tenant.billing.invoices.read")

	submitted, err := svc.Submit(context.Background(), role.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, submitted.Status)
	require.NotNil(t, submitted.SubmittedBy)
	require.Equal(t, int64(7), *submitted.SubmittedBy)
	require.NotEmpty(t, submitted.RiskLevel)
}

func TestSubmitBlocksOnCriticalSoDConflict(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil)
	role := createDraft(t, svc, "system.roles.create", "system.roles.approve")

	_, err := svc.Submit(context.Background(), role.ID, 7)
	var sodErr *SoDBlockingError
	require.ErrorAs(t, err, &sodErr)
	require.NotEmpty(t, sodErr.CriticalConflicts())
	require.Equal(t, "SOD-ROLE-001", sodErr.CriticalConflicts()[0].Rule.ID)

	// a failed submission never changes state
	stored, err := repo.GetRole(context.Background(), role.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
}

func TestSubmitAllowsHighSeverityConflict(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil)
	role := createDraft(t, svc, "system.roles.update", "system.roles.approve")

	submitted, err := svc.Submit(context.Background(), role.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, submitted.Status)
}

func TestApproveEnforcesFourEyes(t *testing.T) {
	repo := newMockRepository()
	inv := &mockInvalidator{}
	svc := newTestService(repo, inv)
	role := createDraft(t, svc, "tenant.billing.invoices.read")

	submitted, err := svc.Submit(context.Background(), role.ID, 7)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), submitted.ID, 7)
	require.ErrorIs(t, err, ErrSelfApprovalForbidden)

	approved, err := svc.Approve(context.Background(), submitted.ID, 8)
	require.NoError(t, err)
	require.Equal(t, StatusActive, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, int64(8), *approved.ApprovedBy)
	require.Equal(t, []authz.Permission{"tenant.billing.invoices.read"}, repo.grants[role.ID])
	require.Equal(t, 1, inv.calls)
}

func TestApproveRequiresPending(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil)
	role := createDraft(t, svc, "tenant.billing.invoices.read")

	_, err := svc.Approve(context.Background(), role.ID, 8)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestRejectRequiresReason(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil)
	role := createDraft(t, svc, "tenant.billing.invoices.read")
	_, err := svc.Submit(context.Background(), role.ID, 7)
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), role.ID, 8, "   ")
	require.ErrorIs(t, err, ErrMissingReason)

	rejected, err := svc.Reject(context.Background(), role.ID, 8, "too broad for billing staff")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "too broad for billing staff", rejected.RejectReason)
}

func TestRejectedRoleCanBeResubmitted(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil)
	role := createDraft(t, svc, "tenant.billing.invoices.read")
	_, err := svc.Submit(context.Background(), role.ID, 7)
	require.NoError(t, err)
	_, err = svc.Reject(context.Background(), role.ID, 8, "needs narrower scope")
	require.NoError(t, err)

	resubmitted, err := svc.Submit(context.Background(), role.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, resubmitted.Status)
}

func TestReviseKeepsMaterializedGrants(t *testing.T) {
	repo := newMockRepository()
	inv := &mockInvalidator{}
	svc := newTestService(repo, inv)
	role := createDraft(t, svc, "tenant.billing.invoices.read")
	_, err := svc.Submit(context.Background(), role.ID, 7)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), role.ID, 8)
	require.NoError(t, err)

	revised, err := svc.Revise(context.Background(), role.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, revised.Status)
	// existing holders keep their permissions until the revision is approved
	require.Equal(t, []authz.Permission{"tenant.billing.invoices.read"}, repo.grants[role.ID])
	require.Equal(t, 1, inv.calls)
}

func TestRetireRemovesGrants(t *testing.T) {
	repo := newMockRepository()
	inv := &mockInvalidator{}
	svc := newTestService(repo, inv)
	role := createDraft(t, svc, "tenant.billing.invoices.read")
	_, err := svc.Submit(context.Background(), role.ID, 7)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), role.ID, 8)
	require.NoError(t, err)

	retired, err := svc.Retire(context.Background(), role.ID, 8)
	require.NoError(t, err)
	require.Equal(t, StatusRetired, retired.Status)
	require.Empty(t, repo.grants[role.ID])
	require.Equal(t, 2, inv.calls)
}

func TestDeleteBlockedByAssignments(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil)
	role := createDraft(t, svc, "tenant.billing.invoices.read")
	repo.assignments[role.ID] = 3

	err := svc.Delete(context.Background(), role.ID, 1)
	require.ErrorIs(t, err, ErrRoleReferenced)

	repo.assignments[role.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), role.ID, 1))
	_, err = repo.GetRole(context.Background(), role.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateGuardedByState(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil)
	role := createDraft(t, svc, "tenant.billing.invoices.read")
	_, err := svc.Submit(context.Background(), role.ID, 7)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), role.ID, UpdateInput{
		Name:            "Billing Operator",
		Permissions:     []authz.Permission{"tenant.billing.invoices.read"},
		ExpectedVersion: 2,
	}, 7)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestTransitionVersionConflict(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil)
	role := createDraft(t, svc, "tenant.billing.invoices.read")

	// simulate another transition landing first
	repo.transitionErr = shared.ErrVersionConflict

	_, err := svc.Submit(context.Background(), role.ID, 7)
	require.True(t, errors.Is(err, shared.ErrVersionConflict))
}

func TestAssessDoesNotPersist(t *testing.T) {
	svc := newTestService(newMockRepository(), nil)
	assessment, sod := svc.Assess([]authz.Permission{"system.users.impersonate", "system.roles.update"})
	require.Equal(t, risk.LevelMedium, assessment.Level)
	require.True(t, sod.IsValid)
}

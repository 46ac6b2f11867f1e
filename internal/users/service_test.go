package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atrium-platform/atrium-admin/internal/shared"
)

type roleMeta struct {
	status    string
	scopeType string
	tenantID  *int64
}

type mockRepo struct {
	users       map[int64]User
	roles       map[int64]roleMeta
	assignments []RoleAssignment
}

func (m *mockRepo) ListUsers(context.Context, int, int) ([]User, int, error) {
	var out []User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *mockRepo) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) ListAssignments(_ context.Context, userID int64) ([]RoleAssignment, error) {
	var out []RoleAssignment
	for _, a := range m.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) GetRoleMeta(_ context.Context, roleID int64) (string, string, *int64, error) {
	meta, ok := m.roles[roleID]
	if !ok {
		return "", "", nil, shared.ErrNotFound
	}
	return meta.status, meta.scopeType, meta.tenantID, nil
}

func (m *mockRepo) AssignRole(_ context.Context, userID, roleID int64, tenantID *int64) error {
	for _, a := range m.assignments {
		if a.UserID == userID && a.RoleID == roleID {
			return ErrAlreadyAssigned
		}
	}
	m.assignments = append(m.assignments, RoleAssignment{UserID: userID, RoleID: roleID, TenantID: tenantID})
	return nil
}

func (m *mockRepo) RemoveRole(_ context.Context, userID, roleID int64, _ *int64) error {
	kept := m.assignments[:0]
	for _, a := range m.assignments {
		if a.UserID != userID || a.RoleID != roleID {
			kept = append(kept, a)
		}
	}
	m.assignments = kept
	return nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func newRepo() *mockRepo {
	return &mockRepo{
		users: map[int64]User{10: {ID: 10, Email: "ops@example.com", Name: "Ops", IsActive: true}},
		roles: map[int64]roleMeta{
			1: {status: "ACTIVE", scopeType: "SYSTEM"},
			2: {status: "DRAFT", scopeType: "SYSTEM"},
			3: {status: "ACTIVE", scopeType: "TENANT"},
		},
	}
}

func TestAssignRoleRequiresActive(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, nil, nil, nil)

	err := svc.AssignRole(context.Background(), 10, 2, nil, 1)
	require.ErrorIs(t, err, ErrRoleNotAssignable)
	require.Empty(t, repo.assignments)
}

func TestAssignRoleScopeMustMatch(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, nil, nil, nil)

	// tenant role needs a tenant-bound assignment
	err := svc.AssignRole(context.Background(), 10, 3, nil, 1)
	require.ErrorIs(t, err, ErrScopeMismatch)

	// system role cannot be narrowed to a tenant
	tenant := int64(7)
	err = svc.AssignRole(context.Background(), 10, 1, &tenant, 1)
	require.ErrorIs(t, err, ErrScopeMismatch)
}

func TestAssignRoleInvalidatesCache(t *testing.T) {
	repo := newRepo()
	inv := &countingInvalidator{}
	svc := NewService(repo, nil, inv, nil)

	require.NoError(t, svc.AssignRole(context.Background(), 10, 1, nil, 1))
	require.Equal(t, 1, inv.calls)

	err := svc.AssignRole(context.Background(), 10, 1, nil, 1)
	require.ErrorIs(t, err, ErrAlreadyAssigned)
	require.Equal(t, 1, inv.calls)

	require.NoError(t, svc.RemoveRole(context.Background(), 10, 1, nil, 1))
	require.Equal(t, 2, inv.calls)
}

func TestAssignRoleUnknownUser(t *testing.T) {
	svc := NewService(newRepo(), nil, nil, nil)
	err := svc.AssignRole(context.Background(), 99, 1, nil, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockIdentityStore struct {
	systemAssignments map[int64][]int64
	tenantAssignments map[int64]map[int64][]int64
	rolePermissions   map[int64][]Permission
	compositeEdges    map[int64][]int64

	assignmentCalls int
}

func newMockIdentityStore() *mockIdentityStore {
	return &mockIdentityStore{
		systemAssignments: make(map[int64][]int64),
		tenantAssignments: make(map[int64]map[int64][]int64),
		rolePermissions:   make(map[int64][]Permission),
		compositeEdges:    make(map[int64][]int64),
	}
}

func (m *mockIdentityStore) GetUserRoleAssignments(_ context.Context, userID int64, tenantID *int64) ([]int64, error) {
	m.assignmentCalls++
	if tenantID == nil {
		return m.systemAssignments[userID], nil
	}
	return m.tenantAssignments[userID][*tenantID], nil
}

func (m *mockIdentityStore) GetRolePermissions(_ context.Context, roleIDs []int64) ([]Permission, error) {
	var perms []Permission
	for _, id := range roleIDs {
		perms = append(perms, m.rolePermissions[id]...)
	}
	return perms, nil
}

func (m *mockIdentityStore) GetCompositeRoleEdges(_ context.Context, roleID int64) ([]int64, error) {
	return m.compositeEdges[roleID], nil
}

func TestEffectivePermissionsSortedDeduplicated(t *testing.T) {
	store := newMockIdentityStore()
	store.systemAssignments[10] = []int64{1, 2}
	store.rolePermissions[1] = []Permission{"system.users.read", "system.roles.read"}
	store.rolePermissions[2] = []Permission{"system.roles.read", "system.billing.read"}

	calc := NewCalculator(store, nil)
	perms, err := calc.EffectivePermissions(context.Background(), 10, SystemScope())
	require.NoError(t, err)
	assert.Equal(t, []Permission{"system.billing.read", "system.roles.read", "system.users.read"}, perms)
}

func TestEffectivePermissionsExpandsComposites(t *testing.T) {
	store := newMockIdentityStore()
	store.systemAssignments[10] = []int64{1}
	store.compositeEdges[1] = []int64{2}
	store.compositeEdges[2] = []int64{1} // malformed cycle must not hang
	store.rolePermissions[1] = []Permission{"system.users.read"}
	store.rolePermissions[2] = []Permission{"system.audit.read"}

	calc := NewCalculator(store, nil)
	perms, err := calc.EffectivePermissions(context.Background(), 10, SystemScope())
	require.NoError(t, err)
	assert.Equal(t, []Permission{"system.audit.read", "system.users.read"}, perms)
}

func TestEffectivePermissionsFailClosed(t *testing.T) {
	store := newMockIdentityStore()
	calc := NewCalculator(store, nil)

	perms, err := calc.EffectivePermissions(context.Background(), 99, SystemScope())
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestEffectivePermissionsScopePurity(t *testing.T) {
	store := newMockIdentityStore()
	store.systemAssignments[10] = []int64{1}
	store.tenantAssignments[10] = map[int64][]int64{42: {2}}
	store.rolePermissions[1] = []Permission{"system.users.read"}
	store.rolePermissions[2] = []Permission{"tenant.reports.read"}

	calc := NewCalculator(store, nil)

	system, err := calc.EffectivePermissions(context.Background(), 10, SystemScope())
	require.NoError(t, err)
	assert.Equal(t, []Permission{"system.users.read"}, system)

	tenant, err := calc.EffectivePermissions(context.Background(), 10, TenantScope(42))
	require.NoError(t, err)
	assert.Equal(t, []Permission{"tenant.reports.read"}, tenant)

	other, err := calc.EffectivePermissions(context.Background(), 10, TenantScope(7))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestEffectivePermissionsIdempotent(t *testing.T) {
	store := newMockIdentityStore()
	store.systemAssignments[10] = []int64{1}
	store.rolePermissions[1] = []Permission{"system.users.read", "system.roles.read"}

	calc := NewCalculator(store, nil)
	first, err := calc.EffectivePermissions(context.Background(), 10, SystemScope())
	require.NoError(t, err)
	second, err := calc.EffectivePermissions(context.Background(), 10, SystemScope())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

package authz

import (
	"context"
	"testing"
)

func staticEdges(edges map[int64][]int64) EdgeLookup {
	return func(_ context.Context, roleID int64) ([]int64, error) {
		return edges[roleID], nil
	}
}

func TestResolveRolesIncludesInput(t *testing.T) {
	resolved, err := ResolveRoles(context.Background(), []int64{1, 2}, staticEdges(nil))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(resolved))
	}
}

func TestResolveRolesTransitive(t *testing.T) {
	edges := map[int64][]int64{1: {2}, 2: {3}, 3: nil}
	resolved, err := ResolveRoles(context.Background(), []int64{1}, staticEdges(edges))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, want := range []int64{1, 2, 3} {
		if _, ok := resolved[want]; !ok {
			t.Fatalf("missing role %d in %v", want, resolved)
		}
	}
}

func TestResolveRolesCycleSafe(t *testing.T) {
	edges := map[int64][]int64{1: {2}, 2: {1}}
	resolved, err := ResolveRoles(context.Background(), []int64{1}, staticEdges(edges))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("cycle A->B->A should resolve to exactly {A,B}, got %v", resolved)
	}
}

func TestResolveRolesNilLookup(t *testing.T) {
	resolved, err := ResolveRoles(context.Background(), []int64{7}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := resolved[7]; !ok || len(resolved) != 1 {
		t.Fatalf("nil lookup should yield input set, got %v", resolved)
	}
}

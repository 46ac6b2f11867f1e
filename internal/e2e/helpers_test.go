package e2e

import (
	"context"
	"io"
	"log/slog"

	"github.com/atrium-platform/atrium-admin/internal/authz"
)

// emptyStore is an identity store with no assignments: every principal
// computes to an empty permission set.
type emptyStore struct{}

func (emptyStore) GetUserRoleAssignments(context.Context, int64, *int64) ([]int64, error) {
	return nil, nil
}

func (emptyStore) GetRolePermissions(context.Context, []int64) ([]authz.Permission, error) {
	return nil, nil
}

func (emptyStore) GetCompositeRoleEdges(context.Context, int64) ([]int64, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

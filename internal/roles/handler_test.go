package roles

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/rbac"
	"github.com/atrium-platform/atrium-admin/internal/risk"
)

func testHandler() *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, nil, rbac.Middleware{})
}

func TestRespondErrorSoDBlockingConflict(t *testing.T) {
	result := risk.ValidateSoD([]authz.Permission{
		"system.roles.create",
		"system.roles.approve",
	})
	require.False(t, result.IsValid)

	rec := httptest.NewRecorder()
	testHandler().respondError(rec, &SoDBlockingError{Result: result})

	require.Equal(t, 422, rec.Code)
	var problem struct {
		Code string `json:"code"`
		Meta struct {
			Conflicts []sodConflictDTO `json:"conflicts"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "SOD_BLOCKING_CONFLICT", problem.Code)
	require.NotEmpty(t, problem.Meta.Conflicts)
	require.Equal(t, "SOD-ROLE-001", problem.Meta.Conflicts[0].RuleID)
}

func TestRespondErrorSelfApproval(t *testing.T) {
	rec := httptest.NewRecorder()
	testHandler().respondError(rec, ErrSelfApprovalForbidden)

	require.Equal(t, 403, rec.Code)
	var problem struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "SELF_APPROVAL_FORBIDDEN", problem.Code)
}

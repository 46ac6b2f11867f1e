package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/platform/httpx"
	"github.com/atrium-platform/atrium-admin/internal/shared"
)

// Handler exposes the caller's own effective permissions.
type Handler struct {
	logger     *slog.Logger
	calculator *authz.Calculator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, calculator *authz.Calculator) *Handler {
	return &Handler{logger: logger, calculator: calculator}
}

// MountRoutes registers introspection routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me/permissions", h.myPermissions)
}

type permissionsResponse struct {
	UserID      int64    `json:"user_id"`
	Scope       string   `json:"scope"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	scope := authz.SystemScope()
	if principal.TenantID != nil {
		scope = authz.TenantScope(*principal.TenantID)
	}
	perms, err := h.calculator.EffectivePermissions(r.Context(), principal.UserID, scope)
	if err != nil {
		h.logger.Error("load effective permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		UserID:      principal.UserID,
		Scope:       scope.Key(),
		Permissions: out,
	})
}

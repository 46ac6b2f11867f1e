package navigation

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/platform/httpx"
	"github.com/atrium-platform/atrium-admin/internal/shared"
)

// Handler serves per-user navigation and route decisions.
type Handler struct {
	logger     *slog.Logger
	calculator *authz.Calculator
	registry   *Holder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, calculator *authz.Calculator, registry *Holder) *Handler {
	return &Handler{logger: logger, calculator: calculator, registry: registry}
}

// MountRoutes registers navigation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me/navigation", h.myNavigation)
	r.Get("/me/navigation/route", h.evaluateRoute)
}

type nodeDTO struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Path     string    `json:"path,omitempty"`
	Children []nodeDTO `json:"children,omitempty"`
}

type navigationResponse struct {
	Version string    `json:"version"`
	Context string    `json:"context"`
	Tree    []nodeDTO `json:"tree"`
	Landing string    `json:"landing,omitempty"`
}

type routeResponse struct {
	Decision string `json:"decision"`
	Target   string `json:"target,omitempty"`
}

func toNodeDTOs(nodes []Node) []nodeDTO {
	out := make([]nodeDTO, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeDTO{
			Key:      n.Key,
			Label:    n.Label,
			Path:     n.Path,
			Children: toNodeDTOs(n.Children),
		})
	}
	return out
}

func (h *Handler) myNavigation(w http.ResponseWriter, r *http.Request) {
	granted, navContext, ok := h.grantedSet(w, r)
	if !ok {
		return
	}
	reg := h.registry.Load()
	tree := reg.Tree(navContext)
	resolved := ResolveVisibleTree(tree, granted)
	resp := navigationResponse{
		Version: reg.Version(),
		Context: navContext,
		Tree:    toNodeDTOs(resolved),
	}
	if target, ok := FirstAllowedTarget(tree, granted); ok {
		resp.Landing = target
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) evaluateRoute(w http.ResponseWriter, r *http.Request) {
	granted, navContext, ok := h.grantedSet(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "path is required")
		return
	}
	tree := h.registry.Load().Tree(navContext)
	result := EvaluateRoute(tree, granted, path, q.Get("tab"), q.Get("subTab"))
	httpx.JSON(w, http.StatusOK, routeResponse{
		Decision: string(result.Decision),
		Target:   result.Target,
	})
}

func (h *Handler) grantedSet(w http.ResponseWriter, r *http.Request) (authz.Set, string, bool) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return nil, "", false
	}
	scope := authz.SystemScope()
	navContext := ContextAdmin
	if principal.TenantID != nil {
		scope = authz.TenantScope(*principal.TenantID)
		navContext = ContextTenant
	}
	granted, err := h.calculator.EffectiveSet(r.Context(), principal.UserID, scope)
	if err != nil {
		h.logger.Error("navigation effective set", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return nil, "", false
	}
	return authz.Normalize(granted), navContext, true
}

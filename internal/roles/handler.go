package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/platform/httpx"
	"github.com/atrium-platform/atrium-admin/internal/rbac"
	"github.com/atrium-platform/atrium-admin/internal/risk"
	"github.com/atrium-platform/atrium-admin/internal/shared"
)

// Handler manages role lifecycle endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		rbac:      rbac,
	}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("system.roles.read"))
		r.Get("/roles", h.list)
		r.Get("/roles/{id}", h.show)
		r.Get("/roles/{id}/history", h.history)
		r.Post("/roles/assess", h.assess)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("system.roles.create"))
		r.Post("/roles", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("system.roles.update"))
		r.Put("/roles/{id}", h.update)
		r.Post("/roles/{id}/submit", h.submit)
		r.Post("/roles/{id}/revise", h.revise)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("system.roles.approve"))
		r.Post("/roles/{id}/approve", h.approve)
		r.Post("/roles/{id}/reject", h.reject)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("system.roles.delete"))
		r.Delete("/roles/{id}", h.remove)
		r.Post("/roles/{id}/retire", h.retire)
	})
}

type roleRequest struct {
	Name           string   `json:"name" validate:"required,max=120"`
	Description    string   `json:"description" validate:"max=500"`
	ScopeType      string   `json:"scope_type" validate:"omitempty,oneof=SYSTEM TENANT"`
	TenantID       *int64   `json:"tenant_id"`
	Permissions    []string `json:"permissions" validate:"dive,min=1"`
	CompositeRoles []int64  `json:"composite_roles"`
	Version        int64    `json:"version"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type assessRequest struct {
	Permissions []string `json:"permissions" validate:"required,min=1,dive,min=1"`
}

type roleResponse struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	ScopeType      string   `json:"scope_type"`
	TenantID       *int64   `json:"tenant_id,omitempty"`
	Status         string   `json:"status"`
	Version        int64    `json:"version"`
	Permissions    []string `json:"permissions"`
	CompositeRoles []int64  `json:"composite_roles,omitempty"`
	SubmittedBy    *int64   `json:"submitted_by,omitempty"`
	ApprovedBy     *int64   `json:"approved_by,omitempty"`
	RejectReason   string   `json:"reject_reason,omitempty"`
	RiskScore      int      `json:"risk_score"`
	RiskLevel      string   `json:"risk_level,omitempty"`
}

type assessmentResponse struct {
	Score    int              `json:"score"`
	Level    string           `json:"level"`
	Reasons  []reasonDTO      `json:"reasons"`
	SoDValid bool             `json:"sod_valid"`
	SoD      []sodConflictDTO `json:"sod_conflicts,omitempty"`
}

type reasonDTO struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
}

type sodConflictDTO struct {
	RuleID      string `json:"rule_id"`
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	PermissionA string `json:"permission_a"`
	PermissionB string `json:"permission_b"`
	Remediation string `json:"remediation,omitempty"`
}

func toRoleResponse(r Role) roleResponse {
	perms := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, string(p))
	}
	return roleResponse{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		ScopeType:      string(r.ScopeType),
		TenantID:       r.TenantID,
		Status:         string(r.Status),
		Version:        r.Version,
		Permissions:    perms,
		CompositeRoles: r.CompositeRoles,
		SubmittedBy:    r.SubmittedBy,
		ApprovedBy:     r.ApprovedBy,
		RejectReason:   r.RejectReason,
		RiskScore:      r.RiskScore,
		RiskLevel:      string(r.RiskLevel),
	}
}

func toAssessmentResponse(a risk.Assessment, sod risk.SoDResult) assessmentResponse {
	out := assessmentResponse{
		Score:    a.Score,
		Level:    string(a.Level),
		Reasons:  make([]reasonDTO, 0, len(a.Reasons)),
		SoDValid: sod.IsValid,
	}
	for _, r := range a.Reasons {
		out.Reasons = append(out.Reasons, reasonDTO{
			Code:        r.Code,
			Description: r.Description,
			Weight:      r.Weight,
		})
	}
	for _, c := range sod.Conflicts {
		out.SoD = append(out.SoD, sodConflictDTO{
			RuleID:      c.Rule.ID,
			Name:        c.Rule.Name,
			Severity:    string(c.Rule.Severity),
			PermissionA: string(c.PermissionA),
			PermissionB: string(c.PermissionB),
			Remediation: c.Rule.Remediation,
		})
	}
	return out
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", 20),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := Status(raw)
		filters.Status = &status
	}
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenant_id must be an integer")
			return
		}
		filters.TenantID = &id
	}

	roles, pagination, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		items = append(items, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"roles":      items,
		"pagination": pagination,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	role, assessment, sod, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":       toRoleResponse(role),
		"assessment": toAssessmentResponse(assessment, sod),
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	logs, err := h.service.History(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": logs})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, principal, ok := h.decodeRoleRequest(w, r)
	if !ok {
		return
	}
	role, err := h.service.Create(r.Context(), CreateInput{
		Name:           req.Name,
		Description:    req.Description,
		ScopeType:      authz.ScopeType(req.ScopeType),
		TenantID:       req.TenantID,
		Permissions:    toPermissions(req.Permissions),
		CompositeRoles: req.CompositeRoles,
	}, principal.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, principal, ok := h.decodeRoleRequest(w, r)
	if !ok {
		return
	}
	role, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:            req.Name,
		Description:     req.Description,
		Permissions:     toPermissions(req.Permissions),
		CompositeRoles:  req.CompositeRoles,
		ExpectedVersion: req.Version,
	}, principal.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Submit)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

func (h *Handler) revise(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Revise)
}

func (h *Handler) retire(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Retire)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "reason is required")
		return
	}
	role, err := h.service.Reject(r.Context(), id, principal.UserID, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	if err := h.service.Delete(r.Context(), id, principal.UserID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permissions are required")
		return
	}
	perms := toPermissions(req.Permissions)
	for _, p := range perms {
		if !p.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed permission: "+string(p))
			return
		}
	}
	assessment, sod := h.service.Assess(perms)
	httpx.JSON(w, http.StatusOK, toAssessmentResponse(assessment, sod))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, roleID, actorID int64) (Role, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	role, err := fn(r.Context(), id, principal.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) decodeRoleRequest(w http.ResponseWriter, r *http.Request) (roleRequest, *shared.Principal, bool) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return roleRequest{}, nil, false
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return roleRequest{}, nil, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return roleRequest{}, nil, false
	}
	return req, principal, true
}

// respondError maps lifecycle errors onto specific statuses. The distinction
// matters to the caller: 403 means "someone else must do this", 409 means
// "re-fetch and retry", 422 means "change the permission set".
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var sodErr *SoDBlockingError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
	case errors.Is(err, ErrSelfApprovalForbidden):
		httpx.ProblemWithCode(w, http.StatusForbidden, "SELF_APPROVAL_FORBIDDEN", "Forbidden", err.Error(), nil)
	case errors.Is(err, ErrInvalidStateTransition):
		httpx.ProblemWithCode(w, http.StatusConflict, "INVALID_STATE_TRANSITION", "Conflict", err.Error(), nil)
	case errors.Is(err, shared.ErrVersionConflict):
		httpx.ProblemWithCode(w, http.StatusConflict, "VERSION_CONFLICT", "Conflict", err.Error(), nil)
	case errors.Is(err, ErrDuplicateName):
		httpx.ProblemWithCode(w, http.StatusConflict, "DUPLICATE_NAME", "Conflict", err.Error(), nil)
	case errors.Is(err, ErrRoleReferenced):
		httpx.ProblemWithCode(w, http.StatusConflict, "ROLE_REFERENCED", "Conflict", err.Error(), nil)
	case errors.Is(err, ErrMissingReason), errors.Is(err, ErrNameRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &sodErr):
		conflicts := make([]sodConflictDTO, 0)
		for _, c := range sodErr.CriticalConflicts() {
			conflicts = append(conflicts, sodConflictDTO{
				RuleID:      c.Rule.ID,
				Name:        c.Rule.Name,
				Severity:    string(c.Rule.Severity),
				PermissionA: string(c.PermissionA),
				PermissionB: string(c.PermissionB),
				Remediation: c.Rule.Remediation,
			})
		}
		httpx.ProblemWithCode(w, http.StatusUnprocessableEntity, "SOD_BLOCKING_CONFLICT",
			"Segregation of Duties Conflict", sodErr.Error(), map[string]any{"conflicts": conflicts})
	default:
		h.logger.Error("role handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func toPermissions(raw []string) []authz.Permission {
	out := make([]authz.Permission, 0, len(raw))
	for _, p := range raw {
		out = append(out, authz.Permission(p))
	}
	return out
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

package rbac

import (
	"log/slog"
	"net/http"

	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/observability"
	"github.com/atrium-platform/atrium-admin/internal/platform/httpx"
	"github.com/atrium-platform/atrium-admin/internal/shared"
)

// Middleware wires authorization checks for HTTP handlers. Denials are
// audited; a missing principal is a deny, never a pass-through.
type Middleware struct {
	Calculator *authz.Calculator
	Audit      shared.AuditSink
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// RequireAny admits the request when the principal holds at least one of the
// required permissions, directly or through a broader ancestor grant. An
// empty requirement list denies: absence of configuration is not consent.
func (m Middleware) RequireAny(perms ...authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted, principal, ok := m.grantedSet(w, r)
			if !ok {
				return
			}
			if authz.HasAny(perms, granted) {
				m.Metrics.RecordDecision("allow")
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, principal, perms)
		})
	}
}

// RequireAll admits the request only when every required permission is held.
func (m Middleware) RequireAll(perms ...authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted, principal, ok := m.grantedSet(w, r)
			if !ok {
				return
			}
			if len(perms) == 0 {
				m.deny(w, r, principal, perms)
				return
			}
			for _, p := range perms {
				if !authz.Matches(p, granted) {
					m.deny(w, r, principal, perms)
					return
				}
			}
			m.Metrics.RecordDecision("allow")
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) grantedSet(w http.ResponseWriter, r *http.Request) (authz.Set, *shared.Principal, bool) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return nil, nil, false
	}
	scope := authz.SystemScope()
	if principal.TenantID != nil {
		scope = authz.TenantScope(*principal.TenantID)
	}
	granted, err := m.Calculator.EffectiveSet(r.Context(), principal.UserID, scope)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac effective set", slog.Int64("user_id", principal.UserID), slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return nil, nil, false
	}
	return authz.Normalize(granted), principal, true
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, principal *shared.Principal, perms []authz.Permission) {
	m.Metrics.RecordDecision("deny")
	if m.Audit != nil {
		required := make([]string, 0, len(perms))
		for _, p := range perms {
			required = append(required, string(p))
		}
		m.Audit.Record(r.Context(), shared.AuditEvent{
			ActorID:    principal.UserID,
			Action:     "ACCESS_DENIED",
			TargetType: "route",
			TargetID:   r.URL.Path,
			Details:    map[string]any{"required": required},
		})
	}
	httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrPermissionDenied.Error())
}

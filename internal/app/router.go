package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrium-platform/atrium-admin/internal/audit"
	"github.com/atrium-platform/atrium-admin/internal/navigation"
	"github.com/atrium-platform/atrium-admin/internal/observability"
	"github.com/atrium-platform/atrium-admin/internal/rbac"
	"github.com/atrium-platform/atrium-admin/internal/roles"
	"github.com/atrium-platform/atrium-admin/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Pool              *pgxpool.Pool
	RolesHandler      *roles.Handler
	UsersHandler      *users.Handler
	AuditHandler      *audit.Handler
	NavigationHandler *navigation.Handler
	RBACHandler       *rbac.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Atrium defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		params.RolesHandler.MountRoutes(r)
		params.UsersHandler.MountRoutes(r)
		params.AuditHandler.MountRoutes(r)
		params.NavigationHandler.MountRoutes(r)
		params.RBACHandler.MountRoutes(r)
	})

	return r
}

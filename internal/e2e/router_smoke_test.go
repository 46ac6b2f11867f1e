package e2e

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/atrium-platform/atrium-admin/internal/testing/guard"

	"github.com/atrium-platform/atrium-admin/internal/app"
	"github.com/atrium-platform/atrium-admin/internal/audit"
	"github.com/atrium-platform/atrium-admin/internal/authz"
	"github.com/atrium-platform/atrium-admin/internal/navigation"
	"github.com/atrium-platform/atrium-admin/internal/observability"
	"github.com/atrium-platform/atrium-admin/internal/rbac"
	"github.com/atrium-platform/atrium-admin/internal/roles"
	"github.com/atrium-platform/atrium-admin/internal/users"
)

// buildRouter wires the full middleware and route tree without external
// dependencies. Requests that would reach a repository are stopped earlier
// by the authorization layer, so the smoke tests stay hermetic.
func buildRouter(t *testing.T) (http.Handler, *observability.Metrics) {
	t.Helper()

	metrics := observability.NewMetrics()
	calculator := authz.NewCalculator(emptyStore{}, nil).Instrument(metrics, discardLogger())
	mw := rbac.Middleware{Calculator: calculator, Metrics: metrics}

	return app.NewRouter(app.RouterParams{
		Logger:            discardLogger(),
		Config:            &app.Config{},
		RolesHandler:      roles.NewHandler(discardLogger(), roles.NewService(nil, nil, nil, nil, nil), mw),
		UsersHandler:      users.NewHandler(discardLogger(), users.NewService(nil, nil, nil, nil), mw),
		AuditHandler:      audit.NewHandler(discardLogger(), audit.NewService(nil), mw),
		NavigationHandler: navigation.NewHandler(discardLogger(), calculator, navigation.NewHolder(navigation.DefaultRegistry())),
		RBACHandler:       rbac.NewHandler(discardLogger(), calculator),
		Metrics:           metrics,
	}), metrics
}

func TestHealthzWithoutDatabase(t *testing.T) {
	router, _ := buildRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	router, _ := buildRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestAnonymousRequestIsUnauthorized(t *testing.T) {
	router, _ := buildRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous request, got %d", rec.Code)
	}
}

func TestPrincipalWithoutGrantsIsForbidden(t *testing.T) {
	router, _ := buildRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil)
	req.Header.Set("X-Actor-ID", "42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unprivileged principal, got %d", rec.Code)
	}
}

func TestDeniedRequestShowsInDecisionMetrics(t *testing.T) {
	router, metrics := buildRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil)
	req.Header.Set("X-Actor-ID", "42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unprivileged principal, got %d", rec.Code)
	}

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	if !strings.Contains(body, `atrium_authz_decisions_total{outcome="deny"} 1`) {
		t.Fatalf("denied request not counted in decision metrics:\n%s", body)
	}
}

func TestMalformedActorHeaderRejected(t *testing.T) {
	router, _ := buildRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil)
	req.Header.Set("X-Actor-ID", "not-a-number")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed actor header, got %d", rec.Code)
	}
}

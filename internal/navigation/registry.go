package navigation

import (
	"fmt"
	"sync/atomic"
)

// Top-level navigation contexts.
const (
	ContextAdmin  = "admin"
	ContextTenant = "tenant"
)

// Registry is the static, versioned navigation document: one tree per
// top-level context. Loaded once at startup and treated as immutable; a
// changed registry is loaded into a fresh value and swapped atomically.
type Registry struct {
	version string
	trees   map[string][]Node
}

// NewRegistry validates and wraps the given trees.
func NewRegistry(version string, trees map[string][]Node) (*Registry, error) {
	for ctx, tree := range trees {
		for _, n := range tree {
			if err := n.Validate(); err != nil {
				return nil, fmt.Errorf("navigation: context %s: %w", ctx, err)
			}
		}
	}
	return &Registry{version: version, trees: trees}, nil
}

// Version returns the registry document version.
func (r *Registry) Version() string { return r.version }

// Tree returns the navigation tree for a context, or nil when unknown.
func (r *Registry) Tree(context string) []Node {
	return r.trees[context]
}

// Holder carries the process-wide registry reference for atomic swaps.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder seeds a holder with the initial registry.
func NewHolder(reg *Registry) *Holder {
	h := &Holder{}
	h.current.Store(reg)
	return h
}

// Load returns the current registry.
func (h *Holder) Load() *Registry { return h.current.Load() }

// Swap replaces the registry atomically.
func (h *Holder) Swap(reg *Registry) { h.current.Store(reg) }

// DefaultRegistry builds the built-in navigation document.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry("2026-08", map[string][]Node{
		ContextAdmin:  adminTree(),
		ContextTenant: tenantTree(),
	})
	if err != nil {
		panic(err) // static document, validated by tests
	}
	return reg
}

func adminTree() []Node {
	return []Node{
		{
			Key: "dashboard", Label: "Dashboard",
			Path: "/dashboard", Permission: "system.dashboard.read",
		},
		{
			Key: "users", Label: "Users",
			Path: "/users", Permission: "system.users.read",
			Children: []Node{
				{Key: "list", Label: "All Users", Path: "/users?tab=list", Permission: "system.users.read"},
				{Key: "curators", Label: "Curators", Path: "/users?tab=curators", Permission: "system.users.curators.read"},
			},
		},
		{
			Key: "roles", Label: "Roles",
			Path: "/roles", Permission: "system.roles.read",
		},
		{
			Key: "billing", Label: "Billing",
			Children: []Node{
				{Key: "invoices", Label: "Invoices", Path: "/billing?tab=invoices", Permission: "system.billing.invoices.read"},
				{Key: "payments", Label: "Payments", Path: "/billing?tab=payments", Permission: "system.billing.payments.read"},
			},
		},
		{
			Key: "monitoring", Label: "Monitoring",
			Path: "/monitoring",
			Children: []Node{
				{Key: "dashboard", Label: "Overview", Path: "/monitoring?tab=dashboard", Permission: "system.monitoring.dashboard.read"},
				{Key: "alerts", Label: "Alerts", Path: "/monitoring?tab=alerts", Permission: "system.monitoring.alerts.read"},
				{Key: "anomalies", Label: "Anomalies", Path: "/monitoring?tab=anomalies", Permission: "system.monitoring.anomalies.read"},
				{Key: "logs", Label: "Logs", Path: "/monitoring?tab=logs", Permission: "system.monitoring.logs.read"},
			},
		},
		{
			Key: "settings", Label: "Settings",
			Path: "/settings",
			Children: []Node{
				{Key: "general", Label: "General", Path: "/settings?tab=general", Permission: "system.settings.general.read"},
				{Key: "security", Label: "Security", Path: "/settings?tab=security", Permission: "system.settings.security.read"},
				{
					Key: "billing_config", Label: "Billing Configuration",
					Children: []Node{
						{
							Key: "invoice", Label: "Invoice Settings",
							Path:       "/settings?tab=billing_config&subTab=invoice",
							Permission: "system.settings.system_configurations.billing_configurations.invoice.read",
						},
						{
							Key: "payment", Label: "Payment Settings",
							Path:       "/settings?tab=billing_config&subTab=payment",
							Permission: "system.settings.system_configurations.billing_configurations.payment.read",
						},
					},
				},
			},
		},
		{
			Key: "audit", Label: "Audit Trail",
			Path: "/audit", Permission: "system.audit.read",
		},
	}
}

func tenantTree() []Node {
	return []Node{
		{
			Key: "overview", Label: "Overview",
			Path: "/overview", Permission: "tenant.dashboard.read",
		},
		{
			Key: "members", Label: "Members",
			Path: "/members", Permission: "tenant.members.read",
		},
		{
			Key: "reports", Label: "Reports",
			Children: []Node{
				{Key: "usage", Label: "Usage", Path: "/reports?tab=usage", Permission: "tenant.reports.usage.read"},
				{Key: "exports", Label: "Exports", Path: "/reports?tab=exports", Permission: "tenant.reports.export"},
			},
		},
		{
			Key: "billing", Label: "Billing",
			Path: "/billing", Permission: "tenant.billing.read",
		},
	}
}

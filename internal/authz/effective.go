package authz

import (
	"context"
	"fmt"
	"log/slog"
)

// ScopeType distinguishes platform-wide from tenant-bound computations.
type ScopeType string

const (
	ScopeSystem ScopeType = "SYSTEM"
	ScopeTenant ScopeType = "TENANT"
)

// Scope narrows an effective-permission computation. TenantID is only
// meaningful for ScopeTenant.
type Scope struct {
	Type     ScopeType
	TenantID int64
}

// SystemScope returns the platform-wide scope.
func SystemScope() Scope { return Scope{Type: ScopeSystem} }

// TenantScope returns a scope bound to the given tenant.
func TenantScope(tenantID int64) Scope { return Scope{Type: ScopeTenant, TenantID: tenantID} }

// Key renders the scope for cache keys and logging.
func (s Scope) Key() string {
	if s.Type == ScopeTenant {
		return fmt.Sprintf("tenant:%d", s.TenantID)
	}
	return "system"
}

// IdentityStore is the persistence collaborator the calculator reads from.
type IdentityStore interface {
	// GetUserRoleAssignments returns role ids directly assigned to the user
	// within the scope. tenantID is nil for system scope.
	GetUserRoleAssignments(ctx context.Context, userID int64, tenantID *int64) ([]int64, error)
	// GetRolePermissions returns the union of permission grants for the roles.
	GetRolePermissions(ctx context.Context, roleIDs []int64) ([]Permission, error)
	// GetCompositeRoleEdges returns the child role ids the role includes.
	GetCompositeRoleEdges(ctx context.Context, roleID int64) ([]int64, error)
}

// CacheMetrics receives permission cache lookup outcomes.
// *observability.Metrics satisfies it.
type CacheMetrics interface {
	RecordCacheLookup(result string)
}

// Calculator computes effective permission sets. It is stateless apart from
// an optional read-through cache.
type Calculator struct {
	store   IdentityStore
	cache   *Cache
	metrics CacheMetrics
	logger  *slog.Logger
}

// NewCalculator builds a Calculator. cache may be nil.
func NewCalculator(store IdentityStore, cache *Cache) *Calculator {
	return &Calculator{store: store, cache: cache}
}

// Instrument attaches cache metrics and a logger for cache failures. Either
// argument may be nil. Returns the calculator for use at construction.
func (c *Calculator) Instrument(metrics CacheMetrics, logger *slog.Logger) *Calculator {
	c.metrics = metrics
	c.logger = logger
	return c
}

// EffectivePermissions returns the sorted, deduplicated permission set the
// user holds in the scope. Tenant-scoped assignments never leak into a system
// computation and vice versa. A user without assignments gets an empty set.
func (c *Calculator) EffectivePermissions(ctx context.Context, userID int64, scope Scope) ([]Permission, error) {
	if c.cache != nil {
		perms, ok, err := c.cache.Get(ctx, userID, scope)
		if err != nil {
			c.cacheFailure("read", err)
		} else if ok {
			c.recordCacheLookup("hit")
			return perms, nil
		}
		// An unreadable cache counts as a miss so the miss ratio reflects a
		// failing Redis as well as cold entries.
		c.recordCacheLookup("miss")
	}

	perms, err := c.compute(ctx, userID, scope)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, userID, scope, perms); err != nil {
			// Cache write failure is not a computation failure.
			c.cacheFailure("write", err)
		}
	}
	return perms, nil
}

func (c *Calculator) recordCacheLookup(result string) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(result)
	}
}

func (c *Calculator) cacheFailure(op string, err error) {
	if c.logger != nil {
		c.logger.Warn("permission cache unavailable", slog.String("op", op), slog.Any("error", err))
	}
}

// EffectiveSet is EffectivePermissions collected into a Set.
func (c *Calculator) EffectiveSet(ctx context.Context, userID int64, scope Scope) (Set, error) {
	perms, err := c.EffectivePermissions(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	return NewSet(perms...), nil
}

func (c *Calculator) compute(ctx context.Context, userID int64, scope Scope) ([]Permission, error) {
	var tenantID *int64
	if scope.Type == ScopeTenant {
		id := scope.TenantID
		tenantID = &id
	}

	direct, err := c.store.GetUserRoleAssignments(ctx, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("authz: load assignments: %w", err)
	}
	if len(direct) == 0 {
		return []Permission{}, nil
	}

	resolved, err := ResolveRoles(ctx, direct, c.store.GetCompositeRoleEdges)
	if err != nil {
		return nil, fmt.Errorf("authz: resolve role hierarchy: %w", err)
	}
	roleIDs := make([]int64, 0, len(resolved))
	for id := range resolved {
		roleIDs = append(roleIDs, id)
	}

	grants, err := c.store.GetRolePermissions(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("authz: load role permissions: %w", err)
	}
	return NewSet(grants...).Sorted(), nil
}

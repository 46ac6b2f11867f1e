package shared

import "context"

// Principal describes the authenticated actor as asserted by the upstream
// gateway. Authentication itself happens outside this service.
type Principal struct {
	UserID   int64
	TenantID *int64
}

// System reports whether the principal operates platform-wide.
func (p *Principal) System() bool {
	return p != nil && p.TenantID == nil
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil when absent.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

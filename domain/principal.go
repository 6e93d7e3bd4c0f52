package domain

import "context"

// Principal is the authenticated identity attached to a request after
// the bearer token passed validation and the registry cross-checks.
type Principal struct {
	MemberID string
	Role     Role
}

type principalContextKey struct{}

// WithPrincipal returns a context carrying the authenticated principal.
// The principal travels with the request context; there is no global
// security-context holder.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext retrieves the principal set by the
// authentication middleware, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok && p != nil
}

package middleware

import (
	"context"

	"github.com/leafshop/leafshop-backend/pkg/types"
)

type principalKey struct{}

// principal is what OptionalAuth learned about the caller. Each With* call
// stores an updated copy.
type principal struct {
	userID   string
	role     string
	owner    types.CartOwner
	hasOwner bool
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, update func(*principal)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	p := principalFrom(ctx)
	update(&p)
	return context.WithValue(ctx, principalKey{}, p)
}

// UserIDFromContext is empty for guests and anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	return principalFrom(ctx).userID
}

func RoleFromContext(ctx context.Context) string {
	return principalFrom(ctx).role
}

// OwnerFromContext returns the cart owner resolved by OptionalAuth.
func OwnerFromContext(ctx context.Context) (types.CartOwner, bool) {
	p := principalFrom(ctx)
	return p.owner, p.hasOwner
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.userID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.role = role })
}

func WithOwner(ctx context.Context, owner types.CartOwner) context.Context {
	return withPrincipal(ctx, func(p *principal) {
		p.owner = owner
		p.hasOwner = true
	})
}

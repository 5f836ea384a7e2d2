package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain"
)

// ErrNoTenant is returned by tenant-scoped operations when the context
// carries no resolved tenant. Callers must fail closed on it.
var ErrNoTenant = errors.New("no tenant in context")

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// NewContext returns a copy of ctx bound to t. The tenant is stored by value
// so later changes to t are not visible through the context.
//
// A context is bound at most once: rebinding to the same tenant is a no-op,
// rebinding to a different one panics.
func NewContext(ctx context.Context, t Tenant) context.Context {
	if cur, ok := FromContext(ctx); ok {
		if cur.ID != t.ID {
			panic(fmt.Sprintf("tenant: context already bound to tenant %d, refusing %d", cur.ID, t.ID))
		}
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the tenant bound to ctx.
func FromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(contextKey{}).(Tenant)
	return t, ok
}

// IDFromContext returns the ID of the tenant bound to ctx, or ErrNoTenant.
func IDFromContext(ctx context.Context) (int64, error) {
	t, ok := FromContext(ctx)
	if !ok {
		return 0, ErrNoTenant
	}
	return t.ID, nil
}

// Authorize checks that an entity owned by ownerID may be accessed from ctx.
// A mismatch is reported as domain.ErrNotFound so callers never confirm that
// the entity exists under another tenant.
func Authorize(ctx context.Context, ownerID int64) error {
	id, err := IDFromContext(ctx)
	if err != nil {
		return err
	}
	if id != ownerID {
		return domain.ErrNotFound
	}
	return nil
}

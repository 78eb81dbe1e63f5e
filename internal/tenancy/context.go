package tenancy

import "context"

type contextKey struct{}

// WithSnapshot attaches a settings snapshot to the context.
func WithSnapshot(ctx context.Context, s *Snapshot) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the snapshot carried by the context, or nil.
func FromContext(ctx context.Context) *Snapshot {
	s, _ := ctx.Value(contextKey{}).(*Snapshot)
	return s
}

// CurrentTenantKey returns the tenant key of the snapshot carried by the
// context, or empty when no tenant override is active.
func CurrentTenantKey(ctx context.Context) string {
	if s := FromContext(ctx); s != nil {
		return s.TenantKey
	}
	return ""
}

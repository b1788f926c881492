package storage

import "context"

// tenantKey is unexported so no other package can write or shadow the
// tenant value.
type tenantKey struct{}

// SetTenant returns a context carrying the given tenant identifier.
// Stores scope reads and writes to it.
func SetTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// GetTenant returns the tenant identifier carried by ctx, or the empty
// string when none is set (single-tenant mode).
func GetTenant(ctx context.Context) string {
	if v, ok := ctx.Value(tenantKey{}).(string); ok {
		return v
	}
	return ""
}

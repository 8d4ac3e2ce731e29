// Package usercontext propagates the authenticated account id through
// request contexts so services can resolve the caller.
package usercontext

import "context"

type userIDKey struct{}

// WithUserID annotates the context with the acting account id.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the acting account id or empty.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(userIDKey{}).(string); ok {
		return v
	}
	return ""
}

// Package requestid carries a per-request correlation ID through context.
// Audit entries record it so one flow's writes can be grouped.
package requestid

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}

// FromContext fetches the request ID from the context if present.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID sets the request ID onto the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Ensure guarantees a request ID on the context, generating a ULID when missing.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return WithRequestID(ctx, id), id
}

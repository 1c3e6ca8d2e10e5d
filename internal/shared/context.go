package shared

import (
	"context"

	"github.com/google/uuid"
)

type correlationContextKey struct{}

// ContextWithCorrelationID stores a correlation ID in context, minting one
// when the supplied value is empty.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationContextKey{}, id)
}

// CorrelationIDFromContext extracts the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationContextKey{}).(string)
	return id
}

package contextutil

import (
	"context"

	"github.com/devpi/devpi-lockdown/internal/identity"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
)

// Key is a type-safe key for context values
type Key string

// IdentityKey is the key for the authenticated identity
const IdentityKey Key = "context:identity"

// WithIdentity adds an identity to a context
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentity retrieves an identity from a context
func GetIdentity(ctx context.Context) *identity.Identity {
	if id, ok := ctx.Value(IdentityKey).(*identity.Identity); ok {
		return id
	}
	return nil
}

// EnrichContext adds trace identifiers and a request logger to a context
func EnrichContext(ctx context.Context, logger *logging.Logger) context.Context {
	traceID := logging.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = logging.NewTraceID()
		ctx = logging.ContextWithTraceID(ctx, traceID)
	}

	spanID := logging.NewSpanID()
	ctx = logging.ContextWithSpanID(ctx, spanID)

	if logger != nil {
		logger = logger.With(
			logging.TraceIDKey, traceID,
			logging.SpanIDKey, spanID,
		)
		ctx = logging.ContextWithLogger(ctx, logger)
	}

	return ctx
}

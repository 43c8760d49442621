package audit

import (
	"context"
)

// MutationContext carries the actor and session identity of one mutation. It
// is always passed explicitly on the request context, never inferred from
// fields hanging off the entity being mutated.
type MutationContext struct {
	Actor     string
	IP        string
	UserAgent string
	Location  string
	// SessionID identifies the unit of work this mutation executes under.
	// Empty outside an explicit transaction; snapshot lookups then degrade to
	// the session-less cache key.
	SessionID string
}

type mutationCtxKeyType string

const mutationCtxKey mutationCtxKeyType = "audit-mutation-context"

func WithMutationContext(ctx context.Context, mc MutationContext) context.Context {
	return context.WithValue(ctx, mutationCtxKey, mc)
}

func MutationContextFrom(ctx context.Context) (MutationContext, bool) {
	mc, ok := ctx.Value(mutationCtxKey).(MutationContext)
	return mc, ok
}

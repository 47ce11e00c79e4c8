package api

import "context"

type ctxKey int

const actorKey ctxKey = 1

// WithActor stores the authenticated manager id on the request context.
func WithActor(ctx context.Context, managerID string) context.Context {
	return context.WithValue(ctx, actorKey, managerID)
}

// ActorFromContext returns the authenticated manager id, or "" when the
// request was not authenticated.
func ActorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(actorKey).(string)
	return v
}

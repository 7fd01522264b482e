package httpserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const callerKey ctxKey = "jdue.caller"

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID uuid.UUID
	Admin  bool
}

// WithCaller stores the authenticated caller in context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromCtx fetches the caller from context.
func CallerFromCtx(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok && c.UserID != uuid.Nil
}

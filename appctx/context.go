package appctx

import "context"

// ContextKey types the request-scoped values set by the auth and correlation
// middlewares.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

const (
	ContextKeyToken         ContextKey = "Token"
	ContextKeyUserId        ContextKey = "UserId"
	ContextKeyUserEmail     ContextKey = "UserEmail"
	ContextKeyUserRole      ContextKey = "UserRole"
	ContextKeyCorrelationId ContextKey = "CorrelationId"
	ContextKeyIsAdmin       ContextKey = "IsAdmin"
)

// Value returns the value stored under key when it has type T.
func Value[T any](ctx context.Context, key ContextKey) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

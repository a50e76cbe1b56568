package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID   ctxKey = "user_id"
	CtxKeyUsername ctxKey = "username"
)

// UserIDFromContext returns the authenticated user id set by AuthnMiddleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(CtxKeyUserID).(int64)
	return v, ok
}

// UsernameFromContext returns the authenticated username set by AuthnMiddleware.
func UsernameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyUsername).(string)
	return v
}

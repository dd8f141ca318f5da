package types

import "context"

type contextKey string

const (
	CtxRequestID contextKey = "ctx_request_id"
)

// SetRequestID returns a context carrying the request id set by the boundary
// layer. Request identity travels through the context, never through global
// state.
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

// GetRequestID returns the request id from the context, or empty
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(CtxRequestID).(string); ok {
		return v
	}
	return ""
}

package eventlog

import "context"

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id, so the HTTP layer and the
// event records agree on one id per request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

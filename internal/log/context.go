package log

import "context"

type ctxKey struct{}

// WithContext returns a new context carrying the given Logger.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Logger stored in ctx, or a nop logger if none is present.
func FromContext(ctx context.Context) Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(Logger); ok && l != nil {
			return l
		}
	}
	return Nop()
}

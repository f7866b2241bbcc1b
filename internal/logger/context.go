package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxLoggerKey struct{}

// ContextWithLogger attaches a logger to the context
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, l)
}

// FromContext retrieves the logger from context, falling back to the global logger
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLoggerKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return zap.L()
}

// L is a shorthand for FromContext (matches zap.L() pattern)
func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx)
}

// With creates a child context with additional logger fields
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return ContextWithLogger(ctx, FromContext(ctx).With(fields...))
}

// WithRequest tags the context logger with the caller identity of a gated request
func WithRequest(ctx context.Context, userID, organizationID, toolName string) context.Context {
	fields := []zap.Field{zap.String("user_id", userID), zap.String("tool", toolName)}
	if organizationID != "" {
		fields = append(fields, zap.String("organization_id", organizationID))
	}
	return With(ctx, fields...)
}

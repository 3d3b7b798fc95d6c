package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	orderIDKey   ctxKey = "order_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithOrderID tags every log line produced through FromCtx with the order
// being processed.
func WithOrderID(ctx context.Context, orderID string) context.Context {
	return context.WithValue(ctx, orderIDKey, orderID)
}

func OrderIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(orderIDKey).(string); ok {
		return v
	}
	return ""
}

// FromCtx returns the global logger with request_id and order_id attached
// when the context carries them.
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if orderID := OrderIDFrom(ctx); orderID != "" {
		l = l.With(zap.String("order_id", orderID))
	}
	return l
}

package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	messageIDKey
	invoiceIDKey
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	return fromContextOr(ctx, zap.NewNop())
}

func fromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// WithMessage scopes ctx and its logger to one queue delivery.
func WithMessage(ctx context.Context, logger *zap.Logger, messageID string, deliveryCount int) (context.Context, *zap.Logger) {
	return annotate(ctx, messageIDKey, messageID, logger.With(
		zap.String("message_id", messageID),
		zap.Int("delivery_count", deliveryCount),
	))
}

// WithInvoiceID scopes ctx and its logger to one invoice.
func WithInvoiceID(ctx context.Context, logger *zap.Logger, invoiceID string) (context.Context, *zap.Logger) {
	return annotate(ctx, invoiceIDKey, invoiceID, logger.With(zap.String("invoice_id", invoiceID)))
}

func annotate(ctx context.Context, key ctxKey, value string, enriched *zap.Logger) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	return WithContext(ctx, enriched), enriched
}

// GetMessageID returns the queue message id recorded by WithMessage
func GetMessageID(ctx context.Context) string {
	id, _ := ctx.Value(messageIDKey).(string)
	return id
}

// GetInvoiceID returns the invoice id recorded by WithInvoiceID
func GetInvoiceID(ctx context.Context) string {
	id, _ := ctx.Value(invoiceIDKey).(string)
	return id
}

// WithTraceContext adds trace_id and span_id from the context's span.
// Without a valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// ContextLogger is a zap logger already correlated with the span in a context.
type ContextLogger struct {
	*zap.Logger
}

// L correlates the logger stored in ctx.
//
//	logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *ContextLogger {
	return WithLogger(ctx, FromContext(ctx))
}

// Ctx prefers the logger stored in ctx, so message and invoice fields carry
// through, and falls back to the component's own logger.
func Ctx(ctx context.Context, fallback *zap.Logger) *ContextLogger {
	return WithLogger(ctx, fromContextOr(ctx, fallback))
}

// WithLogger correlates logger instead of the one stored in ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextLogger{Logger: WithTraceContext(ctx, logger)}
}

// With creates a child ContextLogger with additional fields.
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{Logger: cl.Logger.With(fields...)}
}

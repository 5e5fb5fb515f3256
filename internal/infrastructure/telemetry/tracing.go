package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer name used for pipeline spans
const TracerName = "invoicesync"

// StartSpan starts an internal span from the global tracer provider.
// The caller must call span.End().
//
//	ctx, span := telemetry.StartSpan(ctx, "invoice.sync", telemetry.SpanAttrInvoiceID.String(id))
//	defer span.End()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpanWithKind(ctx, name, trace.SpanKindInternal, attrs...)
}

// StartSpanWithKind starts a span of the given kind.
func StartSpanWithKind(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(kind)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, opts...)
}

// RecordError records err on the span and marks the span as failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetError marks the span as failed without an error value.
func SetError(span trace.Span, description string) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Error, description)
}

// SetOK marks the span as successful.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// Span attribute keys.
const (
	SpanAttrMessageID     = attribute.Key("messaging.message.id")
	SpanAttrDeliveryCount = attribute.Key("messaging.delivery_count")
	SpanAttrInvoiceID     = attribute.Key("invoice.id")
	SpanAttrTarget        = attribute.Key("invoice.target")
	SpanAttrSyncStatus    = attribute.Key("invoice.sync_status")
	SpanAttrExternalID    = attribute.Key("invoice.external_id")
	SpanAttrAction        = attribute.Key("messaging.action")
)

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric attribute keys
const (
	AttrAction = attribute.Key("action")
	AttrReason = attribute.Key("reason")
	AttrTarget = attribute.Key("target")
	AttrStatus = attribute.Key("status")
)

// DeliveryDurationBuckets covers accounting API round trips, in seconds.
var DeliveryDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// ErrMeterNil is returned when a metrics constructor is given a nil meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// PipelineMetrics records what the invoice pipeline does with each message.
type PipelineMetrics struct {
	messages metric.Int64Counter
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// NewPipelineMetrics creates the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	messages, err := meter.Int64Counter("invoicesync_messages_total",
		metric.WithDescription("Queue messages settled by the pipeline, by action and dead-letter reason"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: messages counter: %w", err)
	}

	outcomes, err := meter.Int64Counter("invoicesync_sync_outcomes_total",
		metric.WithDescription("Delivery attempts by target system and sync status"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: outcomes counter: %w", err)
	}

	duration, err := meter.Float64Histogram("invoicesync_sync_duration_seconds",
		metric.WithDescription("Duration of one transform and delivery attempt"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DeliveryDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: duration histogram: %w", err)
	}

	return &PipelineMetrics{messages: messages, outcomes: outcomes, duration: duration}, nil
}

// NewNoopPipelineMetrics returns metrics that record nothing.
func NewNoopPipelineMetrics() *PipelineMetrics {
	m, _ := NewPipelineMetrics(noop.NewMeterProvider().Meter(TracerName))
	return m
}

// RecordAction counts a settled message. reason is empty unless the message
// was dead-lettered.
func (m *PipelineMetrics) RecordAction(ctx context.Context, action, reason string) {
	attrs := []attribute.KeyValue{AttrAction.String(action)}
	if reason != "" {
		attrs = append(attrs, AttrReason.String(reason))
	}
	m.messages.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOutcome counts a classified delivery attempt and its duration.
func (m *PipelineMetrics) RecordOutcome(ctx context.Context, target, status string, elapsed time.Duration) {
	set := metric.WithAttributeSet(attribute.NewSet(AttrTarget.String(target), AttrStatus.String(status)))
	m.outcomes.Add(ctx, 1, set)
	m.duration.Record(ctx, elapsed.Seconds(), set)
}

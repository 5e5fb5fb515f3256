// Package pipeline drives queue messages through decode, sync and settlement.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/infrastructure/queue"
	"github.com/erp/invoicesync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultActionTimeout bounds each queue action when none is configured
const DefaultActionTimeout = 10 * time.Second

// Syncer performs one delivery attempt for a decoded invoice
type Syncer interface {
	Sync(ctx context.Context, src *invoice.SourceInvoice) (invoice.SyncOutcome, error)
}

// Result reports how a message was settled
type Result struct {
	Decision invoice.Decision
	// ActionErr is set when the queue action itself failed; the broker will
	// redeliver the message once its lease expires.
	ActionErr error
}

// Handler processes a single message end to end
type Handler struct {
	broker        queue.Broker
	syncer        Syncer
	policy        invoice.RetryPolicy
	actionTimeout time.Duration
	metrics       *telemetry.PipelineMetrics
	logger        *zap.Logger
}

// HandlerConfig holds handler settings
type HandlerConfig struct {
	MaxDeliveryCount int
	ActionTimeout    time.Duration
}

// NewHandler creates a new Handler. metrics and zapLogger may be nil.
func NewHandler(broker queue.Broker, syncer Syncer, cfg HandlerConfig, metrics *telemetry.PipelineMetrics, zapLogger *zap.Logger) *Handler {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}
	if metrics == nil {
		metrics = telemetry.NewNoopPipelineMetrics()
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &Handler{
		broker:        broker,
		syncer:        syncer,
		policy:        invoice.NewRetryPolicy(cfg.MaxDeliveryCount),
		actionTimeout: cfg.ActionTimeout,
		metrics:       metrics,
		logger:        zapLogger,
	}
}

// Handle decodes msg, syncs it, and settles it according to the retry policy.
// Exactly one queue action is issued per call.
func (h *Handler) Handle(ctx context.Context, msg *queue.Message) Result {
	ctx, span := telemetry.StartSpanWithKind(ctx, "invoice.process", trace.SpanKindConsumer,
		telemetry.SpanAttrMessageID.String(msg.ID),
		telemetry.SpanAttrDeliveryCount.Int(msg.DeliveryCount),
	)
	defer span.End()

	ctx, log := logger.WithMessage(ctx, h.logger, msg.ID, msg.DeliveryCount)
	if id := msg.InvoiceID(); id != "" {
		ctx, log = logger.WithInvoiceID(ctx, log, id)
	}
	logger.WithLogger(ctx, log).Debug("Processing invoice message")

	attempt := h.attempt(ctx, msg)
	decision := h.policy.Decide(attempt)
	span.SetAttributes(telemetry.SpanAttrAction.String(decision.Action.String()))

	actionErr := h.settle(ctx, msg, decision)
	h.metrics.RecordAction(ctx, decision.Action.String(), decision.Reason)

	cl := logger.L(ctx)
	if actionErr != nil {
		telemetry.RecordError(span, actionErr)
		cl.Error("Queue action failed; message will be redelivered after its lease expires",
			zap.String("action", decision.Action.String()),
			zap.Error(actionErr),
		)
	} else {
		h.logDecision(cl, attempt, decision)
		if decision.Action == invoice.ActionComplete {
			telemetry.SetOK(span)
		} else {
			telemetry.SetError(span, decision.Action.String())
		}
	}

	return Result{Decision: decision, ActionErr: actionErr}
}

// attempt runs decode and sync, capturing every failure mode
func (h *Handler) attempt(ctx context.Context, msg *queue.Message) (attempt invoice.DeliveryAttempt) {
	attempt.DeliveryCount = msg.DeliveryCount

	src, err := invoice.Decode(msg.Body)
	if err != nil {
		attempt.DecodeErr = err
		return attempt
	}
	// the body is authoritative over the message property
	if src.InvoiceID != "" && src.InvoiceID != logger.GetInvoiceID(ctx) {
		ctx, _ = logger.WithInvoiceID(ctx, logger.FromContext(ctx), src.InvoiceID)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.L(ctx).Error("Panic escaped invoice sync", zap.Any("panic", r), zap.Stack("stack"))
			attempt.Err = fmt.Errorf("panic during sync: %v", r)
			attempt.Outcome = nil
		}
	}()

	outcome, err := h.syncer.Sync(ctx, src)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			attempt.Cancelled = true
			return attempt
		}
		attempt.Err = err
		return attempt
	}
	attempt.Outcome = &outcome
	return attempt
}

// settle issues the queue action on a context that survives shutdown, so a
// cancelled attempt is still abandoned rather than left to the lease.
func (h *Handler) settle(ctx context.Context, msg *queue.Message, decision invoice.Decision) error {
	actionCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.actionTimeout)
	defer cancel()

	switch decision.Action {
	case invoice.ActionComplete:
		return h.broker.Complete(actionCtx, msg)
	case invoice.ActionAbandon:
		return h.broker.Abandon(actionCtx, msg)
	case invoice.ActionDeadLetter:
		return h.broker.DeadLetter(actionCtx, msg, decision.Reason, decision.Description)
	default:
		return fmt.Errorf("pipeline: unknown action %q", decision.Action)
	}
}

func (h *Handler) logDecision(cl *logger.ContextLogger, attempt invoice.DeliveryAttempt, decision invoice.Decision) {
	switch decision.Action {
	case invoice.ActionComplete:
		cl.Info("Invoice synced", zap.String("external_id", attempt.Outcome.ExternalID))
	case invoice.ActionAbandon:
		fields := []zap.Field{zap.Bool("cancelled", attempt.Cancelled)}
		if attempt.Outcome != nil {
			fields = append(fields, zap.String("error", attempt.Outcome.ErrorMessage))
		}
		if attempt.Err != nil {
			fields = append(fields, zap.Error(attempt.Err))
		}
		cl.Warn("Invoice sync will be retried", fields...)
	case invoice.ActionDeadLetter:
		cl.Error("Invoice message dead-lettered",
			zap.String("reason", decision.Reason),
			zap.String("description", decision.Description),
		)
	}
}

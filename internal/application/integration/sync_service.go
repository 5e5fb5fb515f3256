package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SyncService performs one transform-and-deliver attempt per invoice
type SyncService struct {
	transformer invoice.Transformer
	client      invoice.DeliveryClient
	target      invoice.TargetSystem
	metrics     *telemetry.PipelineMetrics
	logger      *zap.Logger
}

// NewSyncService creates a new SyncService. metrics and zapLogger may be nil.
func NewSyncService(
	transformer invoice.Transformer,
	client invoice.DeliveryClient,
	target invoice.TargetSystem,
	metrics *telemetry.PipelineMetrics,
	zapLogger *zap.Logger,
) *SyncService {
	if metrics == nil {
		metrics = telemetry.NewNoopPipelineMetrics()
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &SyncService{
		transformer: transformer,
		client:      client,
		target:      target,
		metrics:     metrics,
		logger:      zapLogger,
	}
}

// Sync transforms src and delivers it once. Failures of any kind, panics
// included, come back as a Failed outcome. The error is non-nil only when
// ctx was cancelled before the invoice was accepted, in which case the
// outcome must be ignored.
func (s *SyncService) Sync(ctx context.Context, src *invoice.SourceInvoice) (outcome invoice.SyncOutcome, err error) {
	ctx, span := telemetry.StartSpan(ctx, "invoice.sync",
		telemetry.SpanAttrTarget.String(s.target.String()),
	)
	defer span.End()
	if src != nil {
		span.SetAttributes(telemetry.SpanAttrInvoiceID.String(src.InvoiceID))
	}
	log := logger.Ctx(ctx, s.logger)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic during invoice sync", zap.Any("panic", r), zap.Stack("stack"))
			outcome = invoice.Failed(fmt.Sprintf("Unexpected error: %v", r))
			err = nil
		}
		if err != nil {
			telemetry.RecordError(span, err)
			return
		}
		span.SetAttributes(telemetry.SpanAttrSyncStatus.String(outcome.Status.String()))
		if outcome.Success {
			telemetry.SetOK(span)
		} else {
			telemetry.SetError(span, outcome.ErrorMessage)
		}
		s.metrics.RecordOutcome(ctx, s.target.String(), outcome.Status.String(), time.Since(start))
	}()

	external, tErr := s.transformer.Transform(ctx, src)
	if tErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return invoice.SyncOutcome{}, ctxErr
		}
		log.Warn("Invoice transformation failed", zap.Error(tErr))
		if errors.Is(tErr, invoice.ErrInvalidInvoice) {
			return invoice.Failed(fmt.Sprintf("Invalid invoice: %v", tErr)), nil
		}
		return invoice.Failed(fmt.Sprintf("Unexpected error: %v", tErr)), nil
	}

	outcome = s.client.CreateInvoice(ctx, external)
	// an accepted invoice stays accepted even if shutdown raced the response
	if ctxErr := ctx.Err(); ctxErr != nil && !outcome.Success {
		return invoice.SyncOutcome{}, ctxErr
	}

	log.Debug("Invoice sync attempt finished",
		zap.String("status", outcome.Status.String()),
		zap.String("external_id", outcome.ExternalID),
	)
	return outcome, nil
}

package accounting

import (
	"context"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// QuickBooksNotImplemented is the outcome message returned for every invoice
// routed to QuickBooks.
const QuickBooksNotImplemented = "quickbooks integration not yet implemented"

// QuickBooksConfig holds configuration for the QuickBooks Online API
type QuickBooksConfig struct {
	BaseURL   string
	CompanyID string
}

// QuickBooksAdapter is a placeholder client. Every attempt is a permanent
// failure so that messages dead-letter instead of retrying forever.
type QuickBooksAdapter struct {
	config *QuickBooksConfig
	logger *zap.Logger
}

// Ensure QuickBooksAdapter implements invoice.DeliveryClient
var _ invoice.DeliveryClient = (*QuickBooksAdapter)(nil)

// NewQuickBooksAdapter creates a new QuickBooks adapter
func NewQuickBooksAdapter(cfg *QuickBooksConfig, zapLogger *zap.Logger) *QuickBooksAdapter {
	if cfg == nil {
		cfg = &QuickBooksConfig{}
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &QuickBooksAdapter{
		config: cfg,
		logger: zapLogger,
	}
}

// Target returns the accounting system this adapter serves
func (a *QuickBooksAdapter) Target() invoice.TargetSystem {
	return invoice.TargetQuickBooks
}

// CreateInvoice always returns a failed outcome.
func (a *QuickBooksAdapter) CreateInvoice(ctx context.Context, inv *invoice.ExternalInvoice) invoice.SyncOutcome {
	logger.Ctx(ctx, a.logger).Warn("QuickBooks delivery requested but not implemented",
		zap.String("target", invoice.TargetQuickBooks.String()),
		zap.String("reference", inv.Reference),
	)
	return invoice.Failed(QuickBooksNotImplemented)
}

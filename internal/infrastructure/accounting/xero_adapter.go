package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/infrastructure/secrets"
	"github.com/erp/invoicesync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// maxResponseSize bounds how much of a response body is read
	maxResponseSize = 10 * 1024 * 1024
	// maxErrorBodyLength bounds the response excerpt kept in outcome messages
	maxErrorBodyLength = 512
)

// XeroAdapter posts invoices to the Xero Accounting API
type XeroAdapter struct {
	config     *XeroConfig
	secrets    secrets.Store
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure XeroAdapter implements invoice.DeliveryClient
var _ invoice.DeliveryClient = (*XeroAdapter)(nil)

// NewXeroAdapter creates a new Xero adapter. httpClient may be nil.
func NewXeroAdapter(cfg *XeroConfig, store secrets.Store, httpClient *http.Client, zapLogger *zap.Logger) (*XeroAdapter, error) {
	if cfg == nil {
		return nil, ErrXeroConfigMissingTenantID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrMissingSecretStore
	}
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	return &XeroAdapter{
		config:     cfg,
		secrets:    store,
		httpClient: httpClient,
		logger:     zapLogger,
	}, nil
}

// Target returns the accounting system this adapter serves
func (a *XeroAdapter) Target() invoice.TargetSystem {
	return invoice.TargetXero
}

// CreateInvoice posts inv to Xero and classifies the response.
func (a *XeroAdapter) CreateInvoice(ctx context.Context, inv *invoice.ExternalInvoice) invoice.SyncOutcome {
	ctx, span := telemetry.StartSpanWithKind(ctx, "xero.create_invoice", trace.SpanKindClient,
		telemetry.SpanAttrInvoiceID.String(inv.Reference),
		telemetry.SpanAttrTarget.String(invoice.TargetXero.String()),
	)
	defer span.End()
	log := logger.Ctx(ctx, a.logger).
		With(zap.String("target", invoice.TargetXero.String()))

	outcome := a.createInvoice(ctx, inv)
	span.SetAttributes(telemetry.SpanAttrSyncStatus.String(outcome.Status.String()))
	if outcome.Success {
		span.SetAttributes(telemetry.SpanAttrExternalID.String(outcome.ExternalID))
		telemetry.SetOK(span)
		log.Info("Invoice created in Xero", zap.String("external_id", outcome.ExternalID))
	} else {
		telemetry.SetError(span, outcome.ErrorMessage)
		log.Warn("Xero invoice creation failed",
			zap.String("status", outcome.Status.String()),
			zap.String("error", outcome.ErrorMessage),
		)
	}
	return outcome
}

func (a *XeroAdapter) createInvoice(ctx context.Context, inv *invoice.ExternalInvoice) invoice.SyncOutcome {
	token, err := a.accessToken(ctx)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return invoice.Failed(fmt.Sprintf("Xero access token %q not found", a.config.TokenSecretName))
		}
		return invoice.Retryable(fmt.Sprintf("Failed to retrieve Xero access token: %v", err))
	}

	body, err := json.Marshal(toXeroRequest(inv))
	if err != nil {
		return invoice.Failed(fmt.Sprintf("Failed to serialize invoice: %v", err))
	}

	status, respBody, err := a.doRequest(ctx, token, body)
	if err != nil {
		return invoice.Retryable(err.Error())
	}
	return classifyXeroResponse(status, respBody)
}

func (a *XeroAdapter) accessToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.SecretTimeout)
	defer cancel()
	return a.secrets.GetSecret(ctx, a.config.TokenSecretName)
}

// doRequest performs the POST. Errors are transport failures only; any HTTP
// status is returned for classification.
func (a *XeroAdapter) doRequest(ctx context.Context, token string, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.InvoicesURL(), bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Xero-tenant-id", a.config.TenantID)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("%w: request timed out after %s", ErrDeliveryUnavailable, a.config.Timeout)
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", ErrDeliveryUnavailable, err)
	}
	return resp.StatusCode, respBody, nil
}

// classifyXeroResponse maps an HTTP response to an outcome. Only throttling
// and gateway unavailability are retried; every other rejection is permanent.
func classifyXeroResponse(status int, body []byte) invoice.SyncOutcome {
	if status >= 200 && status < 300 {
		var resp XeroInvoicesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return invoice.Failed(fmt.Sprintf("Unable to parse Xero response: %v", err))
		}
		if len(resp.Invoices) == 0 || resp.Invoices[0].InvoiceID == "" {
			return invoice.Failed("Xero response contained no invoice record")
		}
		return invoice.Synced(resp.Invoices[0].InvoiceID)
	}

	message := fmt.Sprintf("Xero returned HTTP %d: %s", status, truncate(string(body), maxErrorBodyLength))
	if IsRetryableStatus(status) {
		return invoice.Retryable(message)
	}
	return invoice.Failed(message)
}

// IsRetryableStatus reports whether an HTTP status is transient.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

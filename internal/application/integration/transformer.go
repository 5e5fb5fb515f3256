package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/go-playground/validator/v10"
)

// TargetProfile carries the per-target rules applied during transformation
type TargetProfile struct {
	Target             invoice.TargetSystem
	UpperCaseCurrency  bool
	DefaultAccountCode string
}

// Built-in profiles
var (
	XeroProfile = TargetProfile{
		Target:             invoice.TargetXero,
		DefaultAccountCode: "200",
	}
	QuickBooksProfile = TargetProfile{
		Target:             invoice.TargetQuickBooks,
		UpperCaseCurrency:  true,
		DefaultAccountCode: "1",
	}
)

// ProfileFor returns the profile for target. A non-empty accountCode
// replaces the profile's default ledger code.
func ProfileFor(target invoice.TargetSystem, accountCode string) (TargetProfile, error) {
	var profile TargetProfile
	switch target {
	case invoice.TargetXero:
		profile = XeroProfile
	case invoice.TargetQuickBooks:
		profile = QuickBooksProfile
	default:
		return TargetProfile{}, fmt.Errorf("%w: %s", invoice.ErrUnknownTarget, target)
	}
	if code := strings.TrimSpace(accountCode); code != "" {
		profile.DefaultAccountCode = code
	}
	return profile, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// sourceValidator returns the shared validator with the notblank rule
func sourceValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		err := validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		if err != nil {
			panic(fmt.Sprintf("integration: register notblank validation: %v", err))
		}
	})
	return validate
}

// InvoiceTransformer converts source invoices into the target-neutral shape
type InvoiceTransformer struct {
	mapper  invoice.CustomerMapper
	profile TargetProfile
}

// Ensure InvoiceTransformer implements invoice.Transformer
var _ invoice.Transformer = (*InvoiceTransformer)(nil)

// NewInvoiceTransformer creates a transformer for the given profile
func NewInvoiceTransformer(mapper invoice.CustomerMapper, profile TargetProfile) *InvoiceTransformer {
	return &InvoiceTransformer{mapper: mapper, profile: profile}
}

// Profile returns the transformer's target profile
func (t *InvoiceTransformer) Profile() TargetProfile {
	return t.profile
}

// Transform builds the ExternalInvoice for src. Lines keep their order and
// amounts are copied unchanged; the only failure is a missing invoice id.
func (t *InvoiceTransformer) Transform(ctx context.Context, src *invoice.SourceInvoice) (*invoice.ExternalInvoice, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: invoice is nil", invoice.ErrInvalidInvoice)
	}
	if err := sourceValidator().Struct(src); err != nil {
		return nil, fmt.Errorf("%w: InvoiceId is required: %v", invoice.ErrInvalidInvoice, err)
	}

	currency := src.CurrencyCode
	if t.profile.UpperCaseCurrency {
		currency = strings.ToUpper(currency)
	}

	lines := make([]invoice.ExternalLine, len(src.Lines))
	for i, line := range src.Lines {
		lines[i] = invoice.ExternalLine{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitAmount:  line.UnitPrice,
			LineTotal:   line.LineAmount,
			AccountCode: t.profile.DefaultAccountCode,
		}
	}

	return &invoice.ExternalInvoice{
		Reference: src.InvoiceID,
		ContactID: t.mapper.Resolve(ctx, src.CustomerAccount),
		Date:      src.InvoiceDate,
		DueDate:   src.DueDate,
		Currency:  currency,
		Total:     src.TotalAmount,
		LineItems: lines,
	}, nil
}

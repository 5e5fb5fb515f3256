package accounting

import (
	"encoding/json"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// Xero invoice types
const (
	XeroInvoiceTypeReceivable = "ACCREC"
)

// XeroInvoicesRequest is the body of POST /Invoices
type XeroInvoicesRequest struct {
	Invoices []XeroInvoice `json:"Invoices"`
}

// XeroInvoice is one invoice in Xero's wire format
type XeroInvoice struct {
	Type         string         `json:"Type"`
	Contact      XeroContact    `json:"Contact"`
	Date         string         `json:"Date"`
	DueDate      string         `json:"DueDate"`
	Reference    string         `json:"Reference"`
	CurrencyCode string         `json:"CurrencyCode,omitempty"`
	LineItems    []XeroLineItem `json:"LineItems"`
}

// XeroContact references an existing Xero contact
type XeroContact struct {
	ContactID string `json:"ContactID"`
}

// XeroLineItem is one invoice line. Amounts are JSON numbers.
type XeroLineItem struct {
	Description string      `json:"Description"`
	Quantity    json.Number `json:"Quantity"`
	UnitAmount  json.Number `json:"UnitAmount"`
	LineAmount  json.Number `json:"LineAmount"`
	AccountCode string      `json:"AccountCode"`
}

// XeroInvoicesResponse is the body returned by POST /Invoices
type XeroInvoicesResponse struct {
	Invoices []XeroInvoiceRecord `json:"Invoices"`
}

// XeroInvoiceRecord identifies a created invoice
type XeroInvoiceRecord struct {
	InvoiceID     string `json:"InvoiceID"`
	InvoiceNumber string `json:"InvoiceNumber"`
}

// toXeroRequest converts an external invoice to Xero's wire format
func toXeroRequest(inv *invoice.ExternalInvoice) XeroInvoicesRequest {
	lines := make([]XeroLineItem, 0, len(inv.LineItems))
	for _, line := range inv.LineItems {
		lines = append(lines, XeroLineItem{
			Description: line.Description,
			Quantity:    number(line.Quantity),
			UnitAmount:  number(line.UnitAmount),
			LineAmount:  number(line.LineTotal),
			AccountCode: line.AccountCode,
		})
	}

	return XeroInvoicesRequest{
		Invoices: []XeroInvoice{{
			Type:         XeroInvoiceTypeReceivable,
			Contact:      XeroContact{ContactID: inv.ContactID},
			Date:         inv.Date.Format(invoice.DateLayout),
			DueDate:      inv.DueDate.Format(invoice.DateLayout),
			Reference:    inv.Reference,
			CurrencyCode: inv.Currency,
			LineItems:    lines,
		}},
	}
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

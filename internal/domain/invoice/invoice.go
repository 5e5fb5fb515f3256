package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Errors returned while decoding or validating invoices.
var (
	ErrMalformedPayload = errors.New("invoice: malformed payload")
	ErrEmptyPayload     = errors.New("invoice: empty payload")
	ErrInvalidInvoice   = errors.New("invoice: invalid invoice")
	ErrInvalidDate      = errors.New("invoice: invalid date")
)

// DateLayout is the wire layout used when a Date is written out.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order when parsing. The system of record emits
// timestamps without an offset, which are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	DateLayout,
}

// Date is a calendar date carried on invoices.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses s using any of the accepted layouts.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// String formats the date as yyyy-MM-dd.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SourceInvoice is an invoice as posted by the system of record.
// Line sums are not checked against TotalAmount.
type SourceInvoice struct {
	InvoiceID       string          `json:"InvoiceId" validate:"required,notblank"`
	CustomerAccount string          `json:"CustomerAccount"`
	InvoiceDate     Date            `json:"InvoiceDate"`
	DueDate         Date            `json:"DueDate"`
	CurrencyCode    string          `json:"CurrencyCode"`
	TotalAmount     decimal.Decimal `json:"TotalAmount"`
	Lines           []SourceLine    `json:"Lines"`
}

// SourceLine is one line of a SourceInvoice. LineAmount is supplied by the
// source and never derived from Quantity and UnitPrice.
type SourceLine struct {
	ItemID      string          `json:"ItemId"`
	Description string          `json:"Description"`
	Quantity    decimal.Decimal `json:"Quantity"`
	UnitPrice   decimal.Decimal `json:"UnitPrice"`
	LineAmount  decimal.Decimal `json:"LineAmount"`
}

// ExternalInvoice is the target-neutral shape handed to a DeliveryClient.
// Reference always equals the source InvoiceID and acts as the idempotency
// key on the accounting side.
type ExternalInvoice struct {
	Reference string          `json:"Reference"`
	ContactID string          `json:"ContactId"`
	Date      Date            `json:"Date"`
	DueDate   Date            `json:"DueDate"`
	Currency  string          `json:"Currency"`
	Total     decimal.Decimal `json:"Total"`
	LineItems []ExternalLine  `json:"LineItems"`
}

// ExternalLine is one line of an ExternalInvoice.
type ExternalLine struct {
	Description string          `json:"Description"`
	Quantity    decimal.Decimal `json:"Quantity"`
	UnitAmount  decimal.Decimal `json:"UnitAmount"`
	LineTotal   decimal.Decimal `json:"LineTotal"`
	AccountCode string          `json:"AccountCode"`
}

// Decode parses a queue message body into a SourceInvoice.
// A body that decodes to nothing (empty or JSON null) is an error.
func Decode(body []byte) (*SourceInvoice, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyPayload
	}

	var inv SourceInvoice
	if err := json.Unmarshal(trimmed, &inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &inv, nil
}

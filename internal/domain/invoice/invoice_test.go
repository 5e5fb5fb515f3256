package invoice

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Date Tests
// ---------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{"date only", "2024-03-15", NewDate(2024, time.March, 15), false},
		{"zone-less timestamp", "2024-03-15T00:00:00", NewDate(2024, time.March, 15), false},
		{"zone-less with fraction", "2024-03-15T00:00:00.0000000", NewDate(2024, time.March, 15), false},
		{"rfc3339 utc", "2024-03-15T00:00:00Z", NewDate(2024, time.March, 15), false},
		{"garbage", "15/03/2024", Date{}, true},
		{"empty", "", Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Time), "got %s", got)
		})
	}
}

func TestDate_JSON(t *testing.T) {
	d := NewDate(2024, time.January, 5)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-05"`, string(data))

	var parsed Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-01-05T10:30:00"`), &parsed))
	assert.Equal(t, "2024-01-05", parsed.String())

	require.NoError(t, json.Unmarshal([]byte(`null`), &parsed))
	assert.True(t, parsed.IsZero())

	assert.ErrorIs(t, json.Unmarshal([]byte(`42`), &parsed), ErrInvalidDate)
}

// ---------------------------------------------------------------------------
// Decode Tests
// ---------------------------------------------------------------------------

func TestDecode(t *testing.T) {
	body := []byte(`{
		"InvoiceId": "INV-1",
		"CustomerAccount": "CUST-A",
		"InvoiceDate": "2024-03-01T00:00:00",
		"DueDate": "2024-03-31T00:00:00",
		"CurrencyCode": "nzd",
		"TotalAmount": 20.00,
		"Lines": [
			{"ItemId": "SKU-1", "Description": "Widget", "Quantity": 2, "UnitPrice": 10, "LineAmount": 20}
		]
	}`)

	inv, err := Decode(body)
	require.NoError(t, err)

	assert.Equal(t, "INV-1", inv.InvoiceID)
	assert.Equal(t, "CUST-A", inv.CustomerAccount)
	assert.Equal(t, "2024-03-01", inv.InvoiceDate.String())
	assert.Equal(t, "2024-03-31", inv.DueDate.String())
	assert.Equal(t, "nzd", inv.CurrencyCode)
	assert.True(t, decimal.NewFromInt(20).Equal(inv.TotalAmount))
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "SKU-1", inv.Lines[0].ItemID)
	assert.True(t, decimal.NewFromInt(2).Equal(inv.Lines[0].Quantity))
	assert.True(t, decimal.NewFromInt(20).Equal(inv.Lines[0].LineAmount))
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"truncated json", `{not json`, ErrMalformedPayload},
		{"wrong type", `{"TotalAmount": {}}`, ErrMalformedPayload},
		{"json null", `null`, ErrEmptyPayload},
		{"empty body", ``, ErrEmptyPayload},
		{"whitespace", "  \n", ErrEmptyPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := Decode([]byte(tt.body))
			assert.Nil(t, inv)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// ---------------------------------------------------------------------------
// TargetSystem / SyncStatus Tests
// ---------------------------------------------------------------------------

func TestParseTargetSystem(t *testing.T) {
	tests := []struct {
		input   string
		want    TargetSystem
		wantErr bool
	}{
		{"xero", TargetXero, false},
		{"XERO", TargetXero, false},
		{" QuickBooks ", TargetQuickBooks, false},
		{"sage", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTargetSystem(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSyncStatus_IsValid(t *testing.T) {
	assert.True(t, StatusSynced.IsValid())
	assert.True(t, StatusRetryable.IsValid())
	assert.True(t, StatusFailed.IsValid())
	assert.False(t, SyncStatus("PENDING").IsValid())
	assert.False(t, SyncStatus("").IsValid())
}

func TestOutcomeConstructors(t *testing.T) {
	ok := Synced("ext-1")
	assert.True(t, ok.Success)
	assert.Equal(t, "ext-1", ok.ExternalID)
	assert.Equal(t, StatusSynced, ok.Status)

	retry := Retryable("rate limited")
	assert.False(t, retry.Success)
	assert.Empty(t, retry.ExternalID)
	assert.Equal(t, StatusRetryable, retry.Status)
	assert.Equal(t, "rate limited", retry.ErrorMessage)

	failed := Failed("bad request")
	assert.False(t, failed.Success)
	assert.Equal(t, StatusFailed, failed.Status)
}

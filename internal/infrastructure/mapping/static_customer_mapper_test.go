package mapping

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStaticCustomerMapper_Resolve(t *testing.T) {
	m := NewStaticCustomerMapper(zap.NewNop(), map[string]string{
		"CUST-A": "contact-123",
		"cust-b": "contact-456",
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		account string
		want    string
	}{
		{"exact match", "CUST-A", "contact-123"},
		{"case-insensitive match", "cust-a", "contact-123"},
		{"mixed case match", "Cust-B", "contact-456"},
		{"surrounding whitespace", "  CUST-A ", "contact-123"},
		{"unmapped falls back to input", "CUST-Z", "CUST-Z"},
		{"empty falls back to input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Resolve(ctx, tt.account))
		})
	}
}

func TestStaticCustomerMapper_LaterTablesOverride(t *testing.T) {
	m := NewStaticCustomerMapper(nil,
		map[string]string{"CUST-A": "from-config", "CUST-B": "config-only"},
		map[string]string{"cust-a": "from-database", "": "ignored", "CUST-C": "  "},
	)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "from-database", m.Resolve(context.Background(), "CUST-A"))
	assert.Equal(t, "config-only", m.Resolve(context.Background(), "CUST-B"))
	assert.Equal(t, "CUST-C", m.Resolve(context.Background(), "CUST-C"))
}

func TestStaticCustomerMapper_WarnsOnFallback(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewStaticCustomerMapper(zap.New(core), map[string]string{"CUST-A": "contact-123"})

	m.Resolve(context.Background(), "CUST-A")
	m.Resolve(context.Background(), "UNKNOWN")

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	if assert.Len(t, warnings, 1) {
		assert.Equal(t, "UNKNOWN", warnings[0].ContextMap()["customer_account"])
	}
	assert.Len(t, logs.FilterLevelExact(zapcore.DebugLevel).All(), 1)
}

func TestStaticCustomerMapper_ConcurrentResolve(t *testing.T) {
	m := NewStaticCustomerMapper(zap.NewNop(), map[string]string{"CUST-A": "contact-123"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "contact-123", m.Resolve(context.Background(), "cust-a"))
		}()
	}
	wg.Wait()
}

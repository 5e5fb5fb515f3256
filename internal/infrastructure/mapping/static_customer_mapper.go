// Package mapping resolves source customer accounts to the contact ids used by
// the target accounting system.
package mapping

import (
	"context"
	"strings"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// StaticCustomerMapper is a read-only, case-insensitive lookup table built once
// at startup. It needs no locking because it is never mutated after
// construction.
type StaticCustomerMapper struct {
	contacts map[string]string
	logger   *zap.Logger
}

// Ensure StaticCustomerMapper implements invoice.CustomerMapper
var _ invoice.CustomerMapper = (*StaticCustomerMapper)(nil)

// NewStaticCustomerMapper builds a mapper from one or more account → contact
// tables. Later tables override earlier ones. Blank accounts or contacts are
// skipped.
func NewStaticCustomerMapper(logger *zap.Logger, tables ...map[string]string) *StaticCustomerMapper {
	if logger == nil {
		logger = zap.NewNop()
	}

	contacts := make(map[string]string)
	for _, table := range tables {
		for account, contact := range table {
			key := normalize(account)
			contact = strings.TrimSpace(contact)
			if key == "" || contact == "" {
				continue
			}
			contacts[key] = contact
		}
	}

	return &StaticCustomerMapper{
		contacts: contacts,
		logger:   logger,
	}
}

// Resolve returns the mapped contact id, or the account itself when no
// mapping exists.
func (m *StaticCustomerMapper) Resolve(ctx context.Context, customerAccount string) string {
	if contact, ok := m.contacts[normalize(customerAccount)]; ok {
		logger.Ctx(ctx, m.logger).Debug("Resolved customer mapping",
			zap.String("customer_account", customerAccount),
			zap.String("contact_id", contact),
		)
		return contact
	}

	logger.Ctx(ctx, m.logger).Warn("No customer mapping found, using account as contact id",
		zap.String("customer_account", customerAccount),
	)
	return customerAccount
}

// Len returns the number of mapped accounts.
func (m *StaticCustomerMapper) Len() int {
	return len(m.contacts)
}

func normalize(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

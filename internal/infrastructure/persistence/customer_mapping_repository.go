package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCustomerMappingRepository reads the customer mapping table
type GormCustomerMappingRepository struct {
	db    *gorm.DB
	table string
}

// NewGormCustomerMappingRepository creates a repository over table. An empty
// table name selects the default.
func NewGormCustomerMappingRepository(db *gorm.DB, table string) *GormCustomerMappingRepository {
	if table == "" {
		table = models.DefaultCustomerMappingTable
	}
	return &GormCustomerMappingRepository{db: db, table: table}
}

// LoadAll returns every mapping for target as account to contact id. Rows
// with a blank account or contact are skipped. The target comparison ignores
// case.
func (r *GormCustomerMappingRepository) LoadAll(ctx context.Context, target invoice.TargetSystem) (map[string]string, error) {
	var rows []models.CustomerMappingModel
	if err := r.db.WithContext(ctx).
		Table(r.table).
		Select("source_account", "contact_id").
		Where("UPPER(target_system) = ?", strings.ToUpper(target.String())).
		Order("source_account ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("persistence: load customer mappings: %w", err)
	}

	result := make(map[string]string, len(rows))
	for _, row := range rows {
		account := strings.TrimSpace(row.SourceAccount)
		contact := strings.TrimSpace(row.ContactID)
		if account == "" || contact == "" {
			continue
		}
		result[account] = contact
	}
	return result, nil
}

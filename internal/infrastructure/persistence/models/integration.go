package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCustomerMappingTable is the table read when none is configured
const DefaultCustomerMappingTable = "customer_mappings"

// CustomerMappingModel maps a source customer account to the contact id used
// by one accounting system.
type CustomerMappingModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	SourceAccount string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_customer_mapping_account_target,priority:1"`
	TargetSystem  string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_customer_mapping_account_target,priority:2"`
	ContactID     string    `gorm:"type:varchar(100);not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerMappingModel) TableName() string {
	return DefaultCustomerMappingTable
}

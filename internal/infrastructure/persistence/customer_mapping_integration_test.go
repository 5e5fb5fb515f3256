//go:build integration

package persistence

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/config"
	"github.com/erp/invoicesync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway PostgreSQL container and returns its config
func startPostgres(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("invoicesync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	password, _ := u.User.Password()

	return &config.DatabaseConfig{
		Host:         u.Hostname(),
		Port:         port,
		User:         u.User.Username(),
		Password:     password,
		DBName:       "invoicesync_test",
		SSLMode:      "disable",
		Table:        models.DefaultCustomerMappingTable,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}
}

func TestCustomerMappingRepository_Postgres(t *testing.T) {
	cfg := startPostgres(t)

	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.DB.AutoMigrate(&models.CustomerMappingModel{}))
	require.NoError(t, db.DB.Create(&[]models.CustomerMappingModel{
		{ID: uuid.New(), SourceAccount: "CUST-A", TargetSystem: "XERO", ContactID: "contact-123"},
		{ID: uuid.New(), SourceAccount: "CUST-B", TargetSystem: "QUICKBOOKS", ContactID: "qb-9"},
	}).Error)

	repo := NewGormCustomerMappingRepository(db.DB, cfg.Table)
	result, err := repo.LoadAll(context.Background(), invoice.TargetXero)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"CUST-A": "contact-123"}, result)
}

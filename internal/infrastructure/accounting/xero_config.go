package accounting

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// XeroConfig holds configuration for the Xero accounting API
type XeroConfig struct {
	// BaseURL is the Accounting API root, ending in a slash
	BaseURL string
	// TenantID is sent as the Xero-tenant-id header
	TenantID string
	// TokenSecretName is the secret holding the OAuth access token
	TokenSecretName string
	// Timeout bounds the HTTP call
	Timeout time.Duration
	// SecretTimeout bounds the access token lookup
	SecretTimeout time.Duration
}

const (
	// XeroProductionAPIURL is the Xero Accounting API root
	XeroProductionAPIURL = "https://api.xero.com/api.xro/2.0/"
	// XeroDefaultTokenSecret is the default access token secret name
	XeroDefaultTokenSecret = "XeroAccessToken"
)

// Errors for Xero configuration
var (
	ErrXeroConfigMissingTenantID = errors.New("xero: tenant id is required")
	ErrXeroConfigInvalidBaseURL  = errors.New("xero: base url is invalid")
)

// NewXeroConfig creates a Xero configuration with defaults
func NewXeroConfig(tenantID string) *XeroConfig {
	return &XeroConfig{
		BaseURL:         XeroProductionAPIURL,
		TenantID:        tenantID,
		TokenSecretName: XeroDefaultTokenSecret,
		Timeout:         30 * time.Second,
		SecretTimeout:   10 * time.Second,
	}
}

// Validate checks required fields and fills defaults
func (c *XeroConfig) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" {
		return ErrXeroConfigMissingTenantID
	}
	if c.BaseURL == "" {
		c.BaseURL = XeroProductionAPIURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrXeroConfigInvalidBaseURL
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.TokenSecretName == "" {
		c.TokenSecretName = XeroDefaultTokenSecret
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SecretTimeout <= 0 {
		c.SecretTimeout = 10 * time.Second
	}
	return nil
}

// InvoicesURL returns the create-invoices endpoint
func (c *XeroConfig) InvoicesURL() string {
	return c.BaseURL + "Invoices"
}

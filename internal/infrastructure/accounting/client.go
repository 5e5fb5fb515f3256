// Package accounting provides delivery clients for external accounting
// systems. Each client posts one invoice per call and classifies the result
// as synced, retryable or failed; no client retries internally.
package accounting

import (
	"errors"
	"net"
	"net/http"
	"time"
)

// Errors shared by accounting clients
var (
	ErrDeliveryUnavailable = errors.New("accounting: service unavailable")
	ErrMissingSecretStore  = errors.New("accounting: secret store is required")
	ErrUnsupportedTarget   = errors.New("accounting: unsupported target system")
)

// NewHTTPClient returns the HTTP client shared by delivery clients. Request
// deadlines come from the caller's context, so no client-wide timeout is set.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          64,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

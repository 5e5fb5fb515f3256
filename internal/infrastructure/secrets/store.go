// Package secrets retrieves credentials used by the delivery clients.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSecretNotFound is returned when the named secret does not exist.
// Any other error from a Store is treated as transient by callers.
var ErrSecretNotFound = errors.New("secrets: secret not found")

// Store retrieves secrets by name. Implementations must be safe for
// concurrent use.
type Store interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// StaticStore serves secrets from a fixed table. Names are matched
// case-insensitively because configuration keys are lower-cased on load.
type StaticStore struct {
	values map[string]string
}

// Ensure StaticStore implements Store
var _ Store = (*StaticStore)(nil)

// NewStaticStore creates a StaticStore from values.
func NewStaticStore(values map[string]string) *StaticStore {
	normalized := make(map[string]string, len(values))
	for name, value := range values {
		normalized[strings.ToLower(name)] = value
	}
	return &StaticStore{values: normalized}
}

// GetSecret returns the named secret.
func (s *StaticStore) GetSecret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, ok := s.values[strings.ToLower(name)]
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return value, nil
}

package invoice

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTarget is returned when a target system name is not recognised.
var ErrUnknownTarget = errors.New("invoice: unknown target system")

// TargetSystem identifies an external accounting system.
type TargetSystem string

const (
	TargetXero       TargetSystem = "XERO"
	TargetQuickBooks TargetSystem = "QUICKBOOKS"
)

// AllTargetSystems returns every known target system.
func AllTargetSystems() []TargetSystem {
	return []TargetSystem{TargetXero, TargetQuickBooks}
}

// IsValid reports whether t is a known target system.
func (t TargetSystem) IsValid() bool {
	switch t {
	case TargetXero, TargetQuickBooks:
		return true
	}
	return false
}

// String returns the string representation.
func (t TargetSystem) String() string {
	return string(t)
}

// ParseTargetSystem resolves a configured name such as "xero" or "QuickBooks".
func ParseTargetSystem(name string) (TargetSystem, error) {
	t := TargetSystem(strings.ToUpper(strings.TrimSpace(name)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return t, nil
}

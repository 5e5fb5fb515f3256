package accounting

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/secrets"
	"go.uber.org/zap"
)

// Deps are the collaborators handed to every client factory
type Deps struct {
	Secrets    secrets.Store
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Factory builds a delivery client
type Factory func(deps Deps) (invoice.DeliveryClient, error)

// Registry maps target systems to client factories
type Registry struct {
	mu        sync.RWMutex
	factories map[invoice.TargetSystem]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[invoice.TargetSystem]Factory)}
}

// DefaultRegistry registers the built-in Xero and QuickBooks clients
func DefaultRegistry(xeroCfg *XeroConfig, qbCfg *QuickBooksConfig) *Registry {
	r := NewRegistry()
	r.Register(invoice.TargetXero, func(deps Deps) (invoice.DeliveryClient, error) {
		return NewXeroAdapter(xeroCfg, deps.Secrets, deps.HTTPClient, deps.Logger)
	})
	r.Register(invoice.TargetQuickBooks, func(deps Deps) (invoice.DeliveryClient, error) {
		return NewQuickBooksAdapter(qbCfg, deps.Logger), nil
	})
	return r
}

// Register adds or replaces the factory for target
func (r *Registry) Register(target invoice.TargetSystem, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[target] = factory
}

// Build creates the client for target
func (r *Registry) Build(target invoice.TargetSystem, deps Deps) (invoice.DeliveryClient, error) {
	r.mu.RLock()
	factory, ok := r.factories[target]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}
	client, err := factory(deps)
	if err != nil {
		return nil, fmt.Errorf("accounting: build %s client: %w", target, err)
	}
	return client, nil
}

// Targets lists registered targets in sorted order
func (r *Registry) Targets() []invoice.TargetSystem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets := make([]invoice.TargetSystem, 0, len(r.factories))
	for t := range r.factories {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

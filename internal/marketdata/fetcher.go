// Package marketdata implements the external fetch contract of the cache
// store for the supported providers. Provider wire formats stay opaque: each
// fetcher returns the raw payload bytes and an error, nothing else.
package marketdata

import (
	"context"
	"sync"

	"github.com/rxtech-lab/argo-desk/pkg/errors"
)

// ProviderFetcher performs one call against a single provider.
type ProviderFetcher interface {
	Fetch(ctx context.Context, function string, params map[string]string) ([]byte, error)
}

// Registry dispatches fetches to the registered provider fetchers. It
// satisfies the cache store's Fetcher contract.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFetcher
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:        sync.RWMutex{},
		providers: make(map[string]ProviderFetcher),
	}
}

// Register adds or replaces the fetcher for a provider name.
func (r *Registry) Register(provider string, fetcher ProviderFetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[provider] = fetcher
}

// Fetch dispatches to the provider's fetcher.
func (r *Registry) Fetch(ctx context.Context, provider, function string, params map[string]string) ([]byte, error) {
	r.mu.RLock()
	fetcher, ok := r.providers[provider]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown market data provider %q", provider)
	}

	return fetcher.Fetch(ctx, function, params)
}

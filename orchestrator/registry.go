package orchestrator

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/contestra/ai-ranker-v2-sub003/core"
)

// AdapterConfig holds configuration for initializing a provider adapter.
type AdapterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Headers      map[string]string
	HTTPClient   *http.Client
	ProxyURL     *url.URL
}

// AdapterFactory creates provider adapter instances from configuration.
type AdapterFactory interface {
	// New creates a new adapter instance with the given configuration.
	New(config AdapterConfig) (core.ProviderAdapter, error)

	// DefaultConfig returns default configuration, typically from environment variables.
	DefaultConfig() AdapterConfig
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterFactory)
)

// RegisterAdapter registers an adapter factory. This is typically called from
// a provider package's init() function to enable self-registration on import.
//
// Panics if an adapter with the same name is already registered.
func RegisterAdapter(name string, factory AdapterFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("orchestrator: adapter %q already registered", name))
	}
	registry[name] = factory
}

// GetAdapterFactory returns the factory for a registered adapter.
func GetAdapterFactory(name string) (AdapterFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[name]
	return factory, ok
}

// RegisteredAdapters returns the names of all registered adapters.
func RegisteredAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// IsAdapterRegistered checks if an adapter is registered.
func IsAdapterRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// clearRegistry removes all registered adapters. For testing only.
func clearRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]AdapterFactory)
}

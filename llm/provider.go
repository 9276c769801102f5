package llm

import (
	"net/http"
	"sort"
	"sync"
)

// Provider adapts Request and Response to one vendor's wire format.
// The client stays protocol-agnostic; implementations live in the
// providers subpackage and register themselves from init.
type Provider interface {
	// Name is the identifier used in configuration, e.g. "ollama".
	Name() string

	// Endpoint returns the completion URL. An empty base selects the
	// provider's default host.
	Endpoint(base string) string

	// Authenticate sets auth headers, read from the provider's
	// environment variables. May do nothing for local endpoints.
	Authenticate(req *http.Request)

	// MarshalRequest encodes req in the provider's wire format.
	MarshalRequest(req Request) ([]byte, error)

	// UnmarshalResponse decodes a provider response body. model is the
	// requested model name, used when the provider omits it.
	UnmarshalResponse(body []byte, model string) (*Response, error)
}

var (
	providersMu sync.RWMutex
	providers   = make(map[string]Provider)
)

// RegisterProvider makes a provider available by its Name. Called from
// init in the providers subpackage.
func RegisterProvider(p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[p.Name()] = p
}

// GetProvider returns the named provider, or nil.
func GetProvider(name string) Provider {
	providersMu.RLock()
	defer providersMu.RUnlock()
	return providers[name]
}

// ListProviders returns registered provider names, sorted for stable
// error messages.
func ListProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

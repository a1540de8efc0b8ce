package agent

import (
	"context"

	"github.com/fluentlabs/lernplan/internal/models"
)

// Provider is the interface every content-generation backend implements.
// A provider serves exactly one capability (grammar, vocabulary or
// conversation); the router composes providers into fallback chains.
type Provider interface {
	// Name identifies the concrete backend, e.g. "openai" or "static"
	Name() string

	// Capability reports which content-generation skill this provider serves
	Capability() models.Capability

	// Generate produces a content block for the request. The returned block
	// has not yet been schema-validated; the router validates before accepting.
	Generate(ctx context.Context, req *models.GenerationRequest) (*models.ContentBlock, error)
}

// ProviderFactory creates a provider for one capability from a flat config map
type ProviderFactory func(capability models.Capability, config map[string]string) (Provider, error)

// ProviderRegistry stores available provider backends by name
type ProviderRegistry struct {
	factories map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		factories: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory under a backend name
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.factories[name] = factory
}

// GetProvider builds a provider by backend name for the given capability
func (r *ProviderRegistry) GetProvider(name string, capability models.Capability, config map[string]string) (Provider, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return factory(capability, config)
}

// ErrProviderNotFound is returned when a backend name is not registered
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "content provider not found: " + e.Name
}

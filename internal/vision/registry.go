package vision

import (
	"fmt"
	"sort"

	"planbid/internal/config"
	"planbid/internal/port"
)

// ProviderFactory creates a VisionAnalyzer from a provider config.
type ProviderFactory func(cfg *config.VisionProviderConfig) (port.VisionAnalyzer, error)

// Registry maps provider names to factories. It is built once in main and
// passed where needed.
type Registry struct {
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]ProviderFactory{}}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, factory ProviderFactory) {
	r.factories[name] = factory
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates a VisionAnalyzer from a provider config using the registered factory.
func (r *Registry) New(cfg *config.VisionProviderConfig) (port.VisionAnalyzer, error) {
	factory, ok := r.factories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown vision provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

package secret

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// ProviderFactory creates a Provider from configuration.
type ProviderFactory func(cfg map[string]any) (Provider, error)

// Registry manages provider factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// NewDefaultRegistry returns a registry with the env and file providers.
//
// Recognized options: env takes "prefix", file takes "dir".
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("env", func(cfg map[string]any) (Provider, error) {
		var opts struct {
			Prefix string `mapstructure:"prefix"`
		}
		if err := decodeOptions(cfg, &opts); err != nil {
			return nil, err
		}
		return NewEnvProvider(opts.Prefix), nil
	})
	_ = r.Register("file", func(cfg map[string]any) (Provider, error) {
		var opts struct {
			Dir string `mapstructure:"dir"`
		}
		if err := decodeOptions(cfg, &opts); err != nil {
			return nil, err
		}
		return NewFileProvider(opts.Dir), nil
	})
	return r
}

func decodeOptions(cfg map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("secret: provider options: %w", err)
	}
	return nil
}

// Register adds a provider factory.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return ErrInvalidRegistration
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %q", ErrProviderRegistered, name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a provider by name.
func (r *Registry) Create(name string, cfg map[string]any) (Provider, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return factory(cfg)
}

// Resolver creates every named provider with its options and returns a
// resolver over them. Providers created before a failure are closed.
func (r *Registry) Resolver(strict bool, providers map[string]map[string]any) (*Resolver, error) {
	res := NewResolver(strict)
	for _, name := range sortedKeys(providers) {
		p, err := r.Create(name, providers[name])
		if err != nil {
			_ = res.Close()
			return nil, err
		}
		res.Register(p)
	}
	return res, nil
}

// List returns registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.factories)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

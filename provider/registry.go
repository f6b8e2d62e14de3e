package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Factory constructs a Provider, lazily installing missing backend software
// if it can. Factories are invoked at most once per name for the life of the
// process unless they fail.
type Factory func(ctx context.Context) (Provider, error)

// Registry resolves and caches adapter instances by name. State is
// process-wide and initialized once; repeated Ensure calls for an
// already-loaded provider return the cached instance.
type Registry struct {
	logger    *zap.Logger
	factories map[string]Factory
	cache     map[string]Provider
	group     singleflight.Group
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]Factory),
		cache:     make(map[string]Provider),
	}
}

// Register installs a factory for a provider name. Registering over an
// existing name replaces the factory but keeps any cached instance.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Ensure returns the cached provider for name, resolving it through the
// registered factory on first use. Concurrent callers for the same name
// share a single resolution.
func (r *Registry) Ensure(ctx context.Context, name string) (Provider, error) {
	r.mu.RLock()
	if p, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProvider, name, r.List())
	}

	v, err, _ := r.group.Do(name, func() (interface{}, error) {
		// Re-check under the group: a prior flight may have populated the cache.
		r.mu.RLock()
		if p, ok := r.cache[name]; ok {
			r.mu.RUnlock()
			return p, nil
		}
		r.mu.RUnlock()

		p, err := factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("load provider %q: %w", name, err)
		}

		r.mu.Lock()
		r.cache[name] = p
		r.mu.Unlock()

		r.logger.Info("provider loaded", zap.String("provider", name))
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

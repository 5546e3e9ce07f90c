package provider

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrDuplicateProvider indicates an attempt to register the same provider twice.
var ErrDuplicateProvider = errors.New("provider already registered")

// ErrUnknownAdapter indicates a profile references an adapter kind nobody registered.
var ErrUnknownAdapter = errors.New("unknown adapter")

// Registry maintains adapter factories and the configured provider profiles.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	profiles  map[string]*Profile
	order     []string
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		profiles:  make(map[string]*Profile),
	}
}

// RegisterAdapter makes an adapter kind available to profiles.
func (r *Registry) RegisterAdapter(kind string, f Factory) error {
	if f == nil {
		return errors.New("adapter factory must not be nil")
	}
	kind = strings.ToLower(kind)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("adapter %q already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// RegisterProfile adds a provider. A profile without an explicit adapter
// uses the adapter registered under its id, or the default adapter.
func (r *Registry) RegisterProfile(p *Profile) error {
	if p == nil {
		return errors.New("profile must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, p.ID)
	}

	if p.Adapter == "" {
		p.Adapter = DefaultAdapter
		if _, ok := r.factories[strings.ToLower(p.ID)]; ok {
			p.Adapter = strings.ToLower(p.ID)
		}
	}
	if _, ok := r.factories[p.Adapter]; !ok {
		return fmt.Errorf("provider %s: %w %q", p.ID, ErrUnknownAdapter, p.Adapter)
	}

	r.profiles[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// Profile returns the profile registered under id, ignoring case.
func (r *Registry) Profile(id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		for _, registered := range r.order {
			if strings.EqualFold(registered, id) {
				p, ok = r.profiles[registered], true
				break
			}
		}
	}
	if !ok {
		return nil, &ConfigurationError{
			Message: fmt.Sprintf("Provider %q is not configured", id),
			Err:     ErrUnknownProvider,
		}
	}
	return p, nil
}

// Profiles returns every registered profile in registration order.
func (r *Registry) Profiles() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.profiles[id])
	}
	return out
}

// Resolve validates provider and model and returns a Builder bound to them.
func (r *Registry) Resolve(providerID, model string) (*Builder, error) {
	p, err := r.Profile(providerID)
	if err != nil {
		return nil, err
	}

	spec, err := p.ResolveModel(model)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	factory := r.factories[p.Adapter]
	r.mu.RUnlock()

	return &Builder{
		Profile: p,
		Model:   spec,
		Adapter: factory(p),
	}, nil
}

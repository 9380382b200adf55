package payments

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrProviderNotFound = errors.New("payment provider not found")

// Registry maps provider names to adapters. It is built once at startup and
// only read afterwards.
type Registry struct {
	providers map[string]PaymentProvider
}

func NewRegistry(providers ...PaymentProvider) (*Registry, error) {
	r := &Registry{providers: make(map[string]PaymentProvider, len(providers))}
	for _, p := range providers {
		name := strings.ToLower(p.Name())
		if _, dup := r.providers[name]; dup {
			return nil, fmt.Errorf("payments.NewRegistry: provider %q registered twice", name)
		}
		r.providers[name] = p
	}
	return r, nil
}

func (r *Registry) Get(name string) (PaymentProvider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// Names returns the registered provider names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

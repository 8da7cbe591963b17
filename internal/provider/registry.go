package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

// Registry maps provider identifiers to configured providers.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

func NewRegistry(defaultName string, providers ...Provider) (*Registry, error) {
	r := &Registry{
		providers:   make(map[string]Provider, len(providers)),
		defaultName: normalizeName(defaultName),
	}

	for _, p := range providers {
		if p == nil {
			continue
		}
		name := normalizeName(p.Name())
		if _, exists := r.providers[name]; exists {
			return nil, fmt.Errorf("%w: duplicate provider %q", domain.ErrConfiguration, name)
		}
		r.providers[name] = p
	}

	if _, ok := r.providers[r.defaultName]; !ok {
		return nil, fmt.Errorf("%w: default provider %q is not configured (available: %s)",
			domain.ErrConfiguration, defaultName, strings.Join(r.Names(), ", "))
	}

	return r, nil
}

func (r *Registry) Default() Provider {
	return r.providers[r.defaultName]
}

func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Resolve returns the default provider for an empty name.
func (r *Registry) Resolve(name string) (Provider, error) {
	if strings.TrimSpace(name) == "" {
		return r.Default(), nil
	}
	p, ok := r.providers[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrValidation, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

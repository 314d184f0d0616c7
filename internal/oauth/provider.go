// Package oauth drives the authorization code flow against external
// identity providers and returns the identity facts they release.
// Providers make no account decisions.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownProvider is returned by Registry.Get for unregistered names.
var ErrUnknownProvider = errors.New("unknown oauth provider")

// Identity is what a provider asserted about the signed-in user.
// Email is empty when the provider did not release it.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Provider is an external identity provider.
type Provider interface {
	// Name is the identifier used in routes and stored as the account's provider.
	Name() string
	// AuthCodeURL returns the provider authorization URL carrying state and
	// the S256 challenge of verifier.
	AuthCodeURL(state, verifier string) string
	// Exchange trades an authorization code for the user's identity.
	Exchange(ctx context.Context, code, verifier string) (*Identity, error)
}

// Registry holds configured providers by name. It is read-only after construction.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers providers by name. Later duplicates replace earlier ones.
func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	if r != nil {
		if p, ok := r.providers[name]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

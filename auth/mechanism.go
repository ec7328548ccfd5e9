package auth

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	amqperr "github.com/maxpert/amqp-go-client/errors"
)

// Mechanism represents the client side of a SASL authentication mechanism
type Mechanism interface {
	// Name returns the mechanism name (e.g., "PLAIN", "AMQPLAIN")
	Name() string

	// Response returns the initial response sent in connection.start-ok
	Response() ([]byte, error)

	// Challenge answers a connection.secure challenge
	Challenge(challenge []byte) ([]byte, error)
}

// Factory builds a mechanism for a set of credentials
type Factory func(username, password string) Mechanism

// Registry manages available authentication mechanisms
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new mechanism registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a mechanism to the registry
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get builds the named mechanism for the given credentials
func (r *Registry) Get(name, username, password string) (Mechanism, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported authentication mechanism: %s", name)
	}
	return factory(username, password), nil
}

// List returns all registered mechanism names in sorted order
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

// String returns a space-separated list of mechanism names for AMQP
func (r *Registry) String() string {
	return strings.Join(r.List(), " ")
}

// Select picks the first mechanism in preferred order that the server
// offers and the registry knows.
func (r *Registry) Select(preferred, offered []string, username, password string) (Mechanism, error) {
	for _, name := range preferred {
		if !slices.Contains(offered, name) {
			continue
		}
		if m, err := r.Get(name, username, password); err == nil {
			return m, nil
		}
	}
	return nil, amqperr.NewMechanismUnavailable(preferred, offered)
}

// DefaultRegistry returns a registry with PLAIN, AMQPLAIN and ANONYMOUS
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(MechanismPlain, func(u, p string) Mechanism { return &PlainMechanism{Username: u, Password: p} })
	registry.Register(MechanismAMQPlain, func(u, p string) Mechanism { return &AMQPlainMechanism{Username: u, Password: p} })
	registry.Register(MechanismAnonymous, func(string, string) Mechanism { return &AnonymousMechanism{} })
	return registry
}

// Mechanism names
const (
	MechanismPlain     = "PLAIN"
	MechanismAMQPlain  = "AMQPLAIN"
	MechanismAnonymous = "ANONYMOUS"
)

func noChallenge(mechanism string) error {
	return amqperr.NewAuthError(amqperr.AccessRefused,
		fmt.Sprintf("%s SASL mechanism does not support challenges", mechanism), mechanism, nil)
}

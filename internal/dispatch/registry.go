// Package dispatch implements the fan-out router: a closed, config-loaded
// registry of named delivery targets and the sequential dispatch loop that
// delivers one payload to an ordered target list.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Deliverer is one downstream delivery capability: send payload bytes with
// headers to a named endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, payload []byte, headers map[string]string) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, payload []byte, headers map[string]string) error

// Deliver invokes the function.
func (f DelivererFunc) Deliver(ctx context.Context, payload []byte, headers map[string]string) error {
	return f(ctx, payload, headers)
}

// Registry maps target names to deliverers. The set is fixed after
// construction; resolution of an unknown name is an error, never a fallback.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Deliverer
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]Deliverer)}
}

// Register adds a named deliverer. Duplicate names are an error.
func (r *Registry) Register(name string, deliverer Deliverer) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("dispatch: target name is required")
	}
	if deliverer == nil {
		return fmt.Errorf("dispatch: target %q has no deliverer", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.targets[name]; exists {
		return fmt.Errorf("dispatch: target %q already registered", name)
	}
	r.targets[name] = deliverer
	return nil
}

// Resolve returns the deliverer for a target name.
func (r *Registry) Resolve(name string) (Deliverer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	deliverer, ok := r.targets[name]
	if !ok {
		return nil, fmt.Errorf("dispatch: unknown target %q", name)
	}
	return deliverer, nil
}

// Names returns the registered target names. Intended for startup logging.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	return names
}

// RegistryEntry is one target declaration from the registry file.
type RegistryEntry struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	URL   string `yaml:"url,omitempty"`
	Topic string `yaml:"topic,omitempty"`
}

// LoadRegistryFile parses the YAML target registry file.
func LoadRegistryFile(path string) ([]RegistryEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dispatch: read registry: %w", err)
	}

	var entries []RegistryEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("dispatch: parse registry: %w", err)
	}
	for i, entry := range entries {
		if entry.Name == "" {
			return nil, fmt.Errorf("dispatch: registry entry %d has no name", i)
		}
		switch entry.Kind {
		case "http":
			if entry.URL == "" {
				return nil, fmt.Errorf("dispatch: http target %q has no url", entry.Name)
			}
		case "kafka":
			if entry.Topic == "" {
				return nil, fmt.Errorf("dispatch: kafka target %q has no topic", entry.Name)
			}
		default:
			return nil, fmt.Errorf("dispatch: target %q has unsupported kind %q", entry.Name, entry.Kind)
		}
	}
	return entries, nil
}

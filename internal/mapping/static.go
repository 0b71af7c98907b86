package mapping

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/example/message-intake/internal/models"
)

type rule struct {
	SourceType  string   `yaml:"source_type"`
	Source      string   `yaml:"source"`
	ContentType string   `yaml:"content_type"`
	MessageType string   `yaml:"message_type"`
	Targets     []string `yaml:"targets"`
}

// StaticResolver answers queries from a rule table loaded at startup. A rule
// with content_type "*" matches any content type.
type StaticResolver struct {
	mu    sync.RWMutex
	rules []rule
}

// NewStaticResolver constructs an empty static resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{}
}

// LoadFile reads a YAML rule table and replaces the current rules.
func (r *StaticResolver) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("mapping: read table: %w", err)
	}

	var rules []rule
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return fmt.Errorf("mapping: parse table: %w", err)
	}
	for i, rl := range rules {
		if rl.SourceType == "" || rl.Source == "" || rl.MessageType == "" {
			return fmt.Errorf("mapping: rule %d is missing source_type, source or message_type", i)
		}
	}

	r.mu.Lock()
	r.rules = rules
	r.mu.Unlock()
	return nil
}

// AddRule registers a rule programmatically. Used by tests and development
// wiring.
func (r *StaticResolver) AddRule(query models.MappingQuery, targets ...string) {
	r.mu.Lock()
	r.rules = append(r.rules, rule{
		SourceType:  query.SourceType,
		Source:      query.Source,
		ContentType: query.ContentType,
		MessageType: query.MessageType,
		Targets:     targets,
	})
	r.mu.Unlock()
}

// Query returns the targets of the first matching rule, in rule order. No
// match yields an empty list, not an error.
func (r *StaticResolver) Query(_ context.Context, query models.MappingQuery) ([]models.RoutingTarget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rl := range r.rules {
		if rl.SourceType != query.SourceType || rl.Source != query.Source || rl.MessageType != query.MessageType {
			continue
		}
		if rl.ContentType != "*" && rl.ContentType != query.ContentType {
			continue
		}
		targets := make([]models.RoutingTarget, 0, len(rl.Targets))
		for _, name := range rl.Targets {
			targets = append(targets, models.RoutingTarget{Target: name})
		}
		return targets, nil
	}
	return nil, nil
}

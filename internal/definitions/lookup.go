// Package definitions resolves message-definition records: the mapping from
// a schema version key to the storage locator of the schema document.
package definitions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/example/message-intake/internal/models"
)

// ErrDefinitionNotFound is returned when no definition matches a version key.
var ErrDefinitionNotFound = errors.New("definitions: no definition for version key")

// Lookup resolves the schema definition for a version key.
type Lookup interface {
	Get(ctx context.Context, key models.VersionKey) (*models.MessageDefinition, error)
}

type tableEntry struct {
	UniqueType  string `yaml:"unique_type"`
	Major       int    `yaml:"version_major"`
	Minor       int    `yaml:"version_minor"`
	Patch       int    `yaml:"version_patch"`
	StoragePath string `yaml:"storage_path"`
}

// StaticLookup serves definitions from a table loaded once at startup.
type StaticLookup struct {
	mu      sync.RWMutex
	entries map[string]models.MessageDefinition
}

// NewStaticLookup constructs an empty static lookup.
func NewStaticLookup() *StaticLookup {
	return &StaticLookup{entries: make(map[string]models.MessageDefinition)}
}

// LoadFile reads a YAML definition table and replaces the current entries.
func (l *StaticLookup) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("definitions: read table: %w", err)
	}

	var entries []tableEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("definitions: parse table: %w", err)
	}

	parsed := make(map[string]models.MessageDefinition, len(entries))
	for _, entry := range entries {
		if entry.UniqueType == "" || entry.StoragePath == "" {
			return fmt.Errorf("definitions: table entry missing unique_type or storage_path")
		}
		key := models.VersionKey{
			UniqueType: entry.UniqueType,
			Major:      entry.Major,
			Minor:      entry.Minor,
			Patch:      entry.Patch,
		}
		parsed[key.String()] = models.MessageDefinition{Key: key, StoragePath: entry.StoragePath}
	}

	l.mu.Lock()
	l.entries = parsed
	l.mu.Unlock()
	return nil
}

// Add registers a single definition. Used by tests and development wiring.
func (l *StaticLookup) Add(def models.MessageDefinition) {
	l.mu.Lock()
	l.entries[def.Key.String()] = def
	l.mu.Unlock()
}

// Get resolves the definition for the version key.
func (l *StaticLookup) Get(_ context.Context, key models.VersionKey) (*models.MessageDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	def, ok := l.entries[key.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, key)
	}
	clone := def
	return &clone, nil
}

package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Registry maps test ids to executable checks, preserving registration order
type Registry struct {
	mu      sync.RWMutex
	log     log.Logger
	order   []string
	entries map[string]Entry
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Registry{
		log:     cfg.Log,
		entries: make(map[string]Entry),
	}
}

// Register adds a test. Ids must be unique and executors non-nil.
func (r *Registry) Register(entry Entry) error {
	if entry.Metadata.ID == "" {
		return fmt.Errorf("test id is required")
	}
	if entry.Executor == nil {
		return fmt.Errorf("test %s: executor is required", entry.Metadata.ID)
	}
	if entry.Metadata.Name == "" {
		entry.Metadata.Name = entry.Metadata.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[entry.Metadata.ID]; exists {
		return fmt.Errorf("test %s already registered", entry.Metadata.ID)
	}
	r.entries[entry.Metadata.ID] = entry
	r.order = append(r.order, entry.Metadata.ID)
	r.log.Debug("Registered test", "id", entry.Metadata.ID, "category", entry.Metadata.Category, "critical", entry.Metadata.Critical)
	return nil
}

// Lookup returns the entry for id
func (r *Registry) Lookup(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// IDs returns every registered id in registration order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tests
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

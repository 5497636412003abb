// Package registry provides a thread-safe schema registry for model
// definitions. Each connection owns its own registry; there is no shared
// global state across connections.
package registry

import (
	"fmt"
	"sync"

	"github.com/strataorm/strata/pkg/schema"
)

// Registry holds model definitions keyed by model name.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*schema.ModelDefinition
	tables map[string]*schema.ModelDefinition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*schema.ModelDefinition),
		tables: make(map[string]*schema.ModelDefinition),
	}
}

// Register stores a model definition. Registering the same name twice is an
// error: definitions are immutable after first use.
func (r *Registry) Register(def *schema.ModelDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[def.Name]; ok {
		return fmt.Errorf("model %s already defined", def.Name)
	}
	if existing, ok := r.tables[def.Table]; ok {
		return fmt.Errorf("table %s already claimed by model %s", def.Table, existing.Name)
	}

	r.models[def.Name] = def
	r.tables[def.Table] = def
	return nil
}

// Get retrieves a model definition by name.
func (r *Registry) Get(name string) (*schema.ModelDefinition, error) {
	r.mu.RLock()
	def, ok := r.models[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model %s not defined", name)
	}
	return def, nil
}

// GetByTable retrieves a model definition by table name.
func (r *Registry) GetByTable(table string) (*schema.ModelDefinition, error) {
	r.mu.RLock()
	def, ok := r.tables[table]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("table %s not registered", table)
	}
	return def, nil
}

// Has reports whether a model name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	_, ok := r.models[name]
	r.mu.RUnlock()
	return ok
}

// All returns every registered definition.
func (r *Registry) All() []*schema.ModelDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*schema.ModelDefinition, 0, len(r.models))
	for _, def := range r.models {
		defs = append(defs, def)
	}
	return defs
}

// Names returns every registered model name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	return names
}

// Clear removes all registered models.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models = make(map[string]*schema.ModelDefinition)
	r.tables = make(map[string]*schema.ModelDefinition)
}

package schema

import (
	"fmt"
	"time"
)

// CacheMode selects how instances of a model are identity-cached.
type CacheMode int

const (
	// CacheEnabled caches instances indefinitely.
	CacheEnabled CacheMode = iota
	// CacheDisabled produces a fresh instance on every load.
	CacheDisabled
	// CacheTTL caches instances and lazily evicts them after TTL from last
	// access.
	CacheTTL
)

// CachePolicy is a model's identity-cache configuration.
type CachePolicy struct {
	Mode CacheMode
	TTL  time.Duration // CacheTTL only
}

// ModelDefinition describes one model: its table, ordered properties,
// primary key and cache/auto-fetch policy. Created once by Define and never
// mutated after first use, except for adding associations.
type ModelDefinition struct {
	Name           string
	Table          string
	Properties     []Property
	Keys           []string
	Cache          CachePolicy
	AutoFetch      bool
	AutoFetchLimit int
	AutoSave       bool
	Associations   []*Association

	byName map[string]int
}

// NewModelDefinition builds a definition with the property index prepared.
// Keys must already be resolved (the caller applies the primary-key settings
// template before construction).
func NewModelDefinition(name, table string, properties []Property, keys []string) (*ModelDefinition, error) {
	if name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("model %s: at least one key property is required", name)
	}

	def := &ModelDefinition{
		Name:           name,
		Table:          table,
		Properties:     properties,
		Keys:           keys,
		AutoFetchLimit: 1,
		byName:         make(map[string]int, len(properties)),
	}
	if def.Table == "" {
		def.Table = name
	}

	for i, prop := range properties {
		if !prop.Type.Valid() {
			return nil, fmt.Errorf("model %s: property %s has unknown type %q", name, prop.Name, prop.Type)
		}
		if _, dup := def.byName[prop.Name]; dup {
			return nil, fmt.Errorf("model %s: duplicate property %s", name, prop.Name)
		}
		def.byName[prop.Name] = i
	}
	for _, key := range keys {
		if _, ok := def.byName[key]; !ok {
			return nil, fmt.Errorf("model %s: key property %s not declared", name, key)
		}
	}
	return def, nil
}

// Property returns the named property, or nil.
func (d *ModelDefinition) Property(name string) *Property {
	i, ok := d.byName[name]
	if !ok {
		return nil
	}
	return &d.Properties[i]
}

// HasProperty reports whether the model declares the named property.
func (d *ModelDefinition) HasProperty(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// Key returns the primary-key property name. Composite keys are declared in
// order; Key returns the first.
func (d *ModelDefinition) Key() string {
	return d.Keys[0]
}

// PropertyNames returns the declared property names in order.
func (d *ModelDefinition) PropertyNames() []string {
	names := make([]string, len(d.Properties))
	for i, p := range d.Properties {
		names[i] = p.Name
	}
	return names
}

// AddProperty appends a property after definition. Association declaration
// uses this to attach foreign-key properties; nothing else may grow the
// property list.
func (d *ModelDefinition) AddProperty(prop Property) error {
	if !prop.Type.Valid() {
		return fmt.Errorf("model %s: property %s has unknown type %q", d.Name, prop.Name, prop.Type)
	}
	if _, dup := d.byName[prop.Name]; dup {
		return fmt.Errorf("model %s: duplicate property %s", d.Name, prop.Name)
	}
	d.byName[prop.Name] = len(d.Properties)
	d.Properties = append(d.Properties, prop)
	return nil
}

// AddAssociation appends an association to the definition. This is the only
// permitted mutation after definition.
func (d *ModelDefinition) AddAssociation(assoc *Association) error {
	if d.Association(assoc.Name) != nil {
		return fmt.Errorf("model %s: association %s already declared", d.Name, assoc.Name)
	}
	d.Associations = append(d.Associations, assoc)
	return nil
}

// Association returns the named association, or nil.
func (d *ModelDefinition) Association(name string) *Association {
	for _, a := range d.Associations {
		if a.Name == name {
			return a
		}
	}
	return nil
}

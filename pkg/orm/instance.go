package orm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/strataorm/strata/pkg/driver"
)

// Instance is one row of a model, live in memory. While its model caches,
// every load of the same key hands back the same *Instance, so mutations are
// visible to every holder. Reads and writes of property values are guarded
// by an internal lock; concurrent writers race on a last-writer-wins basis.
type Instance struct {
	model *Model

	mu      sync.RWMutex
	values  map[string]any
	dirty   map[string]struct{}
	extra   map[string]any
	related map[string]any
	isNew   bool
}

// Model returns the instance's model.
func (i *Instance) Model() *Model { return i.model }

// Get reads a property value.
func (i *Instance) Get(name string) (any, error) {
	if !i.model.def.HasProperty(name) {
		return nil, unknownProperty(i.model.def, name)
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.values[name], nil
}

// MustGet reads a property value and panics on an unknown name. Meant for
// hooks and filters where the property set is fixed.
func (i *Instance) MustGet(name string) any {
	v, err := i.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Set coerces and stores a property value, marking it unsaved. When the
// model enables auto-save the change persists immediately through the full
// save pipeline.
func (i *Instance) Set(ctx context.Context, name string, value any) error {
	prop := i.model.def.Property(name)
	if prop == nil {
		return unknownProperty(i.model.def, name)
	}
	v, err := prop.Normalize(value)
	if err != nil {
		return fmt.Errorf("model %s: %w", i.model.def.Name, err)
	}

	i.mu.Lock()
	i.values[name] = v
	i.dirty[name] = struct{}{}
	i.mu.Unlock()

	if i.model.def.AutoSave {
		return i.Save(ctx)
	}
	return nil
}

// ID returns the value of the (first) key property, or nil before the first
// save of a generated key.
func (i *Instance) ID() any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.values[i.model.def.Key()]
}

// Extra reads a join-table extra column attached by the last to-many fetch
// that delivered this instance.
func (i *Instance) Extra(name string) any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.extra[name]
}

// IsNew reports whether the instance has never been persisted.
func (i *Instance) IsNew() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.isNew
}

// IsDirty reports whether the instance carries unsaved property changes.
func (i *Instance) IsDirty() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.dirty) > 0
}

// Call invokes a model method by name with the instance as its explicit
// first parameter.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	method, ok := i.model.methods[name]
	if !ok {
		return nil, fmt.Errorf("model %s: no method %s", i.model.def.Name, name)
	}
	return method(ctx, i, args...)
}

// Save runs the persistence pipeline: BeforeSave, BeforeCreate on first
// save, property validators, the driver write, then AfterSave with the
// outcome. A validator rejection or write failure leaves persisted state and
// the identity cache untouched. Saving a clean, already-persisted instance
// is a no-op.
func (i *Instance) Save(ctx context.Context) error {
	isNew := i.IsNew()
	if !isNew && !i.IsDirty() {
		return nil
	}

	if i.model.hooks.BeforeSave != nil {
		if err := i.model.hooks.BeforeSave(ctx, i); err != nil {
			return err
		}
	}
	if isNew && i.model.hooks.BeforeCreate != nil {
		if err := i.model.hooks.BeforeCreate(ctx, i); err != nil {
			return err
		}
	}

	if err := i.normalizeDirty(); err != nil {
		return err
	}
	if err := i.validate(); err != nil {
		i.afterSave(ctx, false)
		return err
	}

	var err error
	if isNew {
		err = i.insert(ctx)
	} else {
		err = i.update(ctx)
	}
	i.afterSave(ctx, err == nil)
	return err
}

func (i *Instance) afterSave(ctx context.Context, success bool) {
	if i.model.hooks.AfterSave != nil {
		i.model.hooks.AfterSave(ctx, i, success)
	}
}

// normalizeDirty coerces values that arrived through New rather than Set,
// and rejects names the model does not declare.
func (i *Instance) normalizeDirty() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for name := range i.dirty {
		prop := i.model.def.Property(name)
		if prop == nil {
			return unknownProperty(i.model.def, name)
		}
		v, err := prop.Normalize(i.values[name])
		if err != nil {
			return fmt.Errorf("model %s: %w", i.model.def.Name, err)
		}
		i.values[name] = v
	}
	return nil
}

// validate runs the model's per-property validators in declaration order.
// The first rejection wins.
func (i *Instance) validate() error {
	if len(i.model.validations) == 0 {
		return nil
	}
	for _, prop := range i.model.def.Properties {
		validators, ok := i.model.validations[prop.Name]
		if !ok {
			continue
		}
		i.mu.RLock()
		value := i.values[prop.Name]
		i.mu.RUnlock()
		for _, validate := range validators {
			err := validate(value, i)
			if err == nil {
				continue
			}
			if i.model.conn.metrics != nil {
				i.model.conn.metrics.ValidationFailures.WithLabelValues(i.model.def.Name, prop.Name).Inc()
			}
			if verr, ok := err.(*ValidationError); ok {
				return verr
			}
			return &ValidationError{Model: i.model.def.Name, Property: prop.Name, Reason: err.Error()}
		}
	}
	return nil
}

func (i *Instance) insert(ctx context.Context) error {
	def := i.model.def

	i.mu.Lock()
	if i.model.uuidKey {
		if v, ok := i.values[def.Key()]; !ok || v == nil || v == "" {
			i.values[def.Key()] = uuid.NewString()
		}
	}
	row := make(driver.Row, len(i.values))
	for _, prop := range def.Properties {
		v, ok := i.values[prop.Name]
		if !ok {
			if prop.DefaultValue != nil {
				v = prop.DefaultValue
				i.values[prop.Name] = v
			} else {
				continue
			}
		}
		encoded, err := prop.Encode(v)
		if err != nil {
			i.mu.Unlock()
			return fmt.Errorf("model %s: %w", def.Name, err)
		}
		row[prop.Name] = encoded
	}
	i.mu.Unlock()

	columns := make([]string, 0, len(row))
	for name := range row {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	returned, err := i.model.conn.query(ctx, def.Name, &driver.Statement{
		Kind:    driver.KindInsert,
		Table:   def.Table,
		Columns: columns,
		Values:  row,
		Keys:    def.Keys,
	})
	if err != nil {
		return err
	}

	i.mu.Lock()
	if len(returned) > 0 {
		for _, key := range def.Keys {
			raw, ok := returned[0][key]
			if !ok {
				continue
			}
			v, err := def.Property(key).Normalize(raw)
			if err != nil {
				i.mu.Unlock()
				return fmt.Errorf("model %s: %w", def.Name, err)
			}
			i.values[key] = v
		}
	}
	i.isNew = false
	i.dirty = make(map[string]struct{})
	key, keyErr := i.model.keyStringOf(i.values)
	i.mu.Unlock()

	if keyErr == nil {
		i.model.conn.cache.Put(def.Name, key, i)
	}
	return nil
}

func (i *Instance) update(ctx context.Context) error {
	def := i.model.def

	i.mu.Lock()
	columns := make([]string, 0, len(i.dirty))
	for name := range i.dirty {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	row := make(driver.Row, len(columns))
	for _, name := range columns {
		encoded, err := def.Property(name).Encode(i.values[name])
		if err != nil {
			i.mu.Unlock()
			return fmt.Errorf("model %s: %w", def.Name, err)
		}
		row[name] = encoded
	}
	conds := make([]driver.Condition, len(def.Keys))
	for n, k := range def.Keys {
		conds[n] = driver.Eq(k, i.values[k])
	}
	i.mu.Unlock()

	if _, err := i.model.conn.exec(ctx, def.Name, &driver.Statement{
		Kind:       driver.KindUpdate,
		Table:      def.Table,
		Columns:    columns,
		Values:     row,
		Conditions: conds,
	}); err != nil {
		return err
	}

	i.mu.Lock()
	i.dirty = make(map[string]struct{})
	i.mu.Unlock()
	return nil
}

// Remove runs BeforeRemove and deletes the instance's row. On success the
// cache entry is evicted and the instance reverts to unpersisted, so a later
// Save would insert it again.
func (i *Instance) Remove(ctx context.Context) error {
	if i.IsNew() {
		return ErrNotPersisted
	}
	if i.model.hooks.BeforeRemove != nil {
		if err := i.model.hooks.BeforeRemove(ctx, i); err != nil {
			return err
		}
	}

	def := i.model.def
	i.mu.RLock()
	conds := make([]driver.Condition, len(def.Keys))
	for n, k := range def.Keys {
		conds[n] = driver.Eq(k, i.values[k])
	}
	i.mu.RUnlock()

	if _, err := i.model.conn.exec(ctx, def.Name, &driver.Statement{
		Kind:       driver.KindDelete,
		Table:      def.Table,
		Conditions: conds,
	}); err != nil {
		return err
	}

	i.evict()
	i.mu.Lock()
	i.isNew = true
	for name := range i.values {
		i.dirty[name] = struct{}{}
	}
	i.mu.Unlock()
	return nil
}

// evict drops the instance's identity-cache entry, if any.
func (i *Instance) evict() {
	i.mu.RLock()
	key, err := i.model.keyStringOf(i.values)
	i.mu.RUnlock()
	if err != nil {
		return
	}
	i.model.conn.cache.Invalidate(i.model.def.Name, key)
}

// applyValues refreshes property values in place, used when a driver row is
// reconciled against an already-cached instance.
func (i *Instance) applyValues(values map[string]any) {
	i.mu.Lock()
	for k, v := range values {
		i.values[k] = v
	}
	i.mu.Unlock()
}

func (i *Instance) setExtra(extra map[string]any) {
	i.mu.Lock()
	i.extra = extra
	i.mu.Unlock()
}

func (i *Instance) setRelated(name string, value any) {
	i.mu.Lock()
	if i.related == nil {
		i.related = make(map[string]any)
	}
	i.related[name] = value
	i.mu.Unlock()
}

func (i *Instance) getRelated(name string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.related[name]
	return v, ok
}

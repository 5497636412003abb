package orm

import (
	"context"
	"fmt"

	"github.com/strataorm/strata/pkg/cache"
	"github.com/strataorm/strata/pkg/driver"
	"github.com/strataorm/strata/pkg/schema"
)

// Model is the programmatic surface of one defined model: construction,
// lookup, querying and association declaration.
type Model struct {
	conn        *Connection
	def         *schema.ModelDefinition
	hooks       Hooks
	methods     map[string]Method
	validations map[string][]ValidatorFunc

	serialKey bool // single integer key generated by the engine
	uuidKey   bool
}

// Name returns the model name.
func (m *Model) Name() string { return m.def.Name }

// Definition returns the model's schema metadata.
func (m *Model) Definition() *schema.ModelDefinition { return m.def }

// New builds an unsaved instance from initial property values. Unknown
// properties are rejected on Save, not here; use Set for checked writes.
func (m *Model) New(values map[string]any) *Instance {
	inst := &Instance{
		model:  m,
		values: make(map[string]any, len(values)),
		dirty:  make(map[string]struct{}, len(values)),
		isNew:  true,
	}
	for k, v := range values {
		inst.values[k] = v
		inst.dirty[k] = struct{}{}
	}
	return inst
}

// Create builds and saves an instance in one step.
func (m *Model) Create(ctx context.Context, values map[string]any) (*Instance, error) {
	inst := m.New(values)
	if err := inst.Save(ctx); err != nil {
		return nil, err
	}
	return inst, nil
}

// Get loads the instance with the given primary-key value. Absence is not
// an error: a missing row yields (nil, nil). While the model's cache holds
// the key, every Get returns the identical instance; concurrent first loads
// share a single driver fetch.
func (m *Model) Get(ctx context.Context, id any) (*Instance, error) {
	key := cache.KeyOf(id)

	value, hit, err := m.conn.cache.Fetch(m.def.Name, key, func() (any, error) {
		inst, err := m.fetchByKey(ctx, id)
		if err != nil {
			return nil, err
		}
		if inst == nil {
			return nil, nil
		}
		return inst, nil
	})
	m.conn.cacheHit(m.def.Name, hit)

	if err != nil || value == nil {
		return nil, err
	}
	return value.(*Instance), nil
}

func (m *Model) fetchByKey(ctx context.Context, id any) (*Instance, error) {
	rows, err := m.conn.query(ctx, m.def.Name, &driver.Statement{
		Kind:       driver.KindSelect,
		Table:      m.def.Table,
		Conditions: []driver.Condition{driver.Eq(m.def.Key(), id)},
		Limit:      intPtr(1),
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return m.hydrate(ctx, rows[0], nil, newTraversal(m.def.AutoFetchLimit))
}

// Find starts a query over the model. Multiple condition maps combine as a
// conjunction.
func (m *Model) Find(conds ...Conditions) *Query {
	q := &Query{model: m}
	for _, c := range conds {
		q = q.Where(c)
	}
	return q
}

// All executes an unconstrained query.
func (m *Model) All(ctx context.Context) ([]*Instance, error) {
	return m.Find().Execute(ctx)
}

// One returns the first instance matching the conditions, or (nil, nil).
func (m *Model) One(ctx context.Context, conds ...Conditions) (*Instance, error) {
	return m.Find(conds...).One(ctx)
}

// Count asks the driver for the number of matching rows.
func (m *Model) Count(ctx context.Context, conds ...Conditions) (int64, error) {
	return m.Find(conds...).Count(ctx)
}

// Exists reports whether any row matches the conditions.
func (m *Model) Exists(ctx context.Context, conds ...Conditions) (bool, error) {
	return m.Find(conds...).Exists(ctx)
}

// ClearCache evicts every cached instance of the model.
func (m *Model) ClearCache() {
	m.conn.cache.Clear(m.def.Name)
}

// hydrate reconciles one driver row against the identity cache: a cached
// instance is refreshed in place and reused, a new row creates and caches a
// fresh instance. Projection leaves unselected properties unset. AfterLoad
// fires after reconciliation; auto-fetch resolution follows when the model
// enables it.
func (m *Model) hydrate(ctx context.Context, row driver.Row, projection []string, trav *traversal) (*Instance, error) {
	values, err := m.normalizeRow(row, projection)
	if err != nil {
		return nil, err
	}

	key, err := m.keyStringOf(values)
	if err != nil {
		return nil, err
	}

	candidate := &Instance{model: m, values: values, dirty: make(map[string]struct{})}
	value, existed := m.conn.cache.Reconcile(m.def.Name, key, candidate)
	inst := value.(*Instance)
	if existed {
		inst.applyValues(values)
	}

	if m.hooks.AfterLoad != nil {
		m.hooks.AfterLoad(ctx, inst)
	}

	if m.def.AutoFetch && trav != nil {
		if err := m.autoFetch(ctx, inst, trav); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// normalizeRow converts raw driver values into canonical property values.
// Columns outside the declared property list are dropped.
func (m *Model) normalizeRow(row driver.Row, projection []string) (map[string]any, error) {
	columns := projection
	if len(columns) == 0 {
		columns = m.def.PropertyNames()
	}

	values := make(map[string]any, len(columns))
	for _, name := range columns {
		prop := m.def.Property(name)
		if prop == nil {
			continue
		}
		raw, ok := row[name]
		if !ok {
			continue
		}
		v, err := prop.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.def.Name, err)
		}
		values[name] = v
	}
	return values, nil
}

func (m *Model) keyStringOf(values map[string]any) (string, error) {
	keyValues := make([]any, len(m.def.Keys))
	for i, k := range m.def.Keys {
		v, ok := values[k]
		if !ok || v == nil {
			return "", fmt.Errorf("model %s: row missing key property %s", m.def.Name, k)
		}
		keyValues[i] = v
	}
	return cache.KeyOf(keyValues...), nil
}

// tableDefinition renders the model's table shape for the driver.
func (m *Model) tableDefinition() *driver.TableDefinition {
	def := &driver.TableDefinition{Name: m.def.Table, Keys: m.def.Keys}
	for _, prop := range m.def.Properties {
		def.Columns = append(def.Columns, driver.ColumnDefinition{
			Name:     prop.Name,
			Type:     prop.Type,
			Size:     prop.Size,
			Required: prop.Required,
			Serial:   m.serialKey && prop.Name == m.def.Key(),
		})
	}
	return def
}

func joinTableDefinition(assoc *schema.Association, sourceKey, targetKey schema.PropertyType) *driver.TableDefinition {
	def := &driver.TableDefinition{
		Name: assoc.JoinTable,
		Columns: []driver.ColumnDefinition{
			{Name: assoc.SourceColumn, Type: sourceKey, Required: true},
			{Name: assoc.TargetColumn, Type: targetKey, Required: true},
		},
		Keys: []string{assoc.SourceColumn, assoc.TargetColumn},
	}
	for _, extra := range assoc.ExtraColumns {
		def.Columns = append(def.Columns, driver.ColumnDefinition{
			Name: extra.Name,
			Type: extra.Type,
			Size: extra.Size,
		})
	}
	return def
}

func intPtr(n int) *int { return &n }

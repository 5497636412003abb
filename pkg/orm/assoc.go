package orm

import (
	"context"
	"fmt"
	"strings"

	"github.com/strataorm/strata/pkg/driver"
	"github.com/strataorm/strata/pkg/schema"
	"github.com/strataorm/strata/pkg/settings"
)

type assocConfig struct {
	foreignKey string
	joinTable  string
	reverse    string
	extras     []schema.Property
}

// AssocOption configures an association declaration.
type AssocOption func(*assocConfig)

// WithForeignKey overrides the owning model's foreign-key property name
// (to-one only).
func WithForeignKey(name string) AssocOption {
	return func(cfg *assocConfig) { cfg.foreignKey = name }
}

// WithJoinTable overrides the join-table name (to-many only).
func WithJoinTable(name string) AssocOption {
	return func(cfg *assocConfig) { cfg.joinTable = name }
}

// WithReverse synthesizes the mirror accessor on the target model. The two
// halves share one join table with the column roles swapped, so an edge
// added through either side is visible through both.
func WithReverse(name string) AssocOption {
	return func(cfg *assocConfig) { cfg.reverse = name }
}

// WithExtraColumns attaches payload columns to the join table, readable per
// edge through Instance.Extra after a to-many fetch.
func WithExtraColumns(props ...schema.Property) AssocOption {
	return func(cfg *assocConfig) { cfg.extras = props }
}

// HasOne declares a to-one association resolved through a foreign-key
// property on this model. The property is synthesized when not already
// declared, typed after the target's key, and nullable: a nil foreign key
// means "no associated instance".
func (m *Model) HasOne(name string, target *Model, opts ...AssocOption) error {
	cfg := &assocConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	fk := cfg.foreignKey
	if fk == "" {
		fk = schema.AssociationKeyTemplate(m.assocKeyTemplate(), name)
	}

	assoc := &schema.Association{
		Kind:       schema.HasOne,
		Name:       name,
		Source:     m.def.Name,
		Target:     target.def.Name,
		ForeignKey: fk,
	}
	if err := m.def.AddAssociation(assoc); err != nil {
		return err
	}

	if !m.def.HasProperty(fk) {
		keyType := target.def.Property(target.def.Key()).Type
		if err := m.def.AddProperty(schema.Property{Name: fk, Type: keyType}); err != nil {
			return err
		}
	}
	return nil
}

// HasMany declares a to-many association resolved through a join table
// holding one row per edge. With WithReverse the matched accessor appears on
// the target model as well.
func (m *Model) HasMany(name string, target *Model, opts ...AssocOption) error {
	cfg := &assocConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	joinTable := cfg.joinTable
	if joinTable == "" {
		joinTable = fmt.Sprintf("%s_%s", m.def.Table, name)
	}
	template := m.assocKeyTemplate()

	assoc := &schema.Association{
		Kind:         schema.HasMany,
		Name:         name,
		Source:       m.def.Name,
		Target:       target.def.Name,
		JoinTable:    joinTable,
		SourceColumn: schema.AssociationKeyTemplate(template, strings.ToLower(m.def.Name)),
		TargetColumn: schema.AssociationKeyTemplate(template, name),
		ExtraColumns: cfg.extras,
		Reverse:      cfg.reverse,
	}
	if err := m.def.AddAssociation(assoc); err != nil {
		return err
	}

	if cfg.reverse != "" {
		if err := target.def.AddAssociation(assoc.ReverseOf()); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) assocKeyTemplate() string {
	return m.conn.settings.GetString(settings.KeyAssociationKey, "{name}_id")
}

func (i *Instance) association(name string, kind schema.AssociationKind) (*schema.Association, error) {
	assoc := i.model.def.Association(name)
	if assoc == nil {
		return nil, fmt.Errorf("model %s: %w: %s", i.model.def.Name, ErrNoAssociation, name)
	}
	if assoc.Kind != kind {
		return nil, fmt.Errorf("model %s.%s: %w", i.model.def.Name, name, ErrWrongAssociationKind)
	}
	return assoc, nil
}

// Related resolves a to-one association. A nil foreign key yields (nil, nil).
// The load goes through the target's identity cache.
func (i *Instance) Related(ctx context.Context, name string) (*Instance, error) {
	assoc, err := i.association(name, schema.HasOne)
	if err != nil {
		return nil, err
	}
	fk, err := i.Get(assoc.ForeignKey)
	if err != nil {
		return nil, err
	}
	if fk == nil {
		return nil, nil
	}
	target, err := i.targetOf(assoc)
	if err != nil {
		return nil, err
	}
	return target.Get(ctx, fk)
}

// SetRelated points a to-one association at another instance by writing the
// foreign-key property. It does not save the owner; call Save (or enable
// auto-save) to persist. A nil other clears the association.
func (i *Instance) SetRelated(ctx context.Context, name string, other *Instance) error {
	assoc, err := i.association(name, schema.HasOne)
	if err != nil {
		return err
	}

	var fk any
	if other != nil {
		if other.IsNew() {
			return ErrNotPersisted
		}
		fk = other.ID()
	}
	if err := i.Set(ctx, assoc.ForeignKey, fk); err != nil {
		return err
	}
	i.setRelated(name, other)
	return nil
}

// RelatedAll resolves a to-many association: one instance per join-table
// edge, each carrying that edge's extra columns. Optional conditions narrow
// the targets further. Order is unspecified.
func (i *Instance) RelatedAll(ctx context.Context, name string, conds ...Conditions) ([]*Instance, error) {
	assoc, err := i.association(name, schema.HasMany)
	if err != nil {
		return nil, err
	}
	if i.IsNew() {
		return nil, ErrNotPersisted
	}
	target, err := i.targetOf(assoc)
	if err != nil {
		return nil, err
	}

	edges, err := i.model.conn.query(ctx, i.model.def.Name, &driver.Statement{
		Kind:       driver.KindSelect,
		Table:      assoc.JoinTable,
		Conditions: []driver.Condition{driver.Eq(assoc.SourceColumn, i.ID())},
	})
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}

	ids := make([]any, len(edges))
	extras := make(map[string]map[string]any, len(edges))
	for n, edge := range edges {
		id := edge[assoc.TargetColumn]
		ids[n] = id
		if len(assoc.ExtraColumns) > 0 {
			extra := make(map[string]any, len(assoc.ExtraColumns))
			for _, col := range assoc.ExtraColumns {
				extra[col.Name] = edge[col.Name]
			}
			extras[fmt.Sprint(id)] = extra
		}
	}

	q := target.Find(Conditions{target.def.Key(): ids})
	for _, c := range conds {
		q = q.Where(c)
	}
	instances, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		if extra, ok := extras[fmt.Sprint(inst.ID())]; ok {
			inst.setExtra(extra)
		}
	}
	return instances, nil
}

// AddRelated records one to-many edge, with optional extra-column values.
// Both sides must be persisted. Adding through the reverse half of a
// symmetric pair lands in the same join table.
func (i *Instance) AddRelated(ctx context.Context, name string, other *Instance, extra map[string]any) error {
	assoc, err := i.association(name, schema.HasMany)
	if err != nil {
		return err
	}
	if i.IsNew() || other.IsNew() {
		return ErrNotPersisted
	}

	row := driver.Row{
		assoc.SourceColumn: i.ID(),
		assoc.TargetColumn: other.ID(),
	}
	columns := []string{assoc.SourceColumn, assoc.TargetColumn}
	for _, col := range assoc.ExtraColumns {
		if v, ok := extra[col.Name]; ok {
			row[col.Name] = v
			columns = append(columns, col.Name)
		}
	}

	_, err = i.model.conn.query(ctx, i.model.def.Name, &driver.Statement{
		Kind:    driver.KindInsert,
		Table:   assoc.JoinTable,
		Columns: columns,
		Values:  row,
	})
	return err
}

// RemoveRelated deletes the edge between the two instances, if present.
func (i *Instance) RemoveRelated(ctx context.Context, name string, other *Instance) error {
	assoc, err := i.association(name, schema.HasMany)
	if err != nil {
		return err
	}
	if i.IsNew() || other.IsNew() {
		return ErrNotPersisted
	}
	_, err = i.model.conn.exec(ctx, i.model.def.Name, &driver.Statement{
		Kind:  driver.KindDelete,
		Table: assoc.JoinTable,
		Conditions: []driver.Condition{
			driver.Eq(assoc.SourceColumn, i.ID()),
			driver.Eq(assoc.TargetColumn, other.ID()),
		},
	})
	return err
}

// HasRelated reports whether an edge exists between the two instances.
func (i *Instance) HasRelated(ctx context.Context, name string, other *Instance) (bool, error) {
	assoc, err := i.association(name, schema.HasMany)
	if err != nil {
		return false, err
	}
	if i.IsNew() || other.IsNew() {
		return false, ErrNotPersisted
	}
	n, err := i.model.conn.count(ctx, i.model.def.Name, &driver.Statement{
		Kind:  driver.KindCount,
		Table: assoc.JoinTable,
		Conditions: []driver.Condition{
			driver.Eq(assoc.SourceColumn, i.ID()),
			driver.Eq(assoc.TargetColumn, other.ID()),
		},
	})
	return n > 0, err
}

func (i *Instance) targetOf(assoc *schema.Association) (*Model, error) {
	return i.model.conn.Model(assoc.Target)
}

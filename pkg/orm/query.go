package orm

import (
	"context"

	"github.com/strataorm/strata/pkg/driver"
)

// Query is an immutable description of a model lookup. Every builder method
// returns a copy; no driver work happens until a terminal (Execute, One,
// Count, Exists, Remove) runs. Condition maps compile eagerly so an unknown
// property surfaces on the first terminal instead of being silently dropped.
type Query struct {
	model      *Model
	conditions []driver.Condition
	order      []driver.OrderBy
	limit      *int
	offset     *int
	projection []string
	err        error
}

func (q *Query) clone() *Query {
	dup := &Query{model: q.model, limit: q.limit, offset: q.offset, err: q.err}
	dup.conditions = append(dup.conditions, q.conditions...)
	dup.order = append(dup.order, q.order...)
	dup.projection = append(dup.projection, q.projection...)
	return dup
}

// Where adds conditions to the conjunction.
func (q *Query) Where(conds Conditions) *Query {
	dup := q.clone()
	if dup.err != nil {
		return dup
	}
	compiled, err := compileConditions(q.model.def, conds)
	if err != nil {
		dup.err = err
		return dup
	}
	dup.conditions = append(dup.conditions, compiled...)
	return dup
}

// OrderBy appends a sort key. Later keys break ties of earlier ones.
func (q *Query) OrderBy(property string, dir driver.OrderDirection) *Query {
	dup := q.clone()
	if dup.err != nil {
		return dup
	}
	if !q.model.def.HasProperty(property) {
		dup.err = unknownProperty(q.model.def, property)
		return dup
	}
	dup.order = append(dup.order, driver.OrderBy{Column: property, Direction: dir})
	return dup
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	dup := q.clone()
	dup.limit = &n
	return dup
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	dup := q.clone()
	dup.offset = &n
	return dup
}

// Only restricts hydration to the named properties. Key properties are
// always included so cache reconciliation stays possible.
func (q *Query) Only(properties ...string) *Query {
	dup := q.clone()
	if dup.err != nil {
		return dup
	}
	seen := make(map[string]bool, len(properties)+len(q.model.def.Keys))
	var cols []string
	for _, key := range q.model.def.Keys {
		seen[key] = true
		cols = append(cols, key)
	}
	for _, p := range properties {
		if !q.model.def.HasProperty(p) {
			dup.err = unknownProperty(q.model.def, p)
			return dup
		}
		if !seen[p] {
			seen[p] = true
			cols = append(cols, p)
		}
	}
	dup.projection = cols
	return dup
}

// Chain lifts the query into a lazy cursor for staged filtering.
func (q *Query) Chain() *Cursor {
	return &Cursor{query: q}
}

// Execute runs the query and hydrates every matching row.
func (q *Query) Execute(ctx context.Context) ([]*Instance, error) {
	if q.err != nil {
		return nil, q.err
	}
	rows, err := q.model.conn.query(ctx, q.model.def.Name, q.statement(driver.KindSelect))
	if err != nil {
		return nil, err
	}
	instances := make([]*Instance, 0, len(rows))
	trav := newTraversal(q.model.def.AutoFetchLimit)
	for _, row := range rows {
		inst, err := q.model.hydrate(ctx, row, q.projection, trav)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// One returns the first matching instance, or (nil, nil) when nothing
// matches.
func (q *Query) One(ctx context.Context) (*Instance, error) {
	instances, err := q.Limit(1).Execute(ctx)
	if err != nil || len(instances) == 0 {
		return nil, err
	}
	return instances[0], nil
}

// Count delegates counting to the engine; rows are never materialized.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	return q.model.conn.count(ctx, q.model.def.Name, q.statement(driver.KindCount))
}

// Exists reports whether at least one row matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	n, err := q.Count(ctx)
	return n > 0, err
}

// Remove deletes every matching row in one statement, without loading
// instances or running remove hooks. Limit, offset and order do not apply.
// Matching cache entries are evicted.
func (q *Query) Remove(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	affected, err := q.model.conn.exec(ctx, q.model.def.Name, &driver.Statement{
		Kind:       driver.KindDelete,
		Table:      q.model.def.Table,
		Conditions: q.conditions,
	})
	if err != nil {
		return 0, err
	}
	// Bulk deletes cannot tell which keys went away.
	q.model.ClearCache()
	return affected, nil
}

func (q *Query) statement(kind driver.Kind) *driver.Statement {
	return &driver.Statement{
		Kind:       kind,
		Table:      q.model.def.Table,
		Columns:    q.projection,
		Conditions: q.conditions,
		Order:      q.order,
		Limit:      q.limit,
		Offset:     q.offset,
	}
}

package orm

import (
	"context"
	"sort"

	"github.com/strataorm/strata/pkg/driver"
)

// Cursor chains in-process stages on top of a Query. Stages accumulate
// lazily; the driver is not touched until a terminal (Get, Count, Remove,
// Save, ForEach's terminal Run) executes. Filter and Sort stages run on
// hydrated instances, so they can use logic the engine cannot express.
type Cursor struct {
	query   *Query
	filters []func(*Instance) bool
	less    func(a, b *Instance) bool
	each    []func(*Instance)
}

func (c *Cursor) clone() *Cursor {
	dup := &Cursor{query: c.query, less: c.less}
	dup.filters = append(dup.filters, c.filters...)
	dup.each = append(dup.each, c.each...)
	return dup
}

// Filter keeps only instances the predicate accepts. Filters stack as a
// conjunction.
func (c *Cursor) Filter(pred func(*Instance) bool) *Cursor {
	dup := c.clone()
	dup.filters = append(dup.filters, pred)
	return dup
}

// Sort orders the materialized instances with the comparator. A later Sort
// replaces an earlier one. The sort is stable.
func (c *Cursor) Sort(less func(a, b *Instance) bool) *Cursor {
	dup := c.clone()
	dup.less = less
	return dup
}

// ForEach registers a callback run once per surviving instance when a
// terminal executes.
func (c *Cursor) ForEach(fn func(*Instance)) *Cursor {
	dup := c.clone()
	dup.each = append(dup.each, fn)
	return dup
}

// Get executes the chain and returns the surviving instances.
func (c *Cursor) Get(ctx context.Context) ([]*Instance, error) {
	return c.materialize(ctx)
}

// Count returns the number of surviving instances. Without filter stages the
// count stays engine-side and no rows are loaded.
func (c *Cursor) Count(ctx context.Context) (int64, error) {
	if len(c.filters) == 0 {
		return c.query.Count(ctx)
	}
	instances, err := c.materialize(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(instances)), nil
}

// Remove deletes the surviving instances. Without filter stages the delete
// runs as a single engine-side statement; with filters, matching rows are
// loaded, filtered, and deleted by key. Remove hooks do not run on either
// path.
func (c *Cursor) Remove(ctx context.Context) (int64, error) {
	if len(c.filters) == 0 {
		return c.query.Remove(ctx)
	}

	// Limit, offset and sort do not apply to removal; match against the
	// full condition set.
	whole := c.clone()
	whole.query = c.query.clone()
	whole.query.limit = nil
	whole.query.offset = nil
	whole.query.order = nil
	whole.less = nil

	instances, err := whole.materialize(ctx)
	if err != nil {
		return 0, err
	}
	if len(instances) == 0 {
		return 0, nil
	}

	model := c.query.model
	var affected int64
	if len(model.def.Keys) == 1 {
		key := model.def.Key()
		ids := make([]any, len(instances))
		for i, inst := range instances {
			ids[i] = inst.MustGet(key)
		}
		affected, err = model.conn.exec(ctx, model.def.Name, &driver.Statement{
			Kind:       driver.KindDelete,
			Table:      model.def.Table,
			Conditions: []driver.Condition{driver.In(key, ids...)},
		})
		if err != nil {
			return 0, err
		}
	} else {
		for _, inst := range instances {
			conds := make([]driver.Condition, len(model.def.Keys))
			for i, k := range model.def.Keys {
				conds[i] = driver.Eq(k, inst.MustGet(k))
			}
			n, err := model.conn.exec(ctx, model.def.Name, &driver.Statement{
				Kind:       driver.KindDelete,
				Table:      model.def.Table,
				Conditions: conds,
			})
			if err != nil {
				return affected, err
			}
			affected += n
		}
	}

	for _, inst := range instances {
		inst.evict()
	}
	return affected, nil
}

// Save persists every surviving instance that carries unsaved changes,
// running the full save pipeline for each.
func (c *Cursor) Save(ctx context.Context) error {
	instances, err := c.materialize(ctx)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if !inst.IsDirty() {
			continue
		}
		if err := inst.Save(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cursor) materialize(ctx context.Context) ([]*Instance, error) {
	instances, err := c.query.Execute(ctx)
	if err != nil {
		return nil, err
	}

	if len(c.filters) > 0 {
		kept := instances[:0]
		for _, inst := range instances {
			ok := true
			for _, pred := range c.filters {
				if !pred(inst) {
					ok = false
					break
				}
			}
			if ok {
				kept = append(kept, inst)
			}
		}
		instances = kept
	}

	if c.less != nil {
		sort.SliceStable(instances, func(i, j int) bool {
			return c.less(instances[i], instances[j])
		})
	}

	for _, fn := range c.each {
		for _, inst := range instances {
			fn(inst)
		}
	}
	return instances, nil
}

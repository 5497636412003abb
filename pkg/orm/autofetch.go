package orm

import (
	"context"
	"fmt"

	"github.com/strataorm/strata/pkg/cache"
	"github.com/strataorm/strata/pkg/driver"
	"github.com/strataorm/strata/pkg/schema"
)

// traversal carries the remaining hop budget and the visited set of one
// auto-fetch walk. The visited set is shared across the whole walk so
// cyclic associations revisit an instance at most once; a revisit is a
// no-op, not an error.
type traversal struct {
	hops    int
	visited map[string]bool
}

func newTraversal(hops int) *traversal {
	return &traversal{hops: hops, visited: make(map[string]bool)}
}

// spend returns the traversal for one hop deeper, sharing the visited set.
func (t *traversal) spend() *traversal {
	return &traversal{hops: t.hops - 1, visited: t.visited}
}

func (t *traversal) visit(model, key string) bool {
	id := model + "\x00" + key
	if t.visited[id] {
		return false
	}
	t.visited[id] = true
	return true
}

// autoFetch eagerly resolves the instance's associations, spending one hop
// per association level until the budget runs out. Resolved values land in
// the instance's related set, readable without further driver round trips.
func (m *Model) autoFetch(ctx context.Context, inst *Instance, trav *traversal) error {
	inst.mu.RLock()
	key, err := m.keyStringOf(inst.values)
	inst.mu.RUnlock()
	if err != nil {
		return err
	}
	if !trav.visit(m.def.Name, key) {
		return nil
	}
	if trav.hops <= 0 {
		return nil
	}

	child := trav.spend()
	for _, assoc := range m.def.Associations {
		switch assoc.Kind {
		case schema.HasOne:
			if err := m.autoFetchOne(ctx, inst, assoc, child); err != nil {
				return err
			}
		case schema.HasMany:
			if err := m.autoFetchMany(ctx, inst, assoc, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) autoFetchOne(ctx context.Context, inst *Instance, assoc *schema.Association, trav *traversal) error {
	fk, err := inst.Get(assoc.ForeignKey)
	if err != nil {
		return err
	}
	if fk == nil {
		inst.setRelated(assoc.Name, (*Instance)(nil))
		return nil
	}
	target, err := m.conn.Model(assoc.Target)
	if err != nil {
		return err
	}
	related, err := target.getWithTraversal(ctx, fk, trav)
	if err != nil {
		return err
	}
	inst.setRelated(assoc.Name, related)
	return nil
}

func (m *Model) autoFetchMany(ctx context.Context, inst *Instance, assoc *schema.Association, trav *traversal) error {
	target, err := m.conn.Model(assoc.Target)
	if err != nil {
		return err
	}

	edges, err := m.conn.query(ctx, m.def.Name, &driver.Statement{
		Kind:       driver.KindSelect,
		Table:      assoc.JoinTable,
		Conditions: []driver.Condition{driver.Eq(assoc.SourceColumn, inst.ID())},
	})
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		inst.setRelated(assoc.Name, []*Instance(nil))
		return nil
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
	rows, err := m.conn.query(ctx, target.def.Name, &driver.Statement{
		Kind:       driver.KindSelect,
		Table:      target.def.Table,
		Conditions: []driver.Condition{driver.In(target.def.Key(), ids...)},
	})
	if err != nil {
		return err
	}

	related := make([]*Instance, 0, len(rows))
	for _, row := range rows {
		ri, err := target.hydrate(ctx, row, nil, trav)
		if err != nil {
			return err
		}
		if extra, ok := extras[fmt.Sprint(ri.ID())]; ok {
			ri.setExtra(extra)
		}
		related = append(related, ri)
	}
	inst.setRelated(assoc.Name, related)
	return nil
}

// getWithTraversal is Get continuing an in-flight auto-fetch walk instead of
// starting a fresh one.
func (m *Model) getWithTraversal(ctx context.Context, id any, trav *traversal) (*Instance, error) {
	if cached, ok := m.conn.cache.Get(m.def.Name, cache.KeyOf(id)); ok {
		inst := cached.(*Instance)
		if m.def.AutoFetch {
			if err := m.autoFetch(ctx, inst, trav); err != nil {
				return nil, err
			}
		}
		return inst, nil
	}

	rows, err := m.conn.query(ctx, m.def.Name, &driver.Statement{
		Kind:       driver.KindSelect,
		Table:      m.def.Table,
		Conditions: []driver.Condition{driver.Eq(m.def.Key(), id)},
		Limit:      intPtr(1),
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return m.hydrate(ctx, rows[0], nil, trav)
}

// Fetched returns an association value resolved by auto-fetch, without
// touching the driver. The second return is false when the walk never
// resolved the association.
func (i *Instance) Fetched(name string) (any, bool) {
	if i.model.def.Association(name) == nil {
		return nil, false
	}
	v, ok := i.getRelated(name)
	if !ok {
		return nil, false
	}
	// Normalize typed nils so callers can compare against plain nil.
	switch t := v.(type) {
	case *Instance:
		if t == nil {
			return nil, true
		}
	case []*Instance:
		if t == nil {
			return []*Instance(nil), true
		}
	}
	return v, true
}

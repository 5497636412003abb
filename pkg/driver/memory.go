package driver

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/strataorm/strata/pkg/schema"
)

// MemoryDriver is a complete in-process Driver over plain Go maps. It backs
// the unit tests and the runnable example, and doubles as a reference for
// the statement semantics adapters must honor: conjunction of clauses,
// inclusive BETWEEN, IN over a value set, order/limit/offset applied after
// filtering.
type MemoryDriver struct {
	mu      sync.Mutex
	tables  map[string]*memTable
	queries atomic.Int64
}

type memTable struct {
	def    *TableDefinition
	rows   []Row
	serial int64
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{tables: make(map[string]*memTable)}
}

// QueryCount reports how many row-returning statements have executed. Test
// hook for verifying chain laziness.
func (m *MemoryDriver) QueryCount() int64 {
	return m.queries.Load()
}

// Query implements Driver.
func (m *MemoryDriver) Query(ctx context.Context, stmt *Statement) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("memory", opName(stmt.Kind), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch stmt.Kind {
	case KindSelect:
		m.queries.Add(1)
		return m.selectRows(stmt)
	case KindInsert:
		return m.insertRow(stmt)
	}
	return nil, wrapErr("memory", opName(stmt.Kind), fmt.Errorf("not a row-returning statement"))
}

// Exec implements Driver.
func (m *MemoryDriver) Exec(ctx context.Context, stmt *Statement) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrapErr("memory", opName(stmt.Kind), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch stmt.Kind {
	case KindCreateTable:
		if stmt.Define == nil {
			return 0, wrapErr("memory", "create table", fmt.Errorf("no definition"))
		}
		if _, ok := m.tables[stmt.Define.Name]; !ok {
			m.tables[stmt.Define.Name] = &memTable{def: stmt.Define}
		}
		return 0, nil

	case KindDropTable:
		if stmt.Define == nil {
			return 0, wrapErr("memory", "drop table", fmt.Errorf("no definition"))
		}
		delete(m.tables, stmt.Define.Name)
		return 0, nil

	case KindUpdate:
		table, err := m.table(stmt.Table)
		if err != nil {
			return 0, err
		}
		var affected int64
		for _, row := range table.rows {
			ok, err := matchesAll(row, stmt.Conditions)
			if err != nil {
				return 0, wrapErr("memory", "update", err)
			}
			if !ok {
				continue
			}
			for col, val := range stmt.Values {
				row[col] = val
			}
			affected++
		}
		return affected, nil

	case KindDelete:
		table, err := m.table(stmt.Table)
		if err != nil {
			return 0, err
		}
		kept := table.rows[:0]
		var affected int64
		for _, row := range table.rows {
			ok, err := matchesAll(row, stmt.Conditions)
			if err != nil {
				return 0, wrapErr("memory", "delete", err)
			}
			if ok {
				affected++
				continue
			}
			kept = append(kept, row)
		}
		table.rows = kept
		return affected, nil
	}
	return 0, wrapErr("memory", opName(stmt.Kind), fmt.Errorf("unsupported statement"))
}

// Count implements Driver.
func (m *MemoryDriver) Count(ctx context.Context, stmt *Statement) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrapErr("memory", "count", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.table(stmt.Table)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, row := range table.rows {
		ok, err := matchesAll(row, stmt.Conditions)
		if err != nil {
			return 0, wrapErr("memory", "count", err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// EscapeIdentifier implements Driver.
func (m *MemoryDriver) EscapeIdentifier(name string) string {
	return `"` + name + `"`
}

// Close implements Driver.
func (m *MemoryDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = make(map[string]*memTable)
	return nil
}

func (m *MemoryDriver) table(name string) (*memTable, error) {
	table, ok := m.tables[name]
	if !ok {
		return nil, wrapErr("memory", "lookup", fmt.Errorf("no such table: %s", name))
	}
	return table, nil
}

func (m *MemoryDriver) selectRows(stmt *Statement) ([]Row, error) {
	table, err := m.table(stmt.Table)
	if err != nil {
		return nil, err
	}

	var matched []Row
	for _, row := range table.rows {
		ok, err := matchesAll(row, stmt.Conditions)
		if err != nil {
			return nil, wrapErr("memory", "select", err)
		}
		if ok {
			matched = append(matched, row)
		}
	}

	if len(stmt.Order) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range stmt.Order {
				c := compareValues(matched[i][o.Column], matched[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if stmt.Offset != nil {
		if *stmt.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[*stmt.Offset:]
		}
	}
	if stmt.Limit != nil && *stmt.Limit < len(matched) {
		matched = matched[:*stmt.Limit]
	}

	// Copy out, applying the projection; callers must never alias stored rows.
	out := make([]Row, len(matched))
	for i, row := range matched {
		out[i] = projectRow(row, stmt.Columns)
	}
	return out, nil
}

func (m *MemoryDriver) insertRow(stmt *Statement) ([]Row, error) {
	table, err := m.table(stmt.Table)
	if err != nil {
		return nil, err
	}

	row := make(Row, len(stmt.Values)+1)
	for col, val := range stmt.Values {
		row[col] = val
	}

	generated := Row{}
	for _, key := range stmt.Keys {
		if _, supplied := row[key]; supplied {
			continue
		}
		if col := table.column(key); col != nil && col.Type == schema.TypeInteger {
			table.serial++
			row[key] = table.serial
			generated[key] = table.serial
		}
	}

	table.rows = append(table.rows, row)
	return []Row{generated}, nil
}

func (t *memTable) column(name string) *ColumnDefinition {
	if t.def == nil {
		return nil
	}
	for i := range t.def.Columns {
		if t.def.Columns[i].Name == name {
			return &t.def.Columns[i]
		}
	}
	return nil
}

func projectRow(row Row, columns []string) Row {
	if len(columns) == 0 {
		out := make(Row, len(row))
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	out := make(Row, len(columns))
	for _, col := range columns {
		if v, ok := row[col]; ok {
			out[col] = v
		}
	}
	return out
}

func matchesAll(row Row, conditions []Condition) (bool, error) {
	for _, cond := range conditions {
		ok, err := matches(row, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matches(row Row, cond Condition) (bool, error) {
	value := row[cond.Column]

	switch cond.Operator {
	case OpEqual:
		return compareValues(value, cond.Value) == 0, nil
	case OpNotEqual:
		return compareValues(value, cond.Value) != 0, nil
	case OpGreaterThan:
		return compareValues(value, cond.Value) > 0, nil
	case OpGreaterThanOrEqual:
		return compareValues(value, cond.Value) >= 0, nil
	case OpLessThan:
		return compareValues(value, cond.Value) < 0, nil
	case OpLessThanOrEqual:
		return compareValues(value, cond.Value) <= 0, nil

	case OpIn:
		values, ok := cond.Value.([]any)
		if !ok {
			return false, fmt.Errorf("IN operator requires []any value, got %T", cond.Value)
		}
		for _, candidate := range values {
			if compareValues(value, candidate) == 0 {
				return true, nil
			}
		}
		return false, nil

	case OpBetween:
		values, ok := cond.Value.([]any)
		if !ok || len(values) != 2 {
			return false, fmt.Errorf("BETWEEN operator requires [lo, hi]")
		}
		return compareValues(value, values[0]) >= 0 && compareValues(value, values[1]) <= 0, nil

	case OpLike:
		pattern, ok := cond.Value.(string)
		if !ok {
			return false, fmt.Errorf("LIKE operator requires string pattern")
		}
		text, ok := value.(string)
		if !ok {
			return false, nil
		}
		return likeMatch(pattern, text), nil
	}
	return false, fmt.Errorf("unknown operator: %s", cond.Operator)
}

func likeMatch(pattern, text string) bool {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	matched, err := regexp.MatchString(sb.String(), text)
	return err == nil && matched
}

// compareValues orders two loosely-typed values: numerics compare as
// float64, everything else by string form. nil sorts first.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	fa, aok := asFloat(a)
	fb, bok := asFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

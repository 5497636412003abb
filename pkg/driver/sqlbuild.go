package driver

import (
	"fmt"
	"strings"

	"github.com/strataorm/strata/pkg/schema"
)

// Dialect captures the per-engine differences in SQL text generation.
type Dialect interface {
	// Name identifies the dialect in errors and logs.
	Name() string
	// Placeholder returns the parameter marker for the n-th argument
	// (1-based).
	Placeholder(n int) string
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string
	// ColumnType renders the column type for a property type and size.
	ColumnType(col ColumnDefinition) string
	// SupportsReturning reports whether INSERT ... RETURNING is available.
	SupportsReturning() bool
}

// BuildSQL renders a Statement into SQL text and its argument list for the
// given dialect.
func BuildSQL(d Dialect, stmt *Statement) (string, []any, error) {
	switch stmt.Kind {
	case KindSelect:
		return buildSelect(d, stmt)
	case KindCount:
		return buildCount(d, stmt)
	case KindInsert:
		return buildInsert(d, stmt)
	case KindUpdate:
		return buildUpdate(d, stmt)
	case KindDelete:
		return buildDelete(d, stmt)
	case KindCreateTable:
		return buildCreateTable(d, stmt)
	case KindDropTable:
		return buildDropTable(d, stmt)
	}
	return "", nil, fmt.Errorf("unknown statement kind %d", stmt.Kind)
}

func buildSelect(d Dialect, stmt *Statement) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")

	if len(stmt.Columns) == 0 {
		sb.WriteString("*")
	} else {
		cols := make([]string, len(stmt.Columns))
		for i, c := range stmt.Columns {
			cols[i] = d.QuoteIdentifier(c)
		}
		sb.WriteString(strings.Join(cols, ", "))
	}

	sb.WriteString(" FROM ")
	sb.WriteString(d.QuoteIdentifier(stmt.Table))

	args, err := appendWhere(d, &sb, stmt.Conditions, 1)
	if err != nil {
		return "", nil, err
	}

	if len(stmt.Order) > 0 {
		terms := make([]string, len(stmt.Order))
		for i, o := range stmt.Order {
			terms[i] = d.QuoteIdentifier(o.Column) + " " + string(o.Direction)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}

	if stmt.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *stmt.Limit)
	}
	if stmt.Offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *stmt.Offset)
	}

	return sb.String(), args, nil
}

func buildCount(d Dialect, stmt *Statement) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(d.QuoteIdentifier(stmt.Table))

	args, err := appendWhere(d, &sb, stmt.Conditions, 1)
	if err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func buildInsert(d Dialect, stmt *Statement) (string, []any, error) {
	if len(stmt.Columns) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no columns", stmt.Table)
	}

	cols := make([]string, len(stmt.Columns))
	marks := make([]string, len(stmt.Columns))
	args := make([]any, len(stmt.Columns))
	for i, c := range stmt.Columns {
		cols[i] = d.QuoteIdentifier(c)
		marks[i] = d.Placeholder(i + 1)
		args[i] = stmt.Values[c]
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdentifier(stmt.Table),
		strings.Join(cols, ", "),
		strings.Join(marks, ", "))

	if d.SupportsReturning() && len(stmt.Keys) > 0 {
		keys := make([]string, len(stmt.Keys))
		for i, k := range stmt.Keys {
			keys[i] = d.QuoteIdentifier(k)
		}
		sql += " RETURNING " + strings.Join(keys, ", ")
	}

	return sql, args, nil
}

func buildUpdate(d Dialect, stmt *Statement) (string, []any, error) {
	if len(stmt.Values) == 0 {
		return "", nil, fmt.Errorf("update %s: no values", stmt.Table)
	}

	// Deterministic column order: Columns when provided, else map order is
	// unacceptable for tests, so Columns is required for updates.
	cols := stmt.Columns
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("update %s: no column order", stmt.Table)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(d.QuoteIdentifier(stmt.Table))
	sb.WriteString(" SET ")

	args := make([]any, 0, len(cols))
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", d.QuoteIdentifier(c), d.Placeholder(i+1))
		args = append(args, stmt.Values[c])
	}
	sb.WriteString(strings.Join(sets, ", "))

	whereArgs, err := appendWhere(d, &sb, stmt.Conditions, len(args)+1)
	if err != nil {
		return "", nil, err
	}
	return sb.String(), append(args, whereArgs...), nil
}

func buildDelete(d Dialect, stmt *Statement) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(d.QuoteIdentifier(stmt.Table))

	args, err := appendWhere(d, &sb, stmt.Conditions, 1)
	if err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func buildCreateTable(d Dialect, stmt *Statement) (string, []any, error) {
	def := stmt.Define
	if def == nil {
		return "", nil, fmt.Errorf("create table: no definition")
	}

	lines := make([]string, 0, len(def.Columns)+1)
	for _, col := range def.Columns {
		line := d.QuoteIdentifier(col.Name) + " " + d.ColumnType(col)
		if col.Required {
			line += " NOT NULL"
		}
		lines = append(lines, line)
	}
	if len(def.Keys) > 0 {
		keys := make([]string, len(def.Keys))
		for i, k := range def.Keys {
			keys[i] = d.QuoteIdentifier(k)
		}
		lines = append(lines, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		d.QuoteIdentifier(def.Name), strings.Join(lines, ", "))
	return sql, nil, nil
}

func buildDropTable(d Dialect, stmt *Statement) (string, []any, error) {
	def := stmt.Define
	if def == nil {
		return "", nil, fmt.Errorf("drop table: no definition")
	}
	return "DROP TABLE IF EXISTS " + d.QuoteIdentifier(def.Name), nil, nil
}

// appendWhere renders the conjunction of conditions, returning the argument
// list. paramStart is the 1-based index of the first placeholder.
func appendWhere(d Dialect, sb *strings.Builder, conditions []Condition, paramStart int) ([]any, error) {
	if len(conditions) == 0 {
		return nil, nil
	}

	var args []any
	parts := make([]string, 0, len(conditions))
	paramNum := paramStart

	for _, cond := range conditions {
		sql, condArgs, err := buildCondition(d, cond, paramNum)
		if err != nil {
			return nil, err
		}
		parts = append(parts, sql)
		args = append(args, condArgs...)
		paramNum += len(condArgs)
	}

	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(parts, " AND "))
	return args, nil
}

func buildCondition(d Dialect, cond Condition, paramNum int) (string, []any, error) {
	column := d.QuoteIdentifier(cond.Column)

	switch cond.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpLike:
		if cond.Value == nil && cond.Operator == OpEqual {
			return column + " IS NULL", nil, nil
		}
		return fmt.Sprintf("%s %s %s", column, cond.Operator, d.Placeholder(paramNum)), []any{cond.Value}, nil

	case OpIn:
		values, ok := cond.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("IN operator requires []any value, got %T", cond.Value)
		}
		if len(values) == 0 {
			// No acceptable values: an always-false predicate.
			return "1 = 0", nil, nil
		}
		marks := make([]string, len(values))
		for i := range values {
			marks[i] = d.Placeholder(paramNum + i)
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(marks, ", ")), values, nil

	case OpBetween:
		values, ok := cond.Value.([]any)
		if !ok || len(values) != 2 {
			return "", nil, fmt.Errorf("BETWEEN operator requires [lo, hi]")
		}
		sql := fmt.Sprintf("%s BETWEEN %s AND %s", column, d.Placeholder(paramNum), d.Placeholder(paramNum+1))
		return sql, values, nil

	default:
		return "", nil, fmt.Errorf("unknown operator: %s", cond.Operator)
	}
}

// baseColumnType is the dialect-independent fallback used by the bundled
// dialects for most property types.
func baseColumnType(col ColumnDefinition) string {
	switch col.Type {
	case schema.TypeText, schema.TypeEnum:
		if col.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.Size)
		}
		return "TEXT"
	case schema.TypeNumber:
		return "DOUBLE PRECISION"
	case schema.TypeInteger:
		return "BIGINT"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeBinary:
		return "BLOB"
	case schema.TypeJSON:
		return "TEXT"
	}
	return "TEXT"
}

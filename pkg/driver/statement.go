// Package driver defines the adapter contract between the ORM core and a
// database engine, plus the dialect-neutral statement descriptor the core
// hands to adapters. The core never renders SQL text itself; adapters own
// the dialect.
package driver

import "github.com/strataorm/strata/pkg/schema"

// Kind identifies the operation a Statement describes.
type Kind int

const (
	// KindSelect fetches rows.
	KindSelect Kind = iota
	// KindCount computes a row count engine-side.
	KindCount
	// KindInsert stores one row and reports generated key values.
	KindInsert
	// KindUpdate modifies matching rows.
	KindUpdate
	// KindDelete removes matching rows.
	KindDelete
	// KindCreateTable creates the table described by Define.
	KindCreateTable
	// KindDropTable drops the table described by Define.
	KindDropTable
)

// Row is one result row as returned by an adapter, keyed by column name.
// Value types are whatever the engine's scan layer produces; the core
// normalizes them against the model's property types.
type Row map[string]any

// Statement is the abstract description of one database operation: table,
// projected columns, predicate tree, ordering and paging. It carries no
// dialect text.
type Statement struct {
	Kind       Kind
	Table      string
	Columns    []string    // projection (select) or column order (insert)
	Conditions []Condition // conjunction of per-column clauses
	Order      []OrderBy
	Limit      *int
	Offset     *int
	Values     map[string]any // insert/update values
	Keys       []string       // key columns whose generated values inserts report
	Define     *TableDefinition
}

// TableDefinition is the dialect-neutral shape handed to adapters for
// create/drop. Join tables are expressed the same way as model tables.
type TableDefinition struct {
	Name    string
	Columns []ColumnDefinition
	Keys    []string
}

// ColumnDefinition describes one column of a TableDefinition.
type ColumnDefinition struct {
	Name     string
	Type     schema.PropertyType
	Size     int
	Required bool
	Serial   bool // integer key populated by the engine
}

// Operator represents a comparison operator.
type Operator string

const (
	// OpEqual represents the = operator.
	OpEqual Operator = "="
	// OpNotEqual represents the <> operator.
	OpNotEqual Operator = "<>"
	// OpGreaterThan represents the > operator.
	OpGreaterThan Operator = ">"
	// OpGreaterThanOrEqual represents the >= operator.
	OpGreaterThanOrEqual Operator = ">="
	// OpLessThan represents the < operator.
	OpLessThan Operator = "<"
	// OpLessThanOrEqual represents the <= operator.
	OpLessThanOrEqual Operator = "<="
	// OpIn represents the IN operator.
	OpIn Operator = "IN"
	// OpBetween represents the inclusive BETWEEN operator.
	OpBetween Operator = "BETWEEN"
	// OpLike represents the LIKE operator.
	OpLike Operator = "LIKE"
)

// Condition represents one predicate clause. Clauses on a Statement combine
// as a conjunction.
type Condition struct {
	Column   string
	Operator Operator
	Value    any
}

// OrderDirection represents the sort direction.
type OrderDirection string

const (
	// Asc represents ascending order.
	Asc OrderDirection = "ASC"
	// Desc represents descending order.
	Desc OrderDirection = "DESC"
)

// OrderBy represents one ordering term.
type OrderBy struct {
	Column    string
	Direction OrderDirection
}

// Eq creates an equality condition.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Operator: OpEqual, Value: value}
}

// Ne creates a not-equal condition.
func Ne(column string, value any) Condition {
	return Condition{Column: column, Operator: OpNotEqual, Value: value}
}

// Gt creates a greater-than condition.
func Gt(column string, value any) Condition {
	return Condition{Column: column, Operator: OpGreaterThan, Value: value}
}

// Gte creates a greater-than-or-equal condition.
func Gte(column string, value any) Condition {
	return Condition{Column: column, Operator: OpGreaterThanOrEqual, Value: value}
}

// Lt creates a less-than condition.
func Lt(column string, value any) Condition {
	return Condition{Column: column, Operator: OpLessThan, Value: value}
}

// Lte creates a less-than-or-equal condition.
func Lte(column string, value any) Condition {
	return Condition{Column: column, Operator: OpLessThanOrEqual, Value: value}
}

// In creates a set-membership condition.
func In(column string, values ...any) Condition {
	return Condition{Column: column, Operator: OpIn, Value: values}
}

// Between creates an inclusive range condition.
func Between(column string, lo, hi any) Condition {
	return Condition{Column: column, Operator: OpBetween, Value: []any{lo, hi}}
}

// Like creates a pattern-match condition.
func Like(column string, pattern string) Condition {
	return Condition{Column: column, Operator: OpLike, Value: pattern}
}

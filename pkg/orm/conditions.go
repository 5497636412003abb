package orm

import (
	"reflect"
	"sort"

	"github.com/strataorm/strata/pkg/driver"
	"github.com/strataorm/strata/pkg/schema"
)

// Conditions maps property names to constraints. A plain value means
// equality, a slice means set membership, and a Comparison applies its
// operator. Entries always combine as a conjunction.
type Conditions map[string]any

// Comparison is an operator with its operand(s), built by Gt, Between and
// friends.
type Comparison struct {
	op     driver.Operator
	values []any
}

// Ne constrains a property to differ from v.
func Ne(v any) Comparison { return Comparison{op: driver.OpNotEqual, values: []any{v}} }

// Gt constrains a property to be greater than v.
func Gt(v any) Comparison { return Comparison{op: driver.OpGreaterThan, values: []any{v}} }

// Gte constrains a property to be greater than or equal to v.
func Gte(v any) Comparison { return Comparison{op: driver.OpGreaterThanOrEqual, values: []any{v}} }

// Lt constrains a property to be less than v.
func Lt(v any) Comparison { return Comparison{op: driver.OpLessThan, values: []any{v}} }

// Lte constrains a property to be less than or equal to v.
func Lte(v any) Comparison { return Comparison{op: driver.OpLessThanOrEqual, values: []any{v}} }

// Between constrains a property to the inclusive range [lo, hi].
func Between(lo, hi any) Comparison {
	return Comparison{op: driver.OpBetween, values: []any{lo, hi}}
}

// Like constrains a text property to a SQL pattern.
func Like(pattern string) Comparison {
	return Comparison{op: driver.OpLike, values: []any{pattern}}
}

// compileConditions translates a Conditions map into the driver's clause
// list, validating property names against the model definition. Keys are
// processed in sorted order so compiled statements are deterministic.
func compileConditions(def *schema.ModelDefinition, conds Conditions) ([]driver.Condition, error) {
	if len(conds) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(conds))
	for name := range conds {
		if !def.HasProperty(name) {
			return nil, unknownProperty(def, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]driver.Condition, 0, len(names))
	for _, name := range names {
		out = append(out, compileCondition(name, conds[name]))
	}
	return out, nil
}

func compileCondition(column string, constraint any) driver.Condition {
	switch v := constraint.(type) {
	case Comparison:
		value := any(v.values)
		if len(v.values) == 1 {
			value = v.values[0]
		}
		return driver.Condition{Column: column, Operator: v.op, Value: value}
	case []any:
		return driver.Condition{Column: column, Operator: driver.OpIn, Value: v}
	}

	// Any other slice kind is also set membership; []byte stays a scalar.
	rv := reflect.ValueOf(constraint)
	if constraint != nil && rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		values := make([]any, rv.Len())
		for i := range values {
			values[i] = rv.Index(i).Interface()
		}
		return driver.Condition{Column: column, Operator: driver.OpIn, Value: values}
	}

	return driver.Condition{Column: column, Operator: driver.OpEqual, Value: constraint}
}

// Package validators provides ready-made property validators for model
// definitions. Each constructor returns an orm.ValidatorFunc; failures carry
// a short reason that the save pipeline wraps into a ValidationError.
package validators

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	playground "github.com/go-playground/validator/v10"

	"github.com/strataorm/strata/pkg/orm"
)

var checker = playground.New()

// Required rejects nil and empty-string values.
func Required() orm.ValidatorFunc {
	return func(value any, _ *orm.Instance) error {
		if value == nil {
			return errors.New("required")
		}
		if s, ok := value.(string); ok && s == "" {
			return errors.New("required")
		}
		return nil
	}
}

// Range rejects numeric values outside the inclusive [min, max] interval.
// Nil values pass; combine with Required to forbid them.
func Range(min, max float64) orm.ValidatorFunc {
	return func(value any, _ *orm.Instance) error {
		if value == nil {
			return nil
		}
		n, ok := asNumber(value)
		if !ok {
			return fmt.Errorf("not a number: %T", value)
		}
		if n < min || n > max {
			return fmt.Errorf("out of range [%v, %v]", min, max)
		}
		return nil
	}
}

// MinLength rejects strings shorter than n runes.
func MinLength(n int) orm.ValidatorFunc {
	return func(value any, _ *orm.Instance) error {
		if value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("not a string: %T", value)
		}
		if len([]rune(s)) < n {
			return fmt.Errorf("shorter than %d characters", n)
		}
		return nil
	}
}

// MaxLength rejects strings longer than n runes.
func MaxLength(n int) orm.ValidatorFunc {
	return func(value any, _ *orm.Instance) error {
		if value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("not a string: %T", value)
		}
		if len([]rune(s)) > n {
			return fmt.Errorf("longer than %d characters", n)
		}
		return nil
	}
}

// OneOf rejects values outside the allowed set.
func OneOf(allowed ...string) orm.ValidatorFunc {
	return func(value any, _ *orm.Instance) error {
		if value == nil {
			return nil
		}
		s := fmt.Sprint(value)
		for _, candidate := range allowed {
			if s == candidate {
				return nil
			}
		}
		return fmt.Errorf("%q not in allowed set", s)
	}
}

// Pattern rejects strings that do not match the regular expression. The
// expression is compiled once at definition time; an invalid expression
// panics there rather than at save time.
func Pattern(expr string) orm.ValidatorFunc {
	re := regexp.MustCompile(expr)
	return func(value any, _ *orm.Instance) error {
		if value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("not a string: %T", value)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("does not match %s", expr)
		}
		return nil
	}
}

// Email rejects values that are not well-formed e-mail addresses.
func Email() orm.ValidatorFunc {
	return tagValidator("email", "not a valid e-mail address")
}

// URL rejects values that are not well-formed URLs.
func URL() orm.ValidatorFunc {
	return tagValidator("url", "not a valid URL")
}

func tagValidator(tag, reason string) orm.ValidatorFunc {
	return func(value any, _ *orm.Instance) error {
		if value == nil {
			return nil
		}
		if err := checker.Var(value, tag); err != nil {
			return errors.New(reason)
		}
		return nil
	}
}

// Unique rejects values already present in another row of the model. The
// check is a point-in-time count; it does not lock the table against a
// concurrent writer.
func Unique(property string) orm.ValidatorFunc {
	return func(value any, inst *orm.Instance) error {
		if value == nil {
			return nil
		}
		model := inst.Model()
		conds := orm.Conditions{property: value}
		if !inst.IsNew() {
			conds[model.Definition().Key()] = orm.Ne(inst.ID())
		}
		n, err := model.Count(context.Background(), conds)
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.New("already taken")
		}
		return nil
	}
}

func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
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
	}
	return 0, false
}

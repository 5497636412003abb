// Package schema defines the metadata describing models, properties and
// associations. It is pure data: populated once at definition time and read
// by the registry, the query layer and the drivers.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// PropertyType is the closed set of property value types. Everything that
// dispatches on a property's type (normalization, validation, SQL column
// generation) switches on this tag.
type PropertyType string

const (
	// TypeText represents string values.
	TypeText PropertyType = "text"
	// TypeNumber represents floating-point numeric values.
	TypeNumber PropertyType = "number"
	// TypeInteger represents whole numeric values.
	TypeInteger PropertyType = "integer"
	// TypeBoolean represents true/false values.
	TypeBoolean PropertyType = "boolean"
	// TypeEnum represents values restricted to a declared set.
	TypeEnum PropertyType = "enum"
	// TypeBinary represents raw byte payloads.
	TypeBinary PropertyType = "binary"
	// TypeJSON represents opaque structured values stored as JSON.
	TypeJSON PropertyType = "json"
)

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeInteger, TypeBoolean, TypeEnum, TypeBinary, TypeJSON:
		return true
	}
	return false
}

// Property describes one column of a model. Immutable once the model is
// defined.
type Property struct {
	Name         string
	Type         PropertyType
	Size         int      // optional, e.g. varchar length
	Required     bool
	Values       []string // enum members, TypeEnum only
	DefaultValue any
}

// Normalize coerces a raw driver value into the canonical Go representation
// for the property's type. Drivers return whatever their scan layer produces
// (int64 vs float64, []byte vs string); the core only ever sees canonical
// values.
func (p Property) Normalize(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch p.Type {
	case TypeText, TypeEnum:
		v, err := toString(raw)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name, err)
		}
		if p.Type == TypeEnum && !p.allows(v) {
			return nil, fmt.Errorf("property %s: value %q not in enum set", p.Name, v)
		}
		return v, nil

	case TypeNumber:
		return toFloat(raw)

	case TypeInteger:
		return toInt(raw)

	case TypeBoolean:
		return toBool(raw)

	case TypeBinary:
		switch v := raw.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
		return nil, fmt.Errorf("property %s: cannot use %T as binary", p.Name, raw)

	case TypeJSON:
		// Stored as text or bytes; decoded to the generic JSON shape.
		switch v := raw.(type) {
		case []byte:
			return decodeJSON(v)
		case string:
			return decodeJSON([]byte(v))
		default:
			return raw, nil // already decoded
		}
	}

	return nil, fmt.Errorf("property %s: unknown type %q", p.Name, p.Type)
}

// Encode converts a canonical value into the form handed to drivers.
// JSON values are serialized to text, everything else passes through.
func (p Property) Encode(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if p.Type != TypeJSON {
		return value, nil
	}
	buf, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("property %s: encode json: %w", p.Name, err)
	}
	return string(buf), nil
}

func (p Property) allows(v string) bool {
	for _, candidate := range p.Values {
		if candidate == v {
			return true
		}
	}
	return false
}

func decodeJSON(buf []byte) (any, error) {
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return "", fmt.Errorf("cannot use %T as text", raw)
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	}
	return 0, fmt.Errorf("cannot use %T as number", raw)
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	}
	return 0, fmt.Errorf("cannot use %T as integer", raw)
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case string:
		return strconv.ParseBool(v)
	}
	return false, fmt.Errorf("cannot use %T as boolean", raw)
}

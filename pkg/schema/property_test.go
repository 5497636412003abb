package schema

import (
	"reflect"
	"testing"
)

func TestProperty_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		prop    Property
		raw     any
		want    any
		wantErr bool
	}{
		{
			name: "text from bytes",
			prop: Property{Name: "title", Type: TypeText},
			raw:  []byte("hello"),
			want: "hello",
		},
		{
			name: "number from int64",
			prop: Property{Name: "score", Type: TypeNumber},
			raw:  int64(42),
			want: float64(42),
		},
		{
			name: "integer from float64",
			prop: Property{Name: "age", Type: TypeInteger},
			raw:  float64(30),
			want: int64(30),
		},
		{
			name: "boolean from sqlite integer",
			prop: Property{Name: "active", Type: TypeBoolean},
			raw:  int64(1),
			want: true,
		},
		{
			name: "enum member accepted",
			prop: Property{Name: "status", Type: TypeEnum, Values: []string{"draft", "live"}},
			raw:  "live",
			want: "live",
		},
		{
			name:    "enum non-member rejected",
			prop:    Property{Name: "status", Type: TypeEnum, Values: []string{"draft", "live"}},
			raw:     "deleted",
			wantErr: true,
		},
		{
			name: "json decoded from text",
			prop: Property{Name: "meta", Type: TypeJSON},
			raw:  `{"a":1}`,
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "binary from string",
			prop: Property{Name: "blob", Type: TypeBinary},
			raw:  "abc",
			want: []byte("abc"),
		},
		{
			name: "nil passes through",
			prop: Property{Name: "title", Type: TypeText},
			raw:  nil,
			want: nil,
		},
		{
			name:    "text from incompatible type",
			prop:    Property{Name: "title", Type: TypeText},
			raw:     []int{1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.prop.Normalize(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestProperty_Encode(t *testing.T) {
	t.Run("json serialized to text", func(t *testing.T) {
		prop := Property{Name: "meta", Type: TypeJSON}
		got, err := prop.Encode(map[string]any{"a": 1})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if got != `{"a":1}` {
			t.Errorf("got %v", got)
		}
	})

	t.Run("scalar passes through", func(t *testing.T) {
		prop := Property{Name: "age", Type: TypeInteger}
		got, err := prop.Encode(int64(7))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if got != int64(7) {
			t.Errorf("got %v", got)
		}
	})
}

func TestPropertyType_Valid(t *testing.T) {
	for _, typ := range []PropertyType{TypeText, TypeNumber, TypeInteger, TypeBoolean, TypeEnum, TypeBinary, TypeJSON} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if PropertyType("datetime").Valid() {
		t.Error("unknown type should not be valid")
	}
}

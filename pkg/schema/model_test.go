package schema

import (
	"testing"
)

func testProperties() []Property {
	return []Property{
		{Name: "id", Type: TypeInteger},
		{Name: "name", Type: TypeText, Required: true},
		{Name: "age", Type: TypeInteger},
	}
}

func TestNewModelDefinition(t *testing.T) {
	t.Run("valid definition", func(t *testing.T) {
		def, err := NewModelDefinition("person", "", testProperties(), []string{"id"})
		if err != nil {
			t.Fatalf("NewModelDefinition failed: %v", err)
		}
		if def.Table != "person" {
			t.Errorf("table should default to model name, got %s", def.Table)
		}
		if def.Key() != "id" {
			t.Errorf("got key %s", def.Key())
		}
		if def.AutoFetchLimit != 1 {
			t.Errorf("default auto-fetch limit should be 1, got %d", def.AutoFetchLimit)
		}
	})

	t.Run("missing key property", func(t *testing.T) {
		_, err := NewModelDefinition("person", "", testProperties(), []string{"uid"})
		if err == nil {
			t.Fatal("expected error for undeclared key")
		}
	})

	t.Run("duplicate property", func(t *testing.T) {
		props := append(testProperties(), Property{Name: "name", Type: TypeText})
		_, err := NewModelDefinition("person", "", props, []string{"id"})
		if err == nil {
			t.Fatal("expected error for duplicate property")
		}
	})

	t.Run("unknown property type", func(t *testing.T) {
		props := []Property{{Name: "id", Type: PropertyType("uuid")}}
		_, err := NewModelDefinition("person", "", props, []string{"id"})
		if err == nil {
			t.Fatal("expected error for unknown type")
		}
	})
}

func TestModelDefinition_Property(t *testing.T) {
	def, err := NewModelDefinition("person", "people", testProperties(), []string{"id"})
	if err != nil {
		t.Fatalf("NewModelDefinition failed: %v", err)
	}

	if p := def.Property("name"); p == nil || !p.Required {
		t.Errorf("got %+v", p)
	}
	if def.Property("missing") != nil {
		t.Error("expected nil for unknown property")
	}
	if !def.HasProperty("age") || def.HasProperty("height") {
		t.Error("HasProperty mismatch")
	}
}

func TestModelDefinition_AddAssociation(t *testing.T) {
	def, err := NewModelDefinition("person", "", testProperties(), []string{"id"})
	if err != nil {
		t.Fatalf("NewModelDefinition failed: %v", err)
	}

	assoc := &Association{Kind: HasOne, Name: "owner", Source: "person", Target: "person", ForeignKey: "owner_id"}
	if err := def.AddAssociation(assoc); err != nil {
		t.Fatalf("AddAssociation failed: %v", err)
	}
	if def.Association("owner") != assoc {
		t.Error("association not retrievable")
	}
	if err := def.AddAssociation(assoc); err == nil {
		t.Error("duplicate association should be rejected")
	}
}

func TestAssociation_ReverseOf(t *testing.T) {
	assoc := &Association{
		Kind:         HasMany,
		Name:         "friends",
		Source:       "person",
		Target:       "person",
		JoinTable:    "friendship",
		SourceColumn: "person_id",
		TargetColumn: "friend_id",
		ExtraColumns: []Property{{Name: "since", Type: TypeText}},
		Reverse:      "friendedBy",
	}

	rev := assoc.ReverseOf()
	if rev.Name != "friendedBy" || rev.Reverse != "friends" {
		t.Errorf("reverse naming mismatch: %+v", rev)
	}
	if rev.JoinTable != assoc.JoinTable {
		t.Error("reverse must share the join table")
	}
	if rev.SourceColumn != "friend_id" || rev.TargetColumn != "person_id" {
		t.Error("reverse must swap join columns")
	}
	if !rev.Reversed {
		t.Error("reverse half should be marked")
	}
}

func TestAssociationKeyTemplate(t *testing.T) {
	if got := AssociationKeyTemplate("{name}_id", "owner"); got != "owner_id" {
		t.Errorf("got %s", got)
	}
}

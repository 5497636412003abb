package schema

import "strings"

// AssociationKind distinguishes the declared relationship shapes.
type AssociationKind string

const (
	// HasOne is a to-one association resolved through a foreign-key
	// property on the owning model.
	HasOne AssociationKind = "hasOne"
	// HasMany is a to-many association resolved through a join table
	// keyed by both sides' primary keys.
	HasMany AssociationKind = "hasMany"
)

// Association describes a declared relationship between two models.
//
// A HasMany with a Reverse name always exists as a matched pair, one
// association per model, sharing a single join table with source and target
// roles swapped on the reverse side.
type Association struct {
	Kind   AssociationKind
	Name   string
	Source string // owning model
	Target string // defaults to Source for self-associations

	// ForeignKey is the owning model's FK property (HasOne only).
	ForeignKey string

	// Join-table shape (HasMany only).
	JoinTable    string
	SourceColumn string
	TargetColumn string
	ExtraColumns []Property

	// Reverse is the accessor name synthesized on the target model, empty
	// when no reverse side was requested. Reversed marks the synthesized
	// half of the pair.
	Reverse  string
	Reversed bool
}

// AssociationKeyTemplate expands a foreign-key naming template such as
// "{name}_id" for an association name.
func AssociationKeyTemplate(template, name string) string {
	return strings.ReplaceAll(template, "{name}", name)
}

// ReverseOf builds the synthesized reverse half of a symmetric to-many pair.
// It shares the join table with a but swaps the source and target roles.
func (a *Association) ReverseOf() *Association {
	return &Association{
		Kind:         HasMany,
		Name:         a.Reverse,
		Source:       a.Target,
		Target:       a.Source,
		JoinTable:    a.JoinTable,
		SourceColumn: a.TargetColumn,
		TargetColumn: a.SourceColumn,
		ExtraColumns: a.ExtraColumns,
		Reverse:      a.Name,
		Reversed:     true,
	}
}

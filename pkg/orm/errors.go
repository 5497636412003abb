package orm

import (
	"errors"
	"fmt"

	"github.com/strataorm/strata/pkg/schema"
)

var (
	// ErrNotDefined is returned when an operation references an unknown
	// model.
	ErrNotDefined = errors.New("model not defined")

	// ErrUnknownProperty is returned when a condition or mutation names a
	// property the model does not declare.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrNoAssociation is returned when an accessor names an undeclared
	// association.
	ErrNoAssociation = errors.New("association not declared")

	// ErrWrongAssociationKind is returned when a to-one accessor is used on
	// a to-many association or vice versa.
	ErrWrongAssociationKind = errors.New("accessor does not match association kind")

	// ErrNotPersisted is returned when an association write involves an
	// instance that has never been saved.
	ErrNotPersisted = errors.New("instance not persisted")

	// ErrConnectionClosed is returned when operating on a closed
	// connection.
	ErrConnectionClosed = errors.New("connection closed")
)

func unknownProperty(def *schema.ModelDefinition, property string) error {
	return fmt.Errorf("model %s: %w: %s", def.Name, ErrUnknownProperty, property)
}

// ValidationError reports a validator rejection. It is raised before any
// driver write; a save failing validation leaves both the instance's
// persisted state and the identity cache untouched.
type ValidationError struct {
	Model    string
	Property string
	Reason   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation of %s.%s failed: %s", e.Model, e.Property, e.Reason)
}

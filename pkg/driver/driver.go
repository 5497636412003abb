package driver

import (
	"context"
	"fmt"
)

// Driver is the adapter contract consumed by the ORM core. Implementations
// translate a Statement into engine-specific calls. Adapters own timeouts;
// the core never retries and never cancels an in-flight call beyond passing
// the context through.
type Driver interface {
	// Query executes a row-returning statement (select, or insert when the
	// engine reports generated keys as a row).
	Query(ctx context.Context, stmt *Statement) ([]Row, error)

	// Exec executes a statement without a result set (update, delete,
	// create/drop table) and returns the number of affected rows where the
	// engine reports one.
	Exec(ctx context.Context, stmt *Statement) (int64, error)

	// Count executes a KindCount statement engine-side.
	Count(ctx context.Context, stmt *Statement) (int64, error)

	// EscapeIdentifier quotes an identifier for the engine's dialect.
	EscapeIdentifier(name string) string

	// Close releases the adapter's resources.
	Close() error
}

// Error wraps an engine failure. The core passes it through opaquely:
// connection failures, constraint violations and timeouts all surface as an
// *Error with the originating statement kind attached.
type Error struct {
	Driver string
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("driver %s: %s: %v", e.Driver, e.Op, e.Err)
}

// Unwrap returns the underlying engine error.
func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(driver, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Driver: driver, Op: op, Err: err}
}

func opName(kind Kind) string {
	switch kind {
	case KindSelect:
		return "select"
	case KindCount:
		return "count"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindCreateTable:
		return "create table"
	case KindDropTable:
		return "drop table"
	}
	return "unknown"
}

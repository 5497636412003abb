package driver

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite3 database/sql driver
	"github.com/pkg/errors"

	"github.com/strataorm/strata/pkg/schema"
)

// SQLiteDialect renders statements for SQLite.
type SQLiteDialect struct{}

// Name implements Dialect.
func (SQLiteDialect) Name() string { return "sqlite3" }

// Placeholder implements Dialect. SQLite uses positional ? markers.
func (SQLiteDialect) Placeholder(int) string { return "?" }

// QuoteIdentifier implements Dialect.
func (SQLiteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ColumnType implements Dialect.
func (SQLiteDialect) ColumnType(col ColumnDefinition) string {
	if col.Serial {
		// INTEGER PRIMARY KEY aliases the rowid; declared as plain INTEGER
		// here and promoted through the table's PRIMARY KEY clause.
		return "INTEGER"
	}
	if col.Type == schema.TypeInteger {
		return "INTEGER"
	}
	if col.Type == schema.TypeNumber {
		return "REAL"
	}
	return baseColumnType(col)
}

// SupportsReturning implements Dialect. Generated keys are read through
// LastInsertId instead.
func (SQLiteDialect) SupportsReturning() bool { return false }

// OpenSQLite opens a SQLite database file (or ":memory:") as a Driver.
func OpenSQLite(dsn string) (*SQLDriver, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.WithMessagef(err, "open sqlite database %s", dsn)
	}
	// A single writer avoids SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)
	return NewSQLDriver(db, SQLiteDialect{}), nil
}

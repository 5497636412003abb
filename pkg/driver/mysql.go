package driver

import (
	"database/sql"
	"strings"

	_ "github.com/go-sql-driver/mysql" // mysql database/sql driver
	"github.com/pkg/errors"

	"github.com/strataorm/strata/pkg/schema"
)

// MySQLDialect renders statements for MySQL/MariaDB.
type MySQLDialect struct{}

// Name implements Dialect.
func (MySQLDialect) Name() string { return "mysql" }

// Placeholder implements Dialect.
func (MySQLDialect) Placeholder(int) string { return "?" }

// QuoteIdentifier implements Dialect.
func (MySQLDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ColumnType implements Dialect.
func (MySQLDialect) ColumnType(col ColumnDefinition) string {
	if col.Serial {
		return "BIGINT AUTO_INCREMENT"
	}
	switch col.Type {
	case schema.TypeBinary:
		return "BLOB"
	case schema.TypeJSON:
		return "JSON"
	case schema.TypeNumber:
		return "DOUBLE"
	case schema.TypeText, schema.TypeEnum:
		if col.Size > 0 {
			return baseColumnType(col)
		}
		// TEXT cannot be a MySQL primary key without a length prefix.
		return "VARCHAR(255)"
	}
	return baseColumnType(col)
}

// SupportsReturning implements Dialect.
func (MySQLDialect) SupportsReturning() bool { return false }

// OpenMySQL opens a MySQL connection as a Driver. The DSN follows
// go-sql-driver conventions, e.g. "user:pass@tcp(host:3306)/dbname".
func OpenMySQL(dsn string) (*SQLDriver, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.WithMessage(err, "open mysql connection")
	}
	return NewSQLDriver(db, MySQLDialect{}), nil
}

package driver

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// SQLDriver adapts any database/sql engine through a Dialect. The bundled
// sqlite and MySQL adapters are thin constructors over it.
type SQLDriver struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLDriver wraps an open database/sql handle with a dialect.
func NewSQLDriver(db *sql.DB, dialect Dialect) *SQLDriver {
	return &SQLDriver{db: db, dialect: dialect}
}

// DB exposes the underlying handle, e.g. for pool tuning.
func (s *SQLDriver) DB() *sql.DB {
	return s.db
}

// Query implements Driver.
func (s *SQLDriver) Query(ctx context.Context, stmt *Statement) ([]Row, error) {
	if stmt.Kind == KindInsert && !s.dialect.SupportsReturning() {
		return s.insertLastID(ctx, stmt)
	}

	text, args, err := BuildSQL(s.dialect, stmt)
	if err != nil {
		return nil, wrapErr(s.dialect.Name(), opName(stmt.Kind), err)
	}

	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, wrapErr(s.dialect.Name(), opName(stmt.Kind), err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, wrapErr(s.dialect.Name(), opName(stmt.Kind), err)
	}
	return out, nil
}

// insertLastID handles engines without INSERT ... RETURNING by reading the
// generated key from LastInsertId.
func (s *SQLDriver) insertLastID(ctx context.Context, stmt *Statement) ([]Row, error) {
	text, args, err := BuildSQL(s.dialect, stmt)
	if err != nil {
		return nil, wrapErr(s.dialect.Name(), "insert", err)
	}

	res, err := s.db.ExecContext(ctx, text, args...)
	if err != nil {
		return nil, wrapErr(s.dialect.Name(), "insert", err)
	}

	row := Row{}
	if len(stmt.Keys) == 1 {
		if _, supplied := stmt.Values[stmt.Keys[0]]; !supplied {
			id, err := res.LastInsertId()
			if err != nil {
				return nil, wrapErr(s.dialect.Name(), "insert", errors.WithMessage(err, "read generated key"))
			}
			row[stmt.Keys[0]] = id
		}
	}
	return []Row{row}, nil
}

// Exec implements Driver.
func (s *SQLDriver) Exec(ctx context.Context, stmt *Statement) (int64, error) {
	text, args, err := BuildSQL(s.dialect, stmt)
	if err != nil {
		return 0, wrapErr(s.dialect.Name(), opName(stmt.Kind), err)
	}

	res, err := s.db.ExecContext(ctx, text, args...)
	if err != nil {
		return 0, wrapErr(s.dialect.Name(), opName(stmt.Kind), err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		// Some engines cannot report affected rows for DDL.
		return 0, nil
	}
	return affected, nil
}

// Count implements Driver.
func (s *SQLDriver) Count(ctx context.Context, stmt *Statement) (int64, error) {
	counted := *stmt
	counted.Kind = KindCount

	text, args, err := BuildSQL(s.dialect, &counted)
	if err != nil {
		return 0, wrapErr(s.dialect.Name(), "count", err)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, text, args...).Scan(&n); err != nil {
		return 0, wrapErr(s.dialect.Name(), "count", err)
	}
	return n, nil
}

// EscapeIdentifier implements Driver.
func (s *SQLDriver) EscapeIdentifier(name string) string {
	return s.dialect.QuoteIdentifier(name)
}

// Close implements Driver.
func (s *SQLDriver) Close() error {
	return s.db.Close()
}

// scanRows reads a sql.Rows result set into generic rows.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.WithMessage(err, "read columns")
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		targets := make([]any, len(cols))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, errors.WithMessage(err, "scan row")
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

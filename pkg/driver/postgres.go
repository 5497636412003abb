package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strataorm/strata/pkg/schema"
)

// PostgresDialect renders statements for PostgreSQL.
type PostgresDialect struct{}

// Name implements Dialect.
func (PostgresDialect) Name() string { return "postgres" }

// Placeholder implements Dialect. PostgreSQL uses numbered $n markers.
func (PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// QuoteIdentifier implements Dialect.
func (PostgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ColumnType implements Dialect.
func (PostgresDialect) ColumnType(col ColumnDefinition) string {
	if col.Serial {
		return "BIGSERIAL"
	}
	switch col.Type {
	case schema.TypeBinary:
		return "BYTEA"
	case schema.TypeJSON:
		return "JSONB"
	}
	return baseColumnType(col)
}

// SupportsReturning implements Dialect.
func (PostgresDialect) SupportsReturning() bool { return true }

// PostgresDriver is the native pgx adapter.
type PostgresDriver struct {
	pool    *pgxpool.Pool
	dialect PostgresDialect
}

// ConnectPostgres opens a pgx connection pool from a URL and verifies it
// with a ping.
func ConnectPostgres(ctx context.Context, url string) (*PostgresDriver, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDriver{pool: pool}, nil
}

// NewPostgresDriver wraps an existing pool.
func NewPostgresDriver(pool *pgxpool.Pool) *PostgresDriver {
	return &PostgresDriver{pool: pool}
}

// Query implements Driver.
func (p *PostgresDriver) Query(ctx context.Context, stmt *Statement) ([]Row, error) {
	text, args, err := BuildSQL(p.dialect, stmt)
	if err != nil {
		return nil, wrapErr(p.dialect.Name(), opName(stmt.Kind), err)
	}

	rows, err := p.pool.Query(ctx, text, args...)
	if err != nil {
		return nil, wrapErr(p.dialect.Name(), opName(stmt.Kind), err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, wrapErr(p.dialect.Name(), opName(stmt.Kind), err)
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(p.dialect.Name(), opName(stmt.Kind), err)
	}
	return out, nil
}

// Exec implements Driver.
func (p *PostgresDriver) Exec(ctx context.Context, stmt *Statement) (int64, error) {
	text, args, err := BuildSQL(p.dialect, stmt)
	if err != nil {
		return 0, wrapErr(p.dialect.Name(), opName(stmt.Kind), err)
	}

	tag, err := p.pool.Exec(ctx, text, args...)
	if err != nil {
		return 0, wrapErr(p.dialect.Name(), opName(stmt.Kind), err)
	}
	return tag.RowsAffected(), nil
}

// Count implements Driver.
func (p *PostgresDriver) Count(ctx context.Context, stmt *Statement) (int64, error) {
	counted := *stmt
	counted.Kind = KindCount

	text, args, err := BuildSQL(p.dialect, &counted)
	if err != nil {
		return 0, wrapErr(p.dialect.Name(), "count", err)
	}

	var n int64
	if err := p.pool.QueryRow(ctx, text, args...).Scan(&n); err != nil {
		return 0, wrapErr(p.dialect.Name(), "count", err)
	}
	return n, nil
}

// EscapeIdentifier implements Driver.
func (p *PostgresDriver) EscapeIdentifier(name string) string {
	return p.dialect.QuoteIdentifier(name)
}

// Close implements Driver.
func (p *PostgresDriver) Close() error {
	p.pool.Close()
	return nil
}

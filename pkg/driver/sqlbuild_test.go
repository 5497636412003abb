package driver

import (
	"testing"

	"github.com/strataorm/strata/pkg/schema"
)

func intp(n int) *int { return &n }

func TestBuildSQL_Select(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		stmt    *Statement
		wantSQL string
		wantLen int
	}{
		{
			name:    "simple select all",
			dialect: PostgresDialect{},
			stmt:    &Statement{Kind: KindSelect, Table: "person"},
			wantSQL: `SELECT * FROM "person"`,
		},
		{
			name:    "projection",
			dialect: PostgresDialect{},
			stmt:    &Statement{Kind: KindSelect, Table: "person", Columns: []string{"id", "name"}},
			wantSQL: `SELECT "id", "name" FROM "person"`,
		},
		{
			name:    "conjunction of clauses",
			dialect: PostgresDialect{},
			stmt: &Statement{Kind: KindSelect, Table: "person", Conditions: []Condition{
				Eq("a", 1),
				In("b", 2, 3),
			}},
			wantSQL: `SELECT * FROM "person" WHERE "a" = $1 AND "b" IN ($2, $3)`,
			wantLen: 3,
		},
		{
			name:    "between is inclusive range syntax",
			dialect: PostgresDialect{},
			stmt: &Statement{Kind: KindSelect, Table: "person", Conditions: []Condition{
				Between("age", 5, 10),
			}},
			wantSQL: `SELECT * FROM "person" WHERE "age" BETWEEN $1 AND $2`,
			wantLen: 2,
		},
		{
			name:    "sqlite positional markers",
			dialect: SQLiteDialect{},
			stmt: &Statement{Kind: KindSelect, Table: "person", Conditions: []Condition{
				Eq("name", "ann"),
				Gt("age", 18),
			}},
			wantSQL: `SELECT * FROM "person" WHERE "name" = ? AND "age" > ?`,
			wantLen: 2,
		},
		{
			name:    "mysql backtick quoting",
			dialect: MySQLDialect{},
			stmt:    &Statement{Kind: KindSelect, Table: "person", Columns: []string{"id"}},
			wantSQL: "SELECT `id` FROM `person`",
		},
		{
			name:    "order limit offset",
			dialect: PostgresDialect{},
			stmt: &Statement{
				Kind:   KindSelect,
				Table:  "person",
				Order:  []OrderBy{{Column: "age", Direction: Desc}, {Column: "name", Direction: Asc}},
				Limit:  intp(10),
				Offset: intp(5),
			},
			wantSQL: `SELECT * FROM "person" ORDER BY "age" DESC, "name" ASC LIMIT 10 OFFSET 5`,
		},
		{
			name:    "empty IN set is always false",
			dialect: PostgresDialect{},
			stmt: &Statement{Kind: KindSelect, Table: "person", Conditions: []Condition{
				{Column: "id", Operator: OpIn, Value: []any{}},
			}},
			wantSQL: `SELECT * FROM "person" WHERE 1 = 0`,
		},
		{
			name:    "equality with nil is IS NULL",
			dialect: PostgresDialect{},
			stmt: &Statement{Kind: KindSelect, Table: "person", Conditions: []Condition{
				Eq("deleted_at", nil),
			}},
			wantSQL: `SELECT * FROM "person" WHERE "deleted_at" IS NULL`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := BuildSQL(tt.dialect, tt.stmt)
			if err != nil {
				t.Fatalf("BuildSQL failed: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("got  %s\nwant %s", sql, tt.wantSQL)
			}
			if len(args) != tt.wantLen {
				t.Errorf("got %d args, want %d", len(args), tt.wantLen)
			}
		})
	}
}

func TestBuildSQL_Count(t *testing.T) {
	sql, args, err := BuildSQL(PostgresDialect{}, &Statement{
		Kind:       KindCount,
		Table:      "person",
		Conditions: []Condition{Eq("surname", "doe")},
	})
	if err != nil {
		t.Fatalf("BuildSQL failed: %v", err)
	}
	if sql != `SELECT COUNT(*) FROM "person" WHERE "surname" = $1` {
		t.Errorf("got %s", sql)
	}
	if len(args) != 1 {
		t.Errorf("got %d args", len(args))
	}
}

func TestBuildSQL_Insert(t *testing.T) {
	stmt := &Statement{
		Kind:    KindInsert,
		Table:   "person",
		Columns: []string{"name", "age"},
		Values:  map[string]any{"name": "ann", "age": 30},
		Keys:    []string{"id"},
	}

	t.Run("postgres uses returning", func(t *testing.T) {
		sql, args, err := BuildSQL(PostgresDialect{}, stmt)
		if err != nil {
			t.Fatalf("BuildSQL failed: %v", err)
		}
		if sql != `INSERT INTO "person" ("name", "age") VALUES ($1, $2) RETURNING "id"` {
			t.Errorf("got %s", sql)
		}
		if len(args) != 2 {
			t.Errorf("got %d args", len(args))
		}
	})

	t.Run("sqlite omits returning", func(t *testing.T) {
		sql, _, err := BuildSQL(SQLiteDialect{}, stmt)
		if err != nil {
			t.Fatalf("BuildSQL failed: %v", err)
		}
		if sql != `INSERT INTO "person" ("name", "age") VALUES (?, ?)` {
			t.Errorf("got %s", sql)
		}
	})
}

func TestBuildSQL_UpdateDelete(t *testing.T) {
	t.Run("update", func(t *testing.T) {
		sql, args, err := BuildSQL(PostgresDialect{}, &Statement{
			Kind:       KindUpdate,
			Table:      "person",
			Columns:    []string{"name", "age"},
			Values:     map[string]any{"name": "bea", "age": 31},
			Conditions: []Condition{Eq("id", 7)},
		})
		if err != nil {
			t.Fatalf("BuildSQL failed: %v", err)
		}
		if sql != `UPDATE "person" SET "name" = $1, "age" = $2 WHERE "id" = $3` {
			t.Errorf("got %s", sql)
		}
		if len(args) != 3 {
			t.Errorf("got %d args", len(args))
		}
	})

	t.Run("delete", func(t *testing.T) {
		sql, args, err := BuildSQL(SQLiteDialect{}, &Statement{
			Kind:       KindDelete,
			Table:      "person",
			Conditions: []Condition{Lte("age", 10)},
		})
		if err != nil {
			t.Fatalf("BuildSQL failed: %v", err)
		}
		if sql != `DELETE FROM "person" WHERE "age" <= ?` {
			t.Errorf("got %s", sql)
		}
		if len(args) != 1 {
			t.Errorf("got %d args", len(args))
		}
	})
}

func TestBuildSQL_CreateDrop(t *testing.T) {
	def := &TableDefinition{
		Name: "person",
		Columns: []ColumnDefinition{
			{Name: "id", Type: schema.TypeInteger, Serial: true},
			{Name: "name", Type: schema.TypeText, Size: 100, Required: true},
			{Name: "meta", Type: schema.TypeJSON},
		},
		Keys: []string{"id"},
	}

	t.Run("postgres", func(t *testing.T) {
		sql, _, err := BuildSQL(PostgresDialect{}, &Statement{Kind: KindCreateTable, Define: def})
		if err != nil {
			t.Fatalf("BuildSQL failed: %v", err)
		}
		want := `CREATE TABLE IF NOT EXISTS "person" ("id" BIGSERIAL, "name" VARCHAR(100) NOT NULL, "meta" JSONB, PRIMARY KEY ("id"))`
		if sql != want {
			t.Errorf("got  %s\nwant %s", sql, want)
		}
	})

	t.Run("drop", func(t *testing.T) {
		sql, _, err := BuildSQL(MySQLDialect{}, &Statement{Kind: KindDropTable, Define: def})
		if err != nil {
			t.Fatalf("BuildSQL failed: %v", err)
		}
		if sql != "DROP TABLE IF EXISTS `person`" {
			t.Errorf("got %s", sql)
		}
	})
}

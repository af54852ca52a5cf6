package database

import (
	"strings"
	"testing"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "sqlite3"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "sqlite"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})

	t.Run("InsertPartitionQuery ignores duplicates", func(t *testing.T) {
		if !strings.Contains(dialect.InsertPartitionQuery(), "OR IGNORE") {
			t.Errorf("InsertPartitionQuery() = %v, want INSERT OR IGNORE", dialect.InsertPartitionQuery())
		}
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	tests := []struct {
		name    string
		dialect *PostgresDialect
		driver  string
	}{
		{name: "lib/pq", dialect: NewPostgresDialect(), driver: "postgres"},
		{name: "pgx", dialect: NewPgxDialect(), driver: "pgx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.dialect.DriverName(); result != tt.driver {
				t.Errorf("DriverName() = %v, want %v", result, tt.driver)
			}
			if result := tt.dialect.MigrationsSubdir(); result != "postgres" {
				t.Errorf("MigrationsSubdir() = %v, want %v", result, "postgres")
			}
			if !strings.Contains(tt.dialect.InsertPartitionQuery(), "ON CONFLICT (name) DO NOTHING") {
				t.Errorf("InsertPartitionQuery() = %v, want ON CONFLICT DO NOTHING", tt.dialect.InsertPartitionQuery())
			}
		})
	}
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "mysql"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "mysql"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})

	t.Run("GuardedUpsertQuery assigns question_number last", func(t *testing.T) {
		query := dialect.GuardedUpsertQuery()
		last := strings.LastIndex(query, "question_number = IF(")
		for _, col := range []string{"answer_1 = IF(", "answer_2 = IF(", "recorded_at = IF("} {
			if idx := strings.Index(query, col); idx < 0 || idx > last {
				t.Errorf("GuardedUpsertQuery() must assign %s before question_number, got %v", col, query)
			}
		}
	})
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		config   DialectConfig
		expected string
	}{
		{
			name:     "SQLite adds busy timeout",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "./answers.db"},
			expected: "./answers.db?_busy_timeout=5000&_foreign_keys=on",
		},
		{
			name:     "SQLite keeps existing query",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "file:answers.db?cache=shared"},
			expected: "file:answers.db?cache=shared&_busy_timeout=5000&_foreign_keys=on",
		},
		{
			name:     "SQLite explicit busy timeout untouched",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "answers.db?_busy_timeout=100"},
			expected: "answers.db?_busy_timeout=100",
		},
		{
			name:     "MySQL adds parseTime",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "user:pass@tcp(localhost:3306)/answers"},
			expected: "user:pass@tcp(localhost:3306)/answers?parseTime=true",
		},
		{
			name:     "MySQL appends to existing params",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "user:pass@tcp(localhost:3306)/answers?charset=utf8mb4"},
			expected: "user:pass@tcp(localhost:3306)/answers?charset=utf8mb4&parseTime=true",
		},
		{
			name:     "MySQL drops clientFoundRows",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "user:pass@tcp(localhost:3306)/answers?clientFoundRows=true&charset=utf8mb4"},
			expected: "user:pass@tcp(localhost:3306)/answers?charset=utf8mb4&parseTime=true",
		},
		{
			name:     "MySQL keeps explicit parseTime",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "user:pass@tcp(localhost:3306)/answers?parseTime=true&clientFoundRows=true"},
			expected: "user:pass@tcp(localhost:3306)/answers?parseTime=true",
		},
		{
			name:     "PostgreSQL URL unchanged",
			dialect:  NewPostgresDialect(),
			config:   DialectConfig{URL: "postgres://localhost/answers?sslmode=disable"},
			expected: "postgres://localhost/answers?sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.DSN(tt.config)
			if result != tt.expected {
				t.Errorf("DSN() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT question_number FROM answer_rows WHERE partition_name = ?",
			expected: "SELECT question_number FROM answer_rows WHERE partition_name = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT name FROM partitions WHERE name = ?",
			expected: "SELECT name FROM partitions WHERE name = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPgxDialect(),
			query:    "SELECT question_number FROM answer_rows WHERE partition_name = ? AND row_index = ?",
			expected: "SELECT question_number FROM answer_rows WHERE partition_name = $1 AND row_index = $2",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "DELETE FROM answer_rows WHERE partition_name = ? AND row_index = ?",
			expected: "DELETE FROM answer_rows WHERE partition_name = ? AND row_index = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		input   string
		driver  string
		wantErr bool
	}{
		{input: "", driver: "sqlite3"},
		{input: "sqlite", driver: "sqlite3"},
		{input: "PostgreSQL", driver: "postgres"},
		{input: "pgx", driver: "pgx"},
		{input: "mysql", driver: "mysql"},
		{input: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			dialect, err := DialectFor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DialectFor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && dialect.DriverName() != tt.driver {
				t.Errorf("DialectFor(%q).DriverName() = %v, want %v", tt.input, dialect.DriverName(), tt.driver)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	content := `
-- comment line;
CREATE TABLE a (
    id INTEGER
);

CREATE INDEX idx_a ON a(id);
`
	got := splitStatements(content)
	if len(got) != 2 {
		t.Fatalf("splitStatements() returned %d statements, want 2: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "CREATE TABLE a (") || strings.HasSuffix(got[0], ";") {
		t.Errorf("first statement = %q", got[0])
	}
	if got[1] != "CREATE INDEX idx_a ON a(id)" {
		t.Errorf("second statement = %q, want %q", got[1], "CREATE INDEX idx_a ON a(id)")
	}
}

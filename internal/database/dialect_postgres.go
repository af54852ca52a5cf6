package database

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// PostgresDialect implements Dialect for PostgreSQL. The same SQL runs on
// either lib/pq ("postgres") or pgx's database/sql driver ("pgx").
type PostgresDialect struct {
	driver string
}

// NewPostgresDialect creates a new PostgreSQL dialect backed by lib/pq
func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{driver: "postgres"}
}

// NewPgxDialect creates a PostgreSQL dialect backed by pgx/v5/stdlib
func NewPgxDialect() *PostgresDialect {
	return &PostgresDialect{driver: "pgx"}
}

func (d *PostgresDialect) DriverName() string {
	return d.driver
}

func (d *PostgresDialect) DSN(config DialectConfig) string {
	return config.URL
}

func (d *PostgresDialect) RewriteQuery(query string) string {
	// PostgreSQL uses $1, $2, etc. instead of ?
	return rewritePlaceholdersToNumbered(query)
}

func (d *PostgresDialect) ConfigureConnection(db *sql.DB, config DialectConfig) error {
	applyPool(db, config)

	// PostgreSQL has foreign keys enabled by default, no pragma needed
	return nil
}

func (d *PostgresDialect) MigrationsSubdir() string {
	return "postgres"
}

func (d *PostgresDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id BIGSERIAL PRIMARY KEY,
			filename TEXT UNIQUE NOT NULL,
			executed_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`
}

func (d *PostgresDialect) InsertPartitionQuery() string {
	return "INSERT INTO partitions (name) VALUES (?) ON CONFLICT (name) DO NOTHING"
}

func (d *PostgresDialect) GuardedUpsertQuery() string {
	return onConflictGuardedUpsert
}

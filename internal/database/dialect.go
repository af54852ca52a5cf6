package database

import (
	"database/sql"
	"regexp"
	"strconv"
	"time"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// ConfigureConnection applies pool limits and any database-specific session settings
	ConfigureConnection(db *sql.DB, config DialectConfig) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// InsertPartitionQuery registers a partition name, doing nothing if it already exists.
	// Takes one argument: the name.
	InsertPartitionQuery() string

	// GuardedUpsertQuery writes an answer row unless the row already holds the same
	// question number. Arguments: partition, row, question number, answer 1, answer 2,
	// recorded at. RowsAffected is zero when the write was skipped.
	GuardedUpsertQuery() string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// placeholderRegexp matches ? placeholders not inside quotes
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// applyPool sets pool limits shared by every dialect, falling back to the defaults the server has always used.
func applyPool(db *sql.DB, config DialectConfig) {
	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := config.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := config.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(1 * time.Minute)
}

// onConflictGuardedUpsert is shared by SQLite and PostgreSQL, which both support
// INSERT ... ON CONFLICT ... DO UPDATE ... WHERE.
const onConflictGuardedUpsert = `
	INSERT INTO answer_rows (partition_name, row_index, question_number, answer_1, answer_2, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (partition_name, row_index) DO UPDATE SET
		question_number = excluded.question_number,
		answer_1 = excluded.answer_1,
		answer_2 = excluded.answer_2,
		recorded_at = excluded.recorded_at
	WHERE answer_rows.question_number IS NULL
		OR answer_rows.question_number <> excluded.question_number
`

package database

import (
	"database/sql"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLDialect implements Dialect for MySQL
type MySQLDialect struct{}

// NewMySQLDialect creates a new MySQL dialect
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

func (d *MySQLDialect) DriverName() string {
	return "mysql"
}

// DSN forces parseTime so DATETIME columns scan into time.Time, and drops
// clientFoundRows so RowsAffected reports changed rows, not matched ones.
func (d *MySQLDialect) DSN(config DialectConfig) string {
	base, query, _ := strings.Cut(config.URL, "?")

	params := make([]string, 0, 4)
	hasParseTime := false
	for _, param := range strings.Split(query, "&") {
		if param == "" || strings.HasPrefix(param, "clientFoundRows=") {
			continue
		}
		if strings.HasPrefix(param, "parseTime=") {
			hasParseTime = true
		}
		params = append(params, param)
	}
	if !hasParseTime {
		params = append(params, "parseTime=true")
	}

	return base + "?" + strings.Join(params, "&")
}

func (d *MySQLDialect) RewriteQuery(query string) string {
	// MySQL uses ? placeholders like SQLite, no rewrite needed
	return query
}

func (d *MySQLDialect) ConfigureConnection(db *sql.DB, config DialectConfig) error {
	applyPool(db, config)

	// Ensure foreign key checks are enabled
	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS = 1;"); err != nil {
		return err
	}

	return nil
}

func (d *MySQLDialect) MigrationsSubdir() string {
	return "mysql"
}

func (d *MySQLDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			executed_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
		);
	`
}

func (d *MySQLDialect) InsertPartitionQuery() string {
	return "INSERT IGNORE INTO partitions (name) VALUES (?)"
}

// GuardedUpsertQuery evaluates assignments left to right, so question_number
// must be assigned last for the guard to see the stored value.
func (d *MySQLDialect) GuardedUpsertQuery() string {
	const guard = "(question_number IS NULL OR question_number <> VALUES(question_number))"
	return "INSERT INTO answer_rows (partition_name, row_index, question_number, answer_1, answer_2, recorded_at) " +
		"VALUES (?, ?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE " +
		"answer_1 = IF(" + guard + ", VALUES(answer_1), answer_1), " +
		"answer_2 = IF(" + guard + ", VALUES(answer_2), answer_2), " +
		"recorded_at = IF(" + guard + ", VALUES(recorded_at), recorded_at), " +
		"question_number = IF(" + guard + ", VALUES(question_number), question_number)"
}

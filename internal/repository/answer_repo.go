package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"linguaporta/internal/database"
	"linguaporta/internal/models"
)

// maxRowsPerQuery bounds the IN list of a single ReadRows query.
const maxRowsPerQuery = 500

// AnswerRepository stores partitions as rows of the answer_rows table
type AnswerRepository struct {
	db *database.DB
}

// NewAnswerRepository creates a new answer repository
func NewAnswerRepository(db *database.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// EnsurePartition registers a partition if it is not registered yet
func (r *AnswerRepository) EnsurePartition(ctx context.Context, partition string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Dialect.InsertPartitionQuery(), partition); err != nil {
		return fmt.Errorf("failed to create partition: %w", err)
	}
	return nil
}

// HasPartition reports whether a partition is registered
func (r *AnswerRepository) HasPartition(ctx context.Context, partition string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM partitions WHERE name = ?"
	if err := r.db.QueryRowContext(ctx, query, partition).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check partition: %w", err)
	}
	return count > 0, nil
}

// ReadRows retrieves the requested rows of a partition
func (r *AnswerRepository) ReadRows(ctx context.Context, partition string, rows []int) (map[int]models.AnswerRow, error) {
	result := make(map[int]models.AnswerRow, len(rows))
	unique := dedupeRows(rows)

	for start := 0; start < len(unique); start += maxRowsPerQuery {
		end := start + maxRowsPerQuery
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]

		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, partition)
		for _, row := range chunk {
			args = append(args, row)
		}

		query := `
			SELECT row_index, question_number, answer_1, answer_2, recorded_at
			FROM answer_rows
			WHERE partition_name = ? AND row_index IN (` + placeholders(len(chunk)) + `)
		`
		if err := scanRows(ctx, r.db, result, query, args...); err != nil {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
	}

	return result, nil
}

// ReadKey retrieves only the question number column of a row
func (r *AnswerRepository) ReadKey(ctx context.Context, partition string, row int) (int, error) {
	var qn sql.NullInt64
	query := "SELECT question_number FROM answer_rows WHERE partition_name = ? AND row_index = ?"
	err := r.db.QueryRowContext(ctx, query, partition, row).Scan(&qn)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read key: %w", err)
	}
	return int(qn.Int64), nil
}

// WriteRow replaces a row unconditionally
func (r *AnswerRepository) WriteRow(ctx context.Context, partition string, row int, value models.AnswerRow) error {
	if err := checkDataRow(row); err != nil {
		return err
	}

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		return replaceRow(ctx, tx, partition, row, value)
	})
	if err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

func replaceRow(ctx context.Context, q database.DBTX, partition string, row int, value models.AnswerRow) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM answer_rows WHERE partition_name = ? AND row_index = ?", partition, row); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO answer_rows (partition_name, row_index, question_number, answer_1, answer_2, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rowArgs(partition, row, value)...)
	return err
}

// WriteRowIfVacant writes a row in one statement unless it already holds the same question number
func (r *AnswerRepository) WriteRowIfVacant(ctx context.Context, partition string, row int, value models.AnswerRow) (bool, error) {
	if err := checkDataRow(row); err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, r.db.Dialect.GuardedUpsertQuery(), rowArgs(partition, row, value)...)
	if err != nil {
		return false, fmt.Errorf("failed to write row: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// ReadPartition retrieves every row of a partition
func (r *AnswerRepository) ReadPartition(ctx context.Context, partition string) (map[int]models.AnswerRow, error) {
	result := make(map[int]models.AnswerRow)
	query := `
		SELECT row_index, question_number, answer_1, answer_2, recorded_at
		FROM answer_rows
		WHERE partition_name = ?
		ORDER BY row_index ASC
	`
	if err := scanRows(ctx, r.db, result, query, partition); err != nil {
		return nil, fmt.Errorf("failed to read partition: %w", err)
	}
	return result, nil
}

func scanRows(ctx context.Context, q database.DBTX, into map[int]models.AnswerRow, query string, args ...interface{}) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rowIndex   int
			qn         sql.NullInt64
			a1, a2     sql.NullString
			recordedAt sql.NullTime
		)
		if err := rows.Scan(&rowIndex, &qn, &a1, &a2, &recordedAt); err != nil {
			return err
		}

		value := models.AnswerRow{QuestionNumber: int(qn.Int64)}
		if a1.Valid {
			value.Answer1 = models.StringPtr(a1.String)
		}
		if a2.Valid {
			value.Answer2 = models.StringPtr(a2.String)
		}
		if recordedAt.Valid {
			value.RecordedAt = recordedAt.Time.UTC()
		}
		into[rowIndex] = value
	}

	return rows.Err()
}

func rowArgs(partition string, row int, value models.AnswerRow) []interface{} {
	var qn interface{}
	if value.QuestionNumber != 0 {
		qn = value.QuestionNumber
	}
	return []interface{}{
		partition,
		row,
		qn,
		nullableString(value.Answer1),
		nullableString(value.Answer2),
		value.RecordedAt.UTC(),
	}
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func dedupeRows(rows []int) []int {
	seen := make(map[int]bool, len(rows))
	unique := make([]int, 0, len(rows))
	for _, row := range rows {
		if !seen[row] {
			seen[row] = true
			unique = append(unique, row)
		}
	}
	return unique
}

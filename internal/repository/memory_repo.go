package repository

import (
	"context"
	"sync"

	"linguaporta/internal/models"
)

// MemoryRepository keeps partitions in process memory. Used for local
// development and tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	partitions map[string]map[int]models.AnswerRow
}

// NewMemoryRepository creates an empty grid with the given partitions provisioned.
func NewMemoryRepository(partitions ...string) *MemoryRepository {
	r := &MemoryRepository{partitions: make(map[string]map[int]models.AnswerRow)}
	for _, p := range partitions {
		r.partitions[p] = make(map[int]models.AnswerRow)
	}
	return r
}

// EnsurePartition creates a partition if it does not exist
func (r *MemoryRepository) EnsurePartition(ctx context.Context, partition string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.partitions[partition]; !ok {
		r.partitions[partition] = make(map[int]models.AnswerRow)
	}
	return nil
}

// HasPartition reports whether a partition exists
func (r *MemoryRepository) HasPartition(ctx context.Context, partition string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.partitions[partition]
	return ok, nil
}

// ReadRows returns the requested rows that exist
func (r *MemoryRepository) ReadRows(ctx context.Context, partition string, rows []int) (map[int]models.AnswerRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.partitions[partition]
	if !ok {
		return nil, errPartitionMissing(partition)
	}

	result := make(map[int]models.AnswerRow, len(rows))
	for _, row := range rows {
		if v, ok := data[row]; ok {
			result[row] = v
		}
	}
	return result, nil
}

// ReadKey returns the question number stored at a row
func (r *MemoryRepository) ReadKey(ctx context.Context, partition string, row int) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.partitions[partition]
	if !ok {
		return 0, errPartitionMissing(partition)
	}
	return data[row].QuestionNumber, nil
}

// WriteRow replaces a row unconditionally
func (r *MemoryRepository) WriteRow(ctx context.Context, partition string, row int, value models.AnswerRow) error {
	if err := checkDataRow(row); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.partitions[partition]
	if !ok {
		return errPartitionMissing(partition)
	}
	data[row] = value
	return nil
}

// WriteRowIfVacant writes a row unless it already holds the same question number
func (r *MemoryRepository) WriteRowIfVacant(ctx context.Context, partition string, row int, value models.AnswerRow) (bool, error) {
	if err := checkDataRow(row); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.partitions[partition]
	if !ok {
		return false, errPartitionMissing(partition)
	}
	if existing, ok := data[row]; ok && existing.QuestionNumber == value.QuestionNumber {
		return false, nil
	}
	data[row] = value
	return true, nil
}

// ReadPartition returns a copy of every row in a partition
func (r *MemoryRepository) ReadPartition(ctx context.Context, partition string) (map[int]models.AnswerRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.partitions[partition]
	if !ok {
		return nil, errPartitionMissing(partition)
	}

	result := make(map[int]models.AnswerRow, len(data))
	for k, v := range data {
		result[k] = v
	}
	return result, nil
}

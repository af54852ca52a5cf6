package repository

import (
	"errors"
	"fmt"
)

// ErrPartitionMissing is returned when a row operation targets an unprovisioned partition.
var ErrPartitionMissing = errors.New("partition does not exist")

func errPartitionMissing(partition string) error {
	return fmt.Errorf("%w: %s", ErrPartitionMissing, partition)
}

// checkDataRow rejects the header row and anything above it.
func checkDataRow(row int) error {
	if row < 2 {
		return fmt.Errorf("row %d is not a data row", row)
	}
	return nil
}

package validation

import (
	"fmt"
	"math"
	"strings"
)

// MaxQuestionNumber keeps the addressed row within a 32-bit integer column.
const MaxQuestionNumber = math.MaxInt32 - 1

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateQuestionNumber checks that a question number addresses a data row.
// Row 1 holds the header, so the smallest usable question number is 1.
func ValidateQuestionNumber(n int) error {
	if n < 1 {
		return ValidationError{Field: "question_number", Message: fmt.Sprintf("must be a positive integer, got %d", n)}
	}
	if n > MaxQuestionNumber {
		return ValidationError{Field: "question_number", Message: fmt.Sprintf("must be at most %d, got %d", MaxQuestionNumber, n)}
	}
	return nil
}

// ValidatePartitionName checks a single partition (sheet or table) name.
func ValidatePartitionName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "partition", Message: "partition name is required"}
	}
	if len(name) > 100 {
		return ValidationError{Field: "partition", Message: "partition name must be at most 100 bytes"}
	}
	return nil
}

// ValidatePartitionNames checks the word-meaning and fill-blank partition names as a pair.
func ValidatePartitionNames(wordMeaning, fillBlank string) error {
	if err := ValidatePartitionName(wordMeaning); err != nil {
		return ValidationError{Field: "store.word_meaning_partition", Message: err.(ValidationError).Message}
	}
	if err := ValidatePartitionName(fillBlank); err != nil {
		return ValidationError{Field: "store.fill_blank_partition", Message: err.(ValidationError).Message}
	}
	if strings.TrimSpace(wordMeaning) == strings.TrimSpace(fillBlank) {
		return ValidationError{Field: "store", Message: "word-meaning and fill-blank partitions must differ"}
	}
	return nil
}

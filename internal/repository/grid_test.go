package repository

import (
	"context"
	"testing"
	"time"

	"linguaporta/internal/models"
)

// grid is the method set every backend provides.
type grid interface {
	EnsurePartition(ctx context.Context, partition string) error
	HasPartition(ctx context.Context, partition string) (bool, error)
	ReadRows(ctx context.Context, partition string, rows []int) (map[int]models.AnswerRow, error)
	ReadKey(ctx context.Context, partition string, row int) (int, error)
	WriteRow(ctx context.Context, partition string, row int, value models.AnswerRow) error
	ReadPartition(ctx context.Context, partition string) (map[int]models.AnswerRow, error)
}

type guardedGrid interface {
	grid
	WriteRowIfVacant(ctx context.Context, partition string, row int, value models.AnswerRow) (bool, error)
}

var testTime = time.Date(2025, time.April, 1, 9, 30, 0, 0, time.UTC)

func answerRow(qn int, a1, a2 string) models.AnswerRow {
	row := models.AnswerRow{QuestionNumber: qn, RecordedAt: testTime}
	if a1 != "" {
		row.Answer1 = models.StringPtr(a1)
	}
	if a2 != "" {
		row.Answer2 = models.StringPtr(a2)
	}
	return row
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

// runGridContract checks the behaviour the answer store relies on.
func runGridContract(t *testing.T, g grid) {
	t.Helper()
	ctx := context.Background()

	t.Run("provisioning", func(t *testing.T) {
		ok, err := g.HasPartition(ctx, "words")
		if err != nil {
			t.Fatalf("HasPartition() error = %v", err)
		}
		if ok {
			t.Fatal("HasPartition() = true before provisioning")
		}

		if err := g.EnsurePartition(ctx, "words"); err != nil {
			t.Fatalf("EnsurePartition() error = %v", err)
		}
		if err := g.EnsurePartition(ctx, "words"); err != nil {
			t.Fatalf("EnsurePartition() second call error = %v", err)
		}

		ok, err = g.HasPartition(ctx, "words")
		if err != nil {
			t.Fatalf("HasPartition() error = %v", err)
		}
		if !ok {
			t.Fatal("HasPartition() = false after provisioning")
		}
	})

	t.Run("empty row has no key", func(t *testing.T) {
		key, err := g.ReadKey(ctx, "words", 6)
		if err != nil {
			t.Fatalf("ReadKey() error = %v", err)
		}
		if key != 0 {
			t.Errorf("ReadKey() = %d, want 0", key)
		}
	})

	t.Run("write and read back", func(t *testing.T) {
		if err := g.WriteRow(ctx, "words", 6, answerRow(5, "apple", "a fruit")); err != nil {
			t.Fatalf("WriteRow() error = %v", err)
		}
		if err := g.WriteRow(ctx, "words", 3, answerRow(2, "dog", "")); err != nil {
			t.Fatalf("WriteRow() error = %v", err)
		}

		key, err := g.ReadKey(ctx, "words", 6)
		if err != nil {
			t.Fatalf("ReadKey() error = %v", err)
		}
		if key != 5 {
			t.Errorf("ReadKey() = %d, want 5", key)
		}

		rows, err := g.ReadRows(ctx, "words", []int{6, 3, 40})
		if err != nil {
			t.Fatalf("ReadRows() error = %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("ReadRows() returned %d rows, want 2", len(rows))
		}
		got := rows[6]
		if got.QuestionNumber != 5 || deref(got.Answer1) != "apple" || deref(got.Answer2) != "a fruit" {
			t.Errorf("row 6 = {%d %s %s}, want {5 apple a fruit}", got.QuestionNumber, deref(got.Answer1), deref(got.Answer2))
		}
		if !got.RecordedAt.Equal(testTime) {
			t.Errorf("row 6 RecordedAt = %v, want %v", got.RecordedAt, testTime)
		}
		if rows[3].Answer2 != nil {
			t.Errorf("row 3 Answer2 = %q, want nil", deref(rows[3].Answer2))
		}
	})

	t.Run("header row is protected", func(t *testing.T) {
		if err := g.WriteRow(ctx, "words", 1, answerRow(0, "x", "y")); err == nil {
			t.Error("WriteRow() on row 1 should fail")
		}
	})

	t.Run("read partition", func(t *testing.T) {
		rows, err := g.ReadPartition(ctx, "words")
		if err != nil {
			t.Fatalf("ReadPartition() error = %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("ReadPartition() returned %d rows, want 2", len(rows))
		}
		if rows[3].QuestionNumber != 2 {
			t.Errorf("row 3 QuestionNumber = %d, want 2", rows[3].QuestionNumber)
		}
	})
}

// runGuardContract checks WriteRowIfVacant on a provisioned "words" partition.
func runGuardContract(t *testing.T, g guardedGrid) {
	t.Helper()
	ctx := context.Background()

	steps := []struct {
		name    string
		value   models.AnswerRow
		want    bool
		wantA1  string
		wantKey int
	}{
		{name: "vacant row is written", value: answerRow(9, "first", ""), want: true, wantA1: "first", wantKey: 9},
		{name: "same key is skipped", value: answerRow(9, "second", ""), want: false, wantA1: "first", wantKey: 9},
		{name: "mismatched key is replaced", value: answerRow(11, "third", ""), want: true, wantA1: "third", wantKey: 11},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			written, err := g.WriteRowIfVacant(ctx, "words", 10, step.value)
			if err != nil {
				t.Fatalf("WriteRowIfVacant() error = %v", err)
			}
			if written != step.want {
				t.Errorf("WriteRowIfVacant() = %v, want %v", written, step.want)
			}

			rows, err := g.ReadRows(ctx, "words", []int{10})
			if err != nil {
				t.Fatalf("ReadRows() error = %v", err)
			}
			if got := rows[10]; got.QuestionNumber != step.wantKey || deref(got.Answer1) != step.wantA1 {
				t.Errorf("row 10 = {%d %s}, want {%d %s}", got.QuestionNumber, deref(got.Answer1), step.wantKey, step.wantA1)
			}
		})
	}
}

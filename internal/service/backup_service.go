package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"linguaporta/internal/models"
)

// BackupVersion is the format written by Export and accepted by Import.
const BackupVersion = "1.0"

// BackupData represents the complete answer store backup structure
type BackupData struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Backend    string            `json:"backend"`
	Partitions []PartitionBackup `json:"partitions"`
}

// PartitionBackup holds the filled rows of one question type
type PartitionBackup struct {
	Name         string      `json:"name"`
	QuestionType string      `json:"question_type"`
	Rows         []RowBackup `json:"rows"`
}

// RowBackup represents a stored answer for backup
type RowBackup struct {
	QuestionNumber int       `json:"question_number"`
	Answer1        *string   `json:"answer_1"`
	Answer2        *string   `json:"answer_2"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// ImportSummary counts what an import did, or would do on a dry run.
type ImportSummary struct {
	Rows    int
	Written int
	Skipped int
	Failed  int
}

// BackupService handles answer store export and restore
type BackupService struct {
	answers *AnswerService
	backend string
	logger  *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(answers *AnswerService, backend string, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{answers: answers, backend: backend, logger: logger}
}

// Export writes a backup of every partition to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	return file.Close()
}

// ExportToWriter writes a backup of every partition to w
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup := &BackupData{
		Version:    BackupVersion,
		ExportedAt: time.Now().UTC(),
		Backend:    s.backend,
	}

	for _, qtype := range models.QuestionTypes() {
		partition, _ := s.answers.PartitionFor(qtype)
		records, err := s.answers.Records(ctx, qtype)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", qtype, err)
		}

		pb := PartitionBackup{
			Name:         partition,
			QuestionType: qtype.String(),
			Rows:         make([]RowBackup, 0, len(records)),
		}
		for _, r := range records {
			pb.Rows = append(pb.Rows, RowBackup{
				QuestionNumber: r.QuestionNumber,
				Answer1:        r.Answer1,
				Answer2:        r.Answer2,
				RecordedAt:     r.RecordedAt,
			})
		}
		backup.Partitions = append(backup.Partitions, pb)

		s.logger.Info("exported partition",
			zap.String("partition", partition),
			zap.Int("rows", len(pb.Rows)))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

// Import restores answers from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string, dryRun bool) (ImportSummary, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file, dryRun)
}

// ImportFromReader replays a backup through the guarded set, so rows that are
// already filled are kept and the original timestamps survive.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader, dryRun bool) (ImportSummary, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return ImportSummary{}, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return ImportSummary{}, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	var summary ImportSummary
	for _, pb := range backup.Partitions {
		qtype := models.ParseQuestionType(pb.QuestionType)
		if qtype == models.QuestionTypeUnknown {
			return summary, fmt.Errorf("partition %s has unknown question type %q", pb.Name, pb.QuestionType)
		}

		summary.Rows += len(pb.Rows)
		if dryRun {
			s.logger.Info("would import partition",
				zap.String("partition", pb.Name),
				zap.String("question_type", pb.QuestionType),
				zap.Int("rows", len(pb.Rows)))
			continue
		}

		items := make([]models.AnswerSubmission, 0, len(pb.Rows))
		for _, row := range pb.Rows {
			items = append(items, models.AnswerSubmission{
				QuestionNumber: row.QuestionNumber,
				QuestionType:   qtype.String(),
				Answer1:        row.Answer1,
				Answer2:        row.Answer2,
				RecordedAt:     row.RecordedAt,
			})
		}

		result, err := s.answers.Set(ctx, items)
		if err != nil {
			return summary, fmt.Errorf("failed to import %s: %w", pb.Name, err)
		}
		summary.Written += result.Written()
		summary.Skipped += result.Skipped()
		summary.Failed += result.Failed()

		s.logger.Info("imported partition",
			zap.String("partition", pb.Name),
			zap.Int("written", result.Written()),
			zap.Int("skipped", result.Skipped()),
			zap.Int("failed", result.Failed()))
	}

	return summary, nil
}

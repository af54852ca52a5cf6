package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"linguaporta/internal/models"
	"linguaporta/internal/validation"
)

var (
	// ErrPartitionNotFound means the store has not been provisioned.
	ErrPartitionNotFound = errors.New("partition not found")
	// ErrInvalidConfig is returned by NewAnswerService for unusable partition settings.
	ErrInvalidConfig = errors.New("invalid answer store config")
)

// PartitionNotFoundError lists every configured partition the grid is missing.
type PartitionNotFoundError struct {
	Required []string
	Missing  []string
}

func (e *PartitionNotFoundError) Error() string {
	quoted := make([]string, len(e.Required))
	for i, name := range e.Required {
		quoted[i] = "'" + name + "'"
	}
	return "Required partitions not found. Please create: " + strings.Join(quoted, " and ")
}

func (e *PartitionNotFoundError) Unwrap() error {
	return ErrPartitionNotFound
}

// AnswerGrid is the row-addressable storage behind the answer store. Rows are
// 1-indexed per partition and row 1 is the header.
type AnswerGrid interface {
	HasPartition(ctx context.Context, partition string) (bool, error)
	// ReadRows returns the rows that exist among the requested ones.
	ReadRows(ctx context.Context, partition string, rows []int) (map[int]models.AnswerRow, error)
	// ReadKey returns the question number stored at row, or 0 if the key cell is empty.
	ReadKey(ctx context.Context, partition string, row int) (int, error)
	WriteRow(ctx context.Context, partition string, row int, data models.AnswerRow) error
	// ReadPartition returns every data row keyed by row number.
	ReadPartition(ctx context.Context, partition string) (map[int]models.AnswerRow, error)
}

// GuardedWriter is implemented by grids that can apply the write guard atomically.
type GuardedWriter interface {
	// WriteRowIfVacant stores data unless the row already holds data.QuestionNumber.
	WriteRowIfVacant(ctx context.Context, partition string, row int, data models.AnswerRow) (bool, error)
}

// Provisioner is implemented by grids that can create missing partitions.
type Provisioner interface {
	EnsurePartition(ctx context.Context, partition string) error
}

// Recorder receives per-item store events. A nil Recorder is ignored.
type Recorder interface {
	ObserveLookup(partition, result string)
	ObserveWrite(partition, outcome string)
}

// StoreConfig names the partitions backing each question type.
type StoreConfig struct {
	WordMeaningPartition string
	FillBlankPartition   string
}

// AnswerService is the answer store: batched lookup and guarded batched upsert
// over a two-partition grid.
type AnswerService struct {
	grid     AnswerGrid
	cfg      StoreConfig
	logger   *zap.Logger
	recorder Recorder
	locks    *rowLocks
	now      func() time.Time
}

// Option customizes an AnswerService.
type Option func(*AnswerService)

// WithRecorder reports lookups and writes to r.
func WithRecorder(r Recorder) Option {
	return func(s *AnswerService) { s.recorder = r }
}

// WithClock overrides the timestamp source for written rows.
func WithClock(now func() time.Time) Option {
	return func(s *AnswerService) { s.now = now }
}

// NewAnswerService creates the answer store over grid.
func NewAnswerService(grid AnswerGrid, cfg StoreConfig, logger *zap.Logger, opts ...Option) (*AnswerService, error) {
	if grid == nil {
		return nil, fmt.Errorf("%w: grid is required", ErrInvalidConfig)
	}
	if err := validation.ValidatePartitionNames(cfg.WordMeaningPartition, cfg.FillBlankPartition); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &AnswerService{
		grid:   grid,
		cfg:    cfg,
		logger: logger,
		locks:  newRowLocks(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Partitions returns the configured partition names in question type order.
func (s *AnswerService) Partitions() []string {
	return []string{s.cfg.WordMeaningPartition, s.cfg.FillBlankPartition}
}

// PartitionFor returns the partition holding answers of type t.
func (s *AnswerService) PartitionFor(t models.QuestionType) (string, bool) {
	switch t {
	case models.QuestionTypeWordMeaning:
		return s.cfg.WordMeaningPartition, true
	case models.QuestionTypeFillBlank:
		return s.cfg.FillBlankPartition, true
	default:
		return "", false
	}
}

// Provision creates missing partitions when the grid supports it.
func (s *AnswerService) Provision(ctx context.Context) error {
	p, ok := s.grid.(Provisioner)
	if !ok {
		return nil
	}
	for _, name := range s.Partitions() {
		if err := p.EnsurePartition(ctx, name); err != nil {
			return fmt.Errorf("failed to provision partition %s: %w", name, err)
		}
	}
	return nil
}

// CheckPartitions fails with a *PartitionNotFoundError unless both partitions exist.
func (s *AnswerService) CheckPartitions(ctx context.Context) error {
	var missing []string
	for _, name := range s.Partitions() {
		ok, err := s.grid.HasPartition(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check partition %s: %w", name, err)
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &PartitionNotFoundError{Required: s.Partitions(), Missing: missing}
	}
	return nil
}

// Get looks up stored answers. Hits come back in request order; misses,
// unknown types and failed reads are logged and left out.
func (s *AnswerService) Get(ctx context.Context, lookups []models.Lookup) ([]models.AnswerRecord, error) {
	if err := s.CheckPartitions(ctx); err != nil {
		return nil, err
	}

	type target struct {
		partition string
		qtype     models.QuestionType
		row       int
	}

	targets := make([]*target, len(lookups))
	wanted := make(map[string][]int)
	for i, l := range lookups {
		qtype := models.ParseQuestionType(l.QuestionType)
		partition, ok := s.PartitionFor(qtype)
		if !ok {
			s.logger.Warn("skipping lookup with unknown question type",
				zap.Int("question_number", l.QuestionNumber),
				zap.String("question_type", l.QuestionType))
			s.observeLookup("", "skipped")
			continue
		}
		if err := validation.ValidateQuestionNumber(l.QuestionNumber); err != nil {
			s.logger.Warn("skipping lookup with invalid question number",
				zap.Int("question_number", l.QuestionNumber),
				zap.String("question_type", l.QuestionType),
				zap.Error(err))
			s.observeLookup(partition, "skipped")
			continue
		}

		row := models.RowForQuestion(l.QuestionNumber)
		targets[i] = &target{partition: partition, qtype: qtype, row: row}
		wanted[partition] = append(wanted[partition], row)
	}

	// One read per partition.
	loaded := make(map[string]map[int]models.AnswerRow, len(wanted))
	for partition, rows := range wanted {
		data, err := s.grid.ReadRows(ctx, partition, rows)
		if err != nil {
			s.logger.Error("failed to read partition rows",
				zap.String("partition", partition),
				zap.Int("rows", len(rows)),
				zap.Error(err))
			continue
		}
		loaded[partition] = data
	}

	records := make([]models.AnswerRecord, 0, len(lookups))
	for i, t := range targets {
		if t == nil {
			continue
		}
		qn := lookups[i].QuestionNumber

		data, ok := loaded[t.partition]
		if !ok {
			s.observeLookup(t.partition, "failed")
			continue
		}

		row, ok := data[t.row]
		if !ok || row.QuestionNumber != qn {
			s.logger.Warn("answer not found",
				zap.Int("question_number", qn),
				zap.String("question_type", t.qtype.String()))
			s.observeLookup(t.partition, "miss")
			continue
		}

		s.observeLookup(t.partition, "hit")
		records = append(records, models.AnswerRecord{
			QuestionNumber: qn,
			QuestionType:   t.qtype,
			Answer1:        row.Answer1,
			Answer2:        row.Answer2,
			RecordedAt:     row.RecordedAt,
		})
	}

	return records, nil
}

// Set stores each submission unless its row already holds the same question
// number. Items are independent: a skipped or failed item never stops the rest.
func (s *AnswerService) Set(ctx context.Context, items []models.AnswerSubmission) (models.SetResult, error) {
	if err := s.CheckPartitions(ctx); err != nil {
		return models.SetResult{}, err
	}

	result := models.SetResult{Outcomes: make([]models.SetOutcome, 0, len(items))}
	for _, item := range items {
		outcome := s.setOne(ctx, item)

		fields := []zap.Field{
			zap.Int("question_number", item.QuestionNumber),
			zap.String("question_type", item.QuestionType),
			zap.String("outcome", outcome.Status.String()),
		}
		switch outcome.Status {
		case models.OutcomeWritten:
			s.logger.Debug("answer stored", fields...)
		case models.OutcomeSkipped:
			s.logger.Warn("answer skipped", append(fields, zap.String("reason", outcome.Reason))...)
		case models.OutcomeFailed:
			s.logger.Error("answer failed", append(fields, zap.String("reason", outcome.Reason))...)
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result, nil
}

func (s *AnswerService) setOne(ctx context.Context, item models.AnswerSubmission) (outcome models.SetOutcome) {
	outcome = models.SetOutcome{
		QuestionNumber: item.QuestionNumber,
		QuestionType:   item.QuestionType,
	}

	partition, ok := s.PartitionFor(models.ParseQuestionType(item.QuestionType))
	if !ok {
		outcome.Status = models.OutcomeSkipped
		outcome.Reason = fmt.Sprintf("unknown question type %q", item.QuestionType)
		s.observeWrite("", outcome.Status)
		return outcome
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = models.OutcomeFailed
			outcome.Reason = fmt.Sprintf("panic: %v", r)
		}
		s.observeWrite(partition, outcome.Status)
	}()

	if err := validation.ValidateQuestionNumber(item.QuestionNumber); err != nil {
		outcome.Status = models.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	if err := ctx.Err(); err != nil {
		outcome.Status = models.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	row := models.RowForQuestion(item.QuestionNumber)
	recordedAt := item.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}
	data := models.AnswerRow{
		QuestionNumber: item.QuestionNumber,
		Answer1:        item.Answer1,
		Answer2:        item.Answer2,
		RecordedAt:     recordedAt.UTC(),
	}

	unlock := s.locks.lock(partition, row)
	defer unlock()

	written, err := s.writeGuarded(ctx, partition, row, data)
	switch {
	case err != nil:
		outcome.Status = models.OutcomeFailed
		outcome.Reason = err.Error()
	case written:
		outcome.Status = models.OutcomeWritten
	default:
		outcome.Status = models.OutcomeSkipped
		outcome.Reason = "already filled"
	}
	return outcome
}

// writeGuarded writes data unless the row's key already equals data.QuestionNumber.
// Grids without an atomic conditional write fall back to read-then-write under the row lock.
func (s *AnswerService) writeGuarded(ctx context.Context, partition string, row int, data models.AnswerRow) (bool, error) {
	if gw, ok := s.grid.(GuardedWriter); ok {
		written, err := gw.WriteRowIfVacant(ctx, partition, row, data)
		if err != nil {
			return false, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		return written, nil
	}

	existing, err := s.grid.ReadKey(ctx, partition, row)
	if err != nil {
		return false, fmt.Errorf("failed to read key at row %d: %w", row, err)
	}
	if existing == data.QuestionNumber {
		return false, nil
	}
	if err := s.grid.WriteRow(ctx, partition, row, data); err != nil {
		return false, fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return true, nil
}

// Records returns every filled record of a question type ordered by row.
func (s *AnswerService) Records(ctx context.Context, t models.QuestionType) ([]models.AnswerRecord, error) {
	partition, ok := s.PartitionFor(t)
	if !ok {
		return nil, fmt.Errorf("unknown question type %v", t)
	}

	rows, err := s.grid.ReadPartition(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("failed to read partition %s: %w", partition, err)
	}

	records := make([]models.AnswerRecord, 0, len(rows))
	for _, rowNum := range sortedRows(rows) {
		row := rows[rowNum]
		// Rows whose key does not match their address are placeholders.
		if row.QuestionNumber == 0 || models.QuestionForRow(rowNum) != row.QuestionNumber {
			continue
		}
		records = append(records, models.AnswerRecord{
			QuestionNumber: row.QuestionNumber,
			QuestionType:   t,
			Answer1:        row.Answer1,
			Answer2:        row.Answer2,
			RecordedAt:     row.RecordedAt,
		})
	}
	return records, nil
}

func sortedRows(rows map[int]models.AnswerRow) []int {
	keys := make([]int, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (s *AnswerService) observeLookup(partition, result string) {
	if s.recorder != nil {
		s.recorder.ObserveLookup(partition, result)
	}
}

func (s *AnswerService) observeWrite(partition string, status models.OutcomeStatus) {
	if s.recorder != nil {
		s.recorder.ObserveWrite(partition, status.String())
	}
}

// rowLocks serializes the guard and the write for one (partition, row) inside
// this process. Entries are dropped once no goroutine holds or waits on them.
type rowLocks struct {
	mu    sync.Mutex
	locks map[rowKey]*rowLock
}

type rowKey struct {
	partition string
	row       int
}

type rowLock struct {
	mu   sync.Mutex
	refs int
}

func newRowLocks() *rowLocks {
	return &rowLocks{locks: make(map[rowKey]*rowLock)}
}

func (l *rowLocks) lock(partition string, row int) func() {
	key := rowKey{partition: partition, row: row}

	l.mu.Lock()
	rl, ok := l.locks[key]
	if !ok {
		rl = &rowLock{}
		l.locks[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

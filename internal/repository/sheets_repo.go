package repository

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"linguaporta/internal/models"
)

// Sheet columns A-D: timestamp, question number, answer 1, answer 2.
const (
	sheetDataRange  = "A2:D"
	sheetTimeLayout = time.RFC3339
	titleCacheTTL   = 30 * time.Second
)

var sheetHeader = []interface{}{"timestamp", "question_number", "answer_1", "answer_2"}

// sheetsEpoch is day zero of spreadsheet serial dates.
var sheetsEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// SheetsRepository stores each partition as a sheet of one Google spreadsheet.
// Sheets has no conditional write, so the write guard is read-then-write.
type SheetsRepository struct {
	srv           *sheets.Service
	spreadsheetID string

	mu       sync.Mutex
	titles   map[string]bool
	loadedAt time.Time
}

// NewSheetsRepository authenticates with a service account file, or with
// application default credentials when credentialsFile is empty.
func NewSheetsRepository(ctx context.Context, spreadsheetID, credentialsFile string) (*SheetsRepository, error) {
	client, err := sheetsHTTPClient(ctx, credentialsFile)
	if err != nil {
		return nil, err
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewSheetsRepositoryWithService(srv, spreadsheetID), nil
}

// NewSheetsRepositoryWithService wraps an existing Sheets client
func NewSheetsRepositoryWithService(srv *sheets.Service, spreadsheetID string) *SheetsRepository {
	return &SheetsRepository{srv: srv, spreadsheetID: spreadsheetID}
}

func sheetsHTTPClient(ctx context.Context, credentialsFile string) (*http.Client, error) {
	// Token refreshes outlive the startup context.
	clientCtx := context.Background()

	if credentialsFile == "" {
		creds, err := google.FindDefaultCredentials(ctx, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default google credentials: %w", err)
		}
		return oauth2.NewClient(clientCtx, creds.TokenSource), nil
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}
	return conf.Client(clientCtx), nil
}

// HasPartition reports whether a sheet with the partition's title exists
func (r *SheetsRepository) HasPartition(ctx context.Context, partition string) (bool, error) {
	titles, err := r.sheetTitles(ctx)
	if err != nil {
		return false, err
	}
	return titles[partition], nil
}

// EnsurePartition adds a missing sheet and writes its header row
func (r *SheetsRepository) EnsurePartition(ctx context.Context, partition string) error {
	ok, err := r.HasPartition(ctx, partition)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: partition},
			},
		}},
	}
	if _, err := r.srv.Spreadsheets.BatchUpdate(r.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}
	r.invalidateTitles()

	header := &sheets.ValueRange{Values: [][]interface{}{sheetHeader}}
	if _, err := r.srv.Spreadsheets.Values.Update(r.spreadsheetID, a1Range(partition, "A1:D1"), header).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// ReadRows reads the whole data range once and picks out the requested rows
func (r *SheetsRepository) ReadRows(ctx context.Context, partition string, rows []int) (map[int]models.AnswerRow, error) {
	all, err := r.ReadPartition(ctx, partition)
	if err != nil {
		return nil, err
	}

	result := make(map[int]models.AnswerRow, len(rows))
	for _, row := range rows {
		if v, ok := all[row]; ok {
			result[row] = v
		}
	}
	return result, nil
}

// ReadKey reads only column B of a row
func (r *SheetsRepository) ReadKey(ctx context.Context, partition string, row int) (int, error) {
	resp, err := r.srv.Spreadsheets.Values.Get(r.spreadsheetID, a1Range(partition, "B"+strconv.Itoa(row))).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to read key: %w", err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return 0, nil
	}
	return parseKeyCell(resp.Values[0][0]), nil
}

// WriteRow overwrites columns A-D of a row
func (r *SheetsRepository) WriteRow(ctx context.Context, partition string, row int, value models.AnswerRow) error {
	if err := checkDataRow(row); err != nil {
		return err
	}

	rng := a1Range(partition, fmt.Sprintf("A%d:D%d", row, row))
	body := &sheets.ValueRange{Values: [][]interface{}{{
		value.RecordedAt.UTC().Format(sheetTimeLayout),
		value.QuestionNumber,
		derefString(value.Answer1),
		derefString(value.Answer2),
	}}}

	if _, err := r.srv.Spreadsheets.Values.Update(r.spreadsheetID, rng, body).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// ReadPartition reads every data row of a sheet
func (r *SheetsRepository) ReadPartition(ctx context.Context, partition string) (map[int]models.AnswerRow, error) {
	resp, err := r.srv.Spreadsheets.Values.Get(r.spreadsheetID, a1Range(partition, sheetDataRange)).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	result := make(map[int]models.AnswerRow, len(resp.Values))
	for i, cells := range resp.Values {
		row := i + 2
		value := parseSheetRow(cells)
		if value.QuestionNumber == 0 && value.Answer1 == nil && value.Answer2 == nil {
			continue
		}
		result[row] = value
	}
	return result, nil
}

func (r *SheetsRepository) sheetTitles(ctx context.Context) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.titles != nil && time.Since(r.loadedAt) < titleCacheTTL {
		return r.titles, nil
	}

	resp, err := r.srv.Spreadsheets.Get(r.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to load spreadsheet: %w", err)
	}

	titles := make(map[string]bool, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			titles[sh.Properties.Title] = true
		}
	}
	r.titles = titles
	r.loadedAt = time.Now()
	return titles, nil
}

func (r *SheetsRepository) invalidateTitles() {
	r.mu.Lock()
	r.titles = nil
	r.mu.Unlock()
}

// a1Range quotes a sheet title for A1 notation.
func a1Range(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

func parseSheetRow(cells []interface{}) models.AnswerRow {
	cell := func(i int) interface{} {
		if i < len(cells) {
			return cells[i]
		}
		return nil
	}

	return models.AnswerRow{
		RecordedAt:     parseTimeCell(cell(0)),
		QuestionNumber: parseKeyCell(cell(1)),
		Answer1:        parseTextCell(cell(2)),
		Answer2:        parseTextCell(cell(3)),
	}
}

// parseKeyCell returns 0 for empty or non-numeric keys.
func parseKeyCell(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// parseTextCell maps empty cells to nil.
func parseTextCell(v interface{}) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return models.StringPtr(t)
	case float64:
		return models.StringPtr(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return models.StringPtr(fmt.Sprint(t))
	}
}

// parseTimeCell accepts RFC 3339 strings and spreadsheet serial dates.
func parseTimeCell(v interface{}) time.Time {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(sheetTimeLayout, t)
		if err != nil {
			return time.Time{}
		}
		return parsed.UTC()
	case float64:
		return sheetsEpoch.Add(time.Duration(t * float64(24*time.Hour))).Round(time.Second)
	default:
		return time.Time{}
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSheets serves the part of the Sheets v4 REST API the repository uses.
type fakeSheets struct {
	mu     sync.Mutex
	sheets map[string]map[int][]interface{}
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{sheets: make(map[string]map[int][]interface{})}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(rest, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet *struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, q := range req.Requests {
			if q.AddSheet != nil {
				f.sheets[q.AddSheet.Properties.Title] = make(map[int][]interface{})
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"replies": []interface{}{}})

	case strings.Contains(rest, "/values/"):
		rng := rest[strings.Index(rest, "/values/")+len("/values/"):]
		sheet, startCol, startRow, endCol, endRow := parseTestRange(rng)
		data, ok := f.sheets[sheet]
		if !ok {
			http.Error(w, `{"error":{"code":400,"message":"Unable to parse range"}}`, http.StatusBadRequest)
			return
		}

		if r.Method == http.MethodPut {
			var body struct {
				Values [][]interface{} `json:"values"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			for i, values := range body.Values {
				row := startRow + i
				cells := data[row]
				for len(cells) < startCol+len(values) {
					cells = append(cells, "")
				}
				copy(cells[startCol:], values)
				data[row] = cells
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"updatedRange": rng})
			return
		}

		last := endRow
		if last == 0 {
			for row := range data {
				if row > last {
					last = row
				}
			}
		}
		var values [][]interface{}
		for row := startRow; row <= last; row++ {
			var out []interface{}
			cells := data[row]
			for col := startCol; col <= endCol && col < len(cells); col++ {
				out = append(out, cells[col])
			}
			for len(out) > 0 && out[len(out)-1] == "" {
				out = out[:len(out)-1]
			}
			if out == nil {
				out = []interface{}{}
			}
			values = append(values, out)
		}
		for len(values) > 0 && len(values[len(values)-1]) == 0 {
			values = values[:len(values)-1]
		}
		resp := map[string]interface{}{"range": rng, "majorDimension": "ROWS"}
		if len(values) > 0 {
			resp["values"] = values
		}
		json.NewEncoder(w).Encode(resp)

	default:
		var list []interface{}
		for title := range f.sheets {
			list = append(list, map[string]interface{}{"properties": map[string]interface{}{"title": title}})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"spreadsheetId": rest, "sheets": list})
	}
}

// parseTestRange splits "'sheet'!A2:D" into a sheet and zero-based columns
// with 1-based rows. An open end row is returned as 0.
func parseTestRange(rng string) (sheet string, startCol, startRow, endCol, endRow int) {
	idx := strings.LastIndex(rng, "!")
	sheet = strings.ReplaceAll(strings.Trim(rng[:idx], "'"), "''", "'")
	parts := strings.SplitN(rng[idx+1:], ":", 2)

	startCol, startRow = parseTestCell(parts[0])
	endCol, endRow = startCol, startRow
	if len(parts) == 2 {
		endCol, endRow = parseTestCell(parts[1])
	}
	return sheet, startCol, startRow, endCol, endRow
}

func parseTestCell(cell string) (col, row int) {
	col = int(cell[0] - 'A')
	if len(cell) > 1 {
		row, _ = strconv.Atoi(cell[1:])
	}
	return col, row
}

func newTestSheetsRepository(t *testing.T) (*SheetsRepository, *fakeSheets) {
	t.Helper()

	fake := newFakeSheets()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("sheets.NewService() error = %v", err)
	}
	return NewSheetsRepositoryWithService(srv, "sheet-id"), fake
}

func TestSheetsRepositoryContract(t *testing.T) {
	repo, _ := newTestSheetsRepository(t)
	runGridContract(t, repo)
}

func TestSheetsRepositoryWritesHeader(t *testing.T) {
	repo, fake := newTestSheetsRepository(t)

	if err := repo.EnsurePartition(context.Background(), "単語の意味"); err != nil {
		t.Fatalf("EnsurePartition() error = %v", err)
	}

	header := fake.sheets["単語の意味"][1]
	if len(header) != 4 || header[1] != "question_number" {
		t.Errorf("header row = %v, want timestamp/question_number/answer_1/answer_2", header)
	}
}

func TestSheetsRepositoryReadsLegacyRows(t *testing.T) {
	repo, fake := newTestSheetsRepository(t)
	fake.sheets["words"] = map[int][]interface{}{
		1: {"timestamp", "question_number", "answer_1", "answer_2"},
		// Written by the old web app: serial date, numeric key.
		3: {45748.5, float64(2), "cat", float64(3)},
		// Key typed by hand as text.
		5: {"", "4", "dog", ""},
	}

	rows, err := repo.ReadPartition(context.Background(), "words")
	if err != nil {
		t.Fatalf("ReadPartition() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ReadPartition() returned %d rows, want 2", len(rows))
	}

	legacy := rows[3]
	if legacy.QuestionNumber != 2 || deref(legacy.Answer1) != "cat" || deref(legacy.Answer2) != "3" {
		t.Errorf("row 3 = {%d %s %s}, want {2 cat 3}", legacy.QuestionNumber, deref(legacy.Answer1), deref(legacy.Answer2))
	}
	want := time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)
	if !legacy.RecordedAt.Equal(want) {
		t.Errorf("row 3 RecordedAt = %v, want %v", legacy.RecordedAt, want)
	}

	if rows[5].QuestionNumber != 4 {
		t.Errorf("row 5 QuestionNumber = %d, want 4", rows[5].QuestionNumber)
	}
	if !rows[5].RecordedAt.IsZero() {
		t.Errorf("row 5 RecordedAt = %v, want zero", rows[5].RecordedAt)
	}
}

func TestA1Range(t *testing.T) {
	tests := []struct {
		sheet string
		cells string
		want  string
	}{
		{sheet: "単語の意味", cells: "A2:D", want: "'単語の意味'!A2:D"},
		{sheet: "Bob's answers", cells: "B6", want: "'Bob''s answers'!B6"},
	}

	for _, tt := range tests {
		if got := a1Range(tt.sheet, tt.cells); got != tt.want {
			t.Errorf("a1Range(%q, %q) = %q, want %q", tt.sheet, tt.cells, got, tt.want)
		}
	}
}

func TestParseKeyCell(t *testing.T) {
	tests := []struct {
		name string
		cell interface{}
		want int
	}{
		{name: "number", cell: float64(12), want: 12},
		{name: "text number", cell: " 7 ", want: 7},
		{name: "empty", cell: "", want: 0},
		{name: "text", cell: "n/a", want: 0},
		{name: "missing", cell: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseKeyCell(tt.cell); got != tt.want {
				t.Errorf("parseKeyCell(%v) = %d, want %d", tt.cell, got, tt.want)
			}
		})
	}
}

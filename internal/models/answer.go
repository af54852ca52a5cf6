package models

import (
	"strings"
	"time"
)

// QuestionType selects the partition an answer lives in.
type QuestionType int

const (
	QuestionTypeUnknown QuestionType = iota
	QuestionTypeWordMeaning
	QuestionTypeFillBlank
)

// Labels the extension sends alongside the canonical names.
const (
	WordMeaningLabel = "単語の意味"
	FillBlankLabel   = "空所補充"
)

// ParseQuestionType accepts the canonical names and the extension's labels.
func ParseQuestionType(s string) QuestionType {
	switch strings.TrimSpace(s) {
	case "word-meaning", WordMeaningLabel:
		return QuestionTypeWordMeaning
	case "fill-blank", FillBlankLabel:
		return QuestionTypeFillBlank
	default:
		return QuestionTypeUnknown
	}
}

// QuestionTypes lists the known types in partition order.
func QuestionTypes() []QuestionType {
	return []QuestionType{QuestionTypeWordMeaning, QuestionTypeFillBlank}
}

func (t QuestionType) String() string {
	switch t {
	case QuestionTypeWordMeaning:
		return "word-meaning"
	case QuestionTypeFillBlank:
		return "fill-blank"
	default:
		return "unknown"
	}
}

// RowForQuestion returns the 1-indexed row holding a question; row 1 is the header.
func RowForQuestion(questionNumber int) int {
	return questionNumber + 1
}

// QuestionForRow is the inverse of RowForQuestion.
func QuestionForRow(row int) int {
	return row - 1
}

// AnswerRow is one data row of a partition: timestamp, key, answer 1, answer 2.
type AnswerRow struct {
	QuestionNumber int // 0 when the key cell is empty
	Answer1        *string
	Answer2        *string
	RecordedAt     time.Time
}

// AnswerRecord is a stored answer resolved to its question type.
type AnswerRecord struct {
	QuestionNumber int
	QuestionType   QuestionType
	Answer1        *string
	Answer2        *string
	RecordedAt     time.Time
}

// Lookup asks for one stored answer. The type is kept as sent so that
// unrecognized values can be skipped per item.
type Lookup struct {
	QuestionNumber int
	QuestionType   string
}

// AnswerSubmission is one item of a set batch.
type AnswerSubmission struct {
	QuestionNumber int
	QuestionType   string
	Answer1        *string
	Answer2        *string
	RecordedAt     time.Time // zero means now
}

// OutcomeStatus classifies what happened to a single submission.
type OutcomeStatus int

const (
	OutcomeWritten OutcomeStatus = iota
	OutcomeSkipped
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeWritten:
		return "written"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// SetOutcome records the result for one submission.
type SetOutcome struct {
	QuestionNumber int
	QuestionType   string
	Status         OutcomeStatus
	Reason         string
}

// SetResult holds per-item outcomes of a set batch in submission order.
type SetResult struct {
	Outcomes []SetOutcome
}

// Written returns how many submissions were actually stored.
func (r SetResult) Written() int {
	return r.count(OutcomeWritten)
}

// Skipped returns how many submissions were left alone.
func (r SetResult) Skipped() int {
	return r.count(OutcomeSkipped)
}

// Failed returns how many submissions hit an error.
func (r SetResult) Failed() int {
	return r.count(OutcomeFailed)
}

func (r SetResult) count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

package model

import (
	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeChoice         QuestionType = "CHOICE"
	QuestionTypeMultipleSelect QuestionType = "MULTIPLE_SELECT"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

// EssayMode selects how an essay answer is scored.
type EssayMode string

const (
	EssayModeExact      EssayMode = "EXACT"
	EssayModeSubjective EssayMode = "SUBJECTIVE"
)

// Question represents a single test question. MaxScore bounds every answer's
// score; MinScore is the essay floor.
type Question struct {
	ID           uuid.UUID    `json:"id"`
	TestID       uuid.UUID    `json:"test_id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	MaxScore     float64      `json:"max_score"`
	MinScore     float64      `json:"min_score"`
	EssayMode    EssayMode    `json:"essay_mode,omitempty"`
	AnswerKey    string       `json:"-"`
	OrderNum     int          `json:"order_num"`
}

// Option is a selectable choice of a CHOICE or MULTIPLE_SELECT question.
// MaxScore is copied from the owning question when the option is looked up.
type Option struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	OptionText string    `json:"option_text"`
	IsCorrect  bool      `json:"-"`
	MaxScore   float64   `json:"-"`
}

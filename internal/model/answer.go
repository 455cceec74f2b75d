package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is a participant's response to one question. Exactly one payload
// field is meaningful, selected by AnswerType. Score is nil until graded.
// Revision increases with every payload change so a late grader cannot score
// a payload that has since been replaced.
type Answer struct {
	ID            uuid.UUID    `json:"id"`
	ParticipantID uuid.UUID    `json:"participant_id"`
	QuestionID    uuid.UUID    `json:"question_id"`
	AnswerType    QuestionType `json:"answer_type"`
	OptionID      *uuid.UUID   `json:"option_id,omitempty"`
	OptionIDs     []uuid.UUID  `json:"option_ids,omitempty"`
	EssayText     string       `json:"essay_text,omitempty"`
	Score         *float64     `json:"score,omitempty"`
	Revision      int          `json:"revision"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ScoreSummary aggregates a participant's graded answers.
type ScoreSummary struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Total         float64   `json:"total"`
	MaxTotal      float64   `json:"max_total"`
	Graded        int       `json:"graded"`
	Pending       int       `json:"pending"`
}

package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/grading"
	"github.com/stemsi/exstem-grading/internal/joincode"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository"
	"github.com/stemsi/exstem-grading/internal/repository/sqlite"
)

// TestStore persists tests and resolves join codes.
type TestStore interface {
	joincode.Checker
	CreateTest(ctx context.Context, t *model.Test) error
	GetTestByJoinCode(ctx context.Context, code string) (*model.Test, error)
}

// QuestionStore authors and reads questions and their options.
type QuestionStore interface {
	grading.OptionStore
	CreateQuestion(ctx context.Context, q *model.Question) error
	CreateOption(ctx context.Context, o *model.Option) error
	GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error)
	ListQuestionsByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
}

// ParticipantStore owns the completion flag.
type ParticipantStore interface {
	CreateParticipant(ctx context.Context, p *model.Participant) error
	GetParticipant(ctx context.Context, id uuid.UUID) (*model.Participant, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (alreadyCompleted bool, err error)
}

// AnswerStore writes answers conditionally on the participant being in
// progress and stores revision-guarded scores.
type AnswerStore interface {
	SaveChoiceAnswer(ctx context.Context, participantID, questionID, optionID uuid.UUID) (*model.Answer, error)
	SaveEssayAnswer(ctx context.Context, participantID, questionID uuid.UUID, text string) (*model.Answer, error)
	SaveMultipleSelectAnswer(ctx context.Context, participantID, questionID uuid.UUID, optionIDs []uuid.UUID) (*model.Answer, error)
	ToggleMultipleSelectOption(ctx context.Context, participantID, questionID, optionID uuid.UUID) (*model.Answer, error)
	SetAnswerScore(ctx context.Context, answerID uuid.UUID, revision int, score float64) error
	GetAnswer(ctx context.Context, id uuid.UUID) (*model.Answer, error)
	ListAnswers(ctx context.Context, participantID uuid.UUID) ([]model.Answer, error)
}

// Store is the full record store contract.
type Store interface {
	TestStore
	QuestionStore
	ParticipantStore
	AnswerStore
}

var (
	_ Store = (*repository.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Package grading scores answers for the three question shapes: single
// choice, multiple select and essay.
package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/model"
)

// OptionStore is the read side of the record store the option graders need.
// Lookups of missing ids return model.ErrNotFound (GetOption) or simply omit
// them (GetOptions).
type OptionStore interface {
	GetOption(ctx context.Context, id uuid.UUID) (*model.Option, error)
	GetOptions(ctx context.Context, ids []uuid.UUID) ([]model.Option, error)
	CorrectOptionIDs(ctx context.Context, questionID uuid.UUID) ([]uuid.UUID, error)
}

// Grade is the score awarded to one answer and the question it was resolved
// against.
type Grade struct {
	QuestionID uuid.UUID
	Score      float64
	MaxScore   float64
}

// ChoiceGrader scores single-choice answers: full marks for the flagged
// option, zero otherwise.
type ChoiceGrader struct {
	store OptionStore
}

// NewChoiceGrader creates a new ChoiceGrader.
func NewChoiceGrader(store OptionStore) *ChoiceGrader {
	return &ChoiceGrader{store: store}
}

// Grade resolves the selected option and scores it.
func (g *ChoiceGrader) Grade(ctx context.Context, optionID uuid.UUID) (Grade, error) {
	opt, err := g.store.GetOption(ctx, optionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Grade{}, fmt.Errorf("%w: %s", ErrUnknownOption, optionID)
		}
		return Grade{}, fmt.Errorf("get option: %w", err)
	}

	grade := Grade{QuestionID: opt.QuestionID, MaxScore: opt.MaxScore}
	if opt.IsCorrect {
		grade.Score = opt.MaxScore
	}
	return grade, nil
}

package grading

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/model"
)

type fakeOptionStore struct {
	options map[uuid.UUID]model.Option
}

func newFakeOptionStore() *fakeOptionStore {
	return &fakeOptionStore{options: map[uuid.UUID]model.Option{}}
}

func (s *fakeOptionStore) add(questionID uuid.UUID, maxScore float64, correct bool) uuid.UUID {
	id := uuid.New()
	s.options[id] = model.Option{ID: id, QuestionID: questionID, IsCorrect: correct, MaxScore: maxScore}
	return id
}

func (s *fakeOptionStore) GetOption(_ context.Context, id uuid.UUID) (*model.Option, error) {
	o, ok := s.options[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &o, nil
}

func (s *fakeOptionStore) GetOptions(_ context.Context, ids []uuid.UUID) ([]model.Option, error) {
	var out []model.Option
	for _, id := range ids {
		if o, ok := s.options[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeOptionStore) CorrectOptionIDs(_ context.Context, questionID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id, o := range s.options {
		if o.QuestionID == questionID && o.IsCorrect {
			out = append(out, id)
		}
	}
	return out, nil
}

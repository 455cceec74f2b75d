package grading

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MultipleSelectGrader scores multiple-select answers all-or-nothing: the
// selected set must equal the question's correct set exactly.
type MultipleSelectGrader struct {
	store OptionStore
}

// NewMultipleSelectGrader creates a new MultipleSelectGrader.
func NewMultipleSelectGrader(store OptionStore) *MultipleSelectGrader {
	return &MultipleSelectGrader{store: store}
}

// Grade resolves every selected id and compares the set against the options
// flagged correct at authoring time. Duplicate ids count once.
func (g *MultipleSelectGrader) Grade(ctx context.Context, optionIDs []uuid.UUID) (Grade, error) {
	selected := toSet(optionIDs)
	if len(selected) == 0 {
		return Grade{}, ErrNoSelection
	}

	opts, err := g.store.GetOptions(ctx, setKeys(selected))
	if err != nil {
		return Grade{}, fmt.Errorf("get options: %w", err)
	}

	resolved := make(map[uuid.UUID]struct{}, len(opts))
	questions := make(map[uuid.UUID]struct{}, 1)
	var grade Grade
	for _, o := range opts {
		resolved[o.ID] = struct{}{}
		questions[o.QuestionID] = struct{}{}
		grade.QuestionID = o.QuestionID
		grade.MaxScore = o.MaxScore
	}

	if len(resolved) != len(selected) {
		missing := make([]uuid.UUID, 0, len(selected)-len(resolved))
		for _, id := range optionIDs {
			if _, ok := resolved[id]; !ok {
				missing = append(missing, id)
				resolved[id] = struct{}{} // report each id once
			}
		}
		return Grade{}, &UnknownOptionsError{IDs: missing}
	}
	if len(questions) > 1 {
		return Grade{}, ErrCrossQuestionMismatch
	}

	correctIDs, err := g.store.CorrectOptionIDs(ctx, grade.QuestionID)
	if err != nil {
		return Grade{}, fmt.Errorf("get correct options: %w", err)
	}

	if setEqual(selected, toSet(correctIDs)) {
		grade.Score = grade.MaxScore
	}
	return grade, nil
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	m := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func setKeys(m map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

func setEqual(a, b map[uuid.UUID]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

package grading

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestMultipleSelectGrader(t *testing.T) {
	store := newFakeOptionStore()
	q := uuid.New()
	a := store.add(q, 10, true)
	b := store.add(q, 10, true)
	c := store.add(q, 10, false)
	d := store.add(q, 10, false)

	other := store.add(uuid.New(), 3, true)
	unknown := uuid.New()

	g := NewMultipleSelectGrader(store)
	ctx := context.Background()

	tests := []struct {
		name     string
		selected []uuid.UUID
		want     float64
		wantErr  error
	}{
		{name: "exact set", selected: []uuid.UUID{a, b}, want: 10},
		{name: "exact set reordered", selected: []uuid.UUID{b, a}, want: 10},
		{name: "duplicates collapse", selected: []uuid.UUID{a, b, a}, want: 10},
		{name: "proper subset", selected: []uuid.UUID{a}, want: 0},
		{name: "proper superset", selected: []uuid.UUID{a, b, c}, want: 0},
		{name: "one substitution", selected: []uuid.UUID{a, d}, want: 0},
		{name: "only wrong", selected: []uuid.UUID{c, d}, want: 0},
		{name: "empty", selected: nil, wantErr: ErrNoSelection},
		{name: "unknown id", selected: []uuid.UUID{a, unknown}, wantErr: ErrUnknownOptions},
		{name: "two questions", selected: []uuid.UUID{a, other}, wantErr: ErrCrossQuestionMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.Grade(ctx, tc.selected)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Grade() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Grade() error = %v", err)
			}
			if got.Score != tc.want {
				t.Errorf("Grade().Score = %v, want %v", got.Score, tc.want)
			}
		})
	}
}

func TestMultipleSelectUnknownIDsReported(t *testing.T) {
	store := newFakeOptionStore()
	a := store.add(uuid.New(), 1, true)
	missing := uuid.New()

	_, err := NewMultipleSelectGrader(store).Grade(context.Background(), []uuid.UUID{a, missing, missing})

	var ue *UnknownOptionsError
	if !errors.As(err, &ue) {
		t.Fatalf("Grade() error = %v, want *UnknownOptionsError", err)
	}
	if len(ue.IDs) != 1 || ue.IDs[0] != missing {
		t.Errorf("UnknownOptionsError.IDs = %v, want [%v]", ue.IDs, missing)
	}
}

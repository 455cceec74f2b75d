package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/joincode"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository/sqlite"
)

func TestCreateAndJoin(t *testing.T) {
	store := newStore(t)
	svc := NewTestService(store, store, newGenerator(t, store), zerolog.Nop())
	ctx := context.Background()

	created, err := svc.Create(ctx, "Fisika")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(created.JoinCode) != joincode.DefaultLength {
		t.Errorf("JoinCode = %q, want %d symbols", created.JoinCode, joincode.DefaultLength)
	}

	p, err := svc.Join(ctx, "  "+strings.ToLower(created.JoinCode)+" ", " Andi ")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if p.TestID != created.ID || p.Name != "Andi" || p.Status() != model.AttemptStatusInProgress {
		t.Errorf("Join() = %+v", p)
	}

	if _, err := svc.Join(ctx, "ZZZZZZ", "x"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Join(unknown) error = %v, want ErrNotFound", err)
	}
}

// racingStore reports every code free but rejects the first n inserts, the
// way a concurrent generator winning the same code would.
type racingStore struct {
	*sqlite.Store
	rejections int
	inserts    int
}

func (s *racingStore) JoinCodeExists(context.Context, string) (bool, error) { return false, nil }

func (s *racingStore) CreateTest(ctx context.Context, t *model.Test) error {
	s.inserts++
	if s.inserts <= s.rejections {
		return model.ErrJoinCodeTaken
	}
	return s.Store.CreateTest(ctx, t)
}

func TestCreateRetriesInsertCollisions(t *testing.T) {
	tests := []struct {
		name        string
		rejections  int
		wantErr     error
		wantInserts int
	}{
		{name: "one collision", rejections: 1, wantInserts: 2},
		{name: "budget spent", rejections: 100, wantErr: joincode.ErrExhaustedRetries, wantInserts: joincode.DefaultMaxAttempts},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &racingStore{Store: newStore(t), rejections: tc.rejections}
			svc := NewTestService(store, store, newGenerator(t, store), zerolog.Nop())

			created, err := svc.Create(context.Background(), "Sejarah")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Create() error = %v, want %v", err, tc.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("Create() error = %v", err)
				}
				if created.ID == uuid.Nil {
					t.Error("Create() returned a test without id")
				}
			}
			if store.inserts != tc.wantInserts {
				t.Errorf("inserts = %d, want %d", store.inserts, tc.wantInserts)
			}
		})
	}
}

// Package repository is the PostgreSQL record store built on pgxpool.
//
// Expected tables: tests (join_code UNIQUE as tests_join_code_key),
// questions, options, participants (is_completed, completed_at) and answers
// (id uuid DEFAULT gen_random_uuid(), option_ids uuid[], score double
// precision NULL, revision integer DEFAULT 1, updated_at timestamptz
// DEFAULT NOW(), UNIQUE (participant_id, question_id)). Answer inserts rely on
// the id, revision and updated_at defaults. Schema migrations are owned by the
// surrounding platform.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// Store groups the per-entity repositories behind one record store value.
type Store struct {
	*TestRepository
	*QuestionRepository
	*ParticipantRepository
	*AnswerRepository
}

// NewStore creates a Store on pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		TestRepository:        NewTestRepository(pool),
		QuestionRepository:    NewQuestionRepository(pool),
		ParticipantRepository: NewParticipantRepository(pool),
		AnswerRepository:      NewAnswerRepository(pool),
	}
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// participantOpen returns nil for an existing participant still in progress,
// model.ErrSubmissionLocked for a completed one and model.ErrNotFound
// otherwise. lock is appended to the query ("FOR UPDATE" inside a tx).
func participantOpen(ctx context.Context, db dbtx, id uuid.UUID, lock string) error {
	var completed bool
	err := db.QueryRow(ctx,
		`SELECT is_completed FROM participants WHERE id = $1 `+lock, id,
	).Scan(&completed)
	if err != nil {
		return notFound(err)
	}
	if completed {
		return model.ErrSubmissionLocked
	}
	return nil
}

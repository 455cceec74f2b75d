package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// AnswerRepository handles answer data access. Every payload write is
// conditional on the owning participant still being in progress.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

const answerColumns = `id, participant_id, question_id, answer_type, option_id, option_ids, essay_text, score, revision, updated_at`

func scanAnswer(row pgx.Row) (*model.Answer, error) {
	a := &model.Answer{}
	err := row.Scan(&a.ID, &a.ParticipantID, &a.QuestionID, &a.AnswerType,
		&a.OptionID, &a.OptionIDs, &a.EssayText, &a.Score, &a.Revision, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SaveChoiceAnswer records the selected option.
func (r *AnswerRepository) SaveChoiceAnswer(ctx context.Context, participantID, questionID, optionID uuid.UUID) (*model.Answer, error) {
	return writeAnswer(ctx, r.pool, participantID, questionID, model.QuestionTypeChoice, &optionID, nil, "")
}

// SaveEssayAnswer records the essay text.
func (r *AnswerRepository) SaveEssayAnswer(ctx context.Context, participantID, questionID uuid.UUID, text string) (*model.Answer, error) {
	return writeAnswer(ctx, r.pool, participantID, questionID, model.QuestionTypeEssay, nil, nil, text)
}

// SaveMultipleSelectAnswer replaces the selected set.
func (r *AnswerRepository) SaveMultipleSelectAnswer(ctx context.Context, participantID, questionID uuid.UUID, optionIDs []uuid.UUID) (*model.Answer, error) {
	return writeAnswer(ctx, r.pool, participantID, questionID, model.QuestionTypeMultipleSelect, nil, optionIDs, "")
}

// ToggleMultipleSelectOption adds optionID to the selected set, or removes it
// when already present. The participant row is locked FOR UPDATE for the
// duration so concurrent toggles and completion serialise on it.
func (r *AnswerRepository) ToggleMultipleSelectOption(ctx context.Context, participantID, questionID, optionID uuid.UUID) (*model.Answer, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := participantOpen(ctx, tx, participantID, "FOR UPDATE"); err != nil {
		return nil, err
	}

	var current []uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT option_ids FROM answers WHERE participant_id = $1 AND question_id = $2`,
		participantID, questionID,
	).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	a, err := writeAnswer(ctx, tx, participantID, questionID, model.QuestionTypeMultipleSelect, nil, toggle(current, optionID), "")
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return a, nil
}

func toggle(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids)+1)
	found := false
	for _, v := range ids {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

// writeAnswer upserts the answer in a single statement gated on the
// participant row. FOR SHARE blocks a concurrent MarkCompleted until the
// write commits, and a completed participant yields no row to insert.
func writeAnswer(
	ctx context.Context,
	db dbtx,
	participantID, questionID uuid.UUID,
	kind model.QuestionType,
	optionID *uuid.UUID,
	optionIDs []uuid.UUID,
	text string,
) (*model.Answer, error) {
	if optionIDs == nil {
		optionIDs = []uuid.UUID{}
	}

	a, err := scanAnswer(db.QueryRow(ctx,
		`WITH open_participant AS (
		   SELECT id FROM participants
		   WHERE id = $1 AND is_completed = FALSE
		   FOR SHARE
		 )
		 INSERT INTO answers (participant_id, question_id, answer_type, option_id, option_ids, essay_text)
		 SELECT open_participant.id, $2::uuid, $3::text, $4::uuid, $5::uuid[], $6::text
		 FROM open_participant
		 ON CONFLICT (participant_id, question_id) DO UPDATE SET
		   answer_type = EXCLUDED.answer_type,
		   option_id   = EXCLUDED.option_id,
		   option_ids  = EXCLUDED.option_ids,
		   essay_text  = EXCLUDED.essay_text,
		   score       = NULL,
		   revision    = answers.revision + 1,
		   updated_at  = NOW()
		 RETURNING `+answerColumns,
		participantID, questionID, kind, optionID, optionIDs, text,
	))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err := participantOpen(ctx, db, participantID, ""); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("answer write for participant %s returned no row", participantID)
}

// SetAnswerScore stores a grade for the given answer revision. Scoring is
// allowed after completion; a newer revision returns model.ErrStaleAnswer.
func (r *AnswerRepository) SetAnswerScore(ctx context.Context, answerID uuid.UUID, revision int, score float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE answers SET score = $1 WHERE id = $2 AND revision = $3`,
		score, answerID, revision)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM answers WHERE id = $1)`, answerID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return model.ErrNotFound
	}
	return model.ErrStaleAnswer
}

// GetAnswer retrieves an answer by ID.
func (r *AnswerRepository) GetAnswer(ctx context.Context, id uuid.UUID) (*model.Answer, error) {
	a, err := scanAnswer(r.pool.QueryRow(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// ListAnswers retrieves every answer a participant has given.
func (r *AnswerRepository) ListAnswers(ctx context.Context, participantID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE participant_id = $1`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, *a)
	}
	return answers, rows.Err()
}

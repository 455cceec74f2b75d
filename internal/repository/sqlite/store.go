// Package sqlite is the embedded record store. It implements the same
// contract as the PostgreSQL repositories on a single SQLite connection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/model"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store implements the record store on database/sql with the modernc SQLite
// driver.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore ensures the schema exists and returns a Store.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// ─── Tests ─────────────────────────────────────────────────────────────

// JoinCodeExists reports whether a live test already uses code.
func (s *Store) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tests WHERE join_code = ?)`, code,
	).Scan(&exists)
	return exists, err
}

// CreateTest inserts a test. A join code collision returns
// model.ErrJoinCodeTaken.
func (s *Store) CreateTest(ctx context.Context, t *model.Test) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = fromMillis(millis(s.now()))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tests (id, title, join_code, created_at) VALUES (?, ?, ?, ?)`,
		t.ID.String(), t.Title, t.JoinCode, millis(t.CreatedAt),
	)
	if isJoinCodeViolation(err) {
		return fmt.Errorf("%w: %s", model.ErrJoinCodeTaken, t.JoinCode)
	}
	return err
}

func isJoinCodeViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "join_code")
}

// GetTestByJoinCode resolves a test by its public code.
func (s *Store) GetTestByJoinCode(ctx context.Context, code string) (*model.Test, error) {
	t := &model.Test{}
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, join_code, created_at FROM tests WHERE join_code = ?`, code,
	).Scan(&t.ID, &t.Title, &t.JoinCode, &created)
	if err != nil {
		return nil, notFound(err)
	}
	t.CreatedAt = fromMillis(created)
	return t, nil
}

// ─── Questions & options ───────────────────────────────────────────────

// CreateQuestion inserts a question.
func (s *Store) CreateQuestion(ctx context.Context, q *model.Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (id, test_id, question_text, question_type, max_score, min_score, essay_mode, answer_key, order_num)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID.String(), q.TestID.String(), q.QuestionText, string(q.QuestionType), q.MaxScore, q.MinScore, string(q.EssayMode), q.AnswerKey, q.OrderNum,
	)
	return err
}

const questionColumns = `id, test_id, question_text, question_type, max_score, min_score, essay_mode, answer_key, order_num`

func scanQuestion(row interface{ Scan(...any) error }) (*model.Question, error) {
	q := &model.Question{}
	err := row.Scan(&q.ID, &q.TestID, &q.QuestionText, &q.QuestionType,
		&q.MaxScore, &q.MinScore, &q.EssayMode, &q.AnswerKey, &q.OrderNum)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetQuestion retrieves a question by id.
func (s *Store) GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id.String()))
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

// ListQuestionsByTest retrieves a test's questions ordered by order_num.
func (s *Store) ListQuestionsByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE test_id = ? ORDER BY order_num`, testID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// CreateOption inserts an option.
func (s *Store) CreateOption(ctx context.Context, o *model.Option) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO options (id, question_id, option_text, is_correct) VALUES (?, ?, ?, ?)`,
		o.ID.String(), o.QuestionID.String(), o.OptionText, o.IsCorrect,
	)
	return err
}

const optionSelect = `SELECT o.id, o.question_id, o.option_text, o.is_correct, q.max_score
	FROM options o JOIN questions q ON q.id = o.question_id`

func scanOption(row interface{ Scan(...any) error }) (*model.Option, error) {
	o := &model.Option{}
	if err := row.Scan(&o.ID, &o.QuestionID, &o.OptionText, &o.IsCorrect, &o.MaxScore); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOption retrieves an option with its question's max score.
func (s *Store) GetOption(ctx context.Context, id uuid.UUID) (*model.Option, error) {
	o, err := scanOption(s.db.QueryRowContext(ctx, optionSelect+` WHERE o.id = ?`, id.String()))
	if err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

// GetOptions retrieves the options that exist among ids.
func (s *Store) GetOptions(ctx context.Context, ids []uuid.UUID) ([]model.Option, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx, optionSelect+` WHERE o.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []model.Option
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		options = append(options, *o)
	}
	return options, rows.Err()
}

// CorrectOptionIDs returns the ids flagged correct for a question.
func (s *Store) CorrectOptionIDs(ctx context.Context, questionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM options WHERE question_id = ? AND is_correct = 1`, questionID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ─── Participants ──────────────────────────────────────────────────────

// CreateParticipant opens an in-progress attempt.
func (s *Store) CreateParticipant(ctx context.Context, p *model.Participant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.IsCompleted = false
	p.CompletedAt = nil
	p.StartedAt = fromMillis(millis(s.now()))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (id, test_id, name, is_completed, started_at) VALUES (?, ?, ?, 0, ?)`,
		p.ID.String(), p.TestID.String(), p.Name, millis(p.StartedAt),
	)
	return err
}

// GetParticipant retrieves a participant by id.
func (s *Store) GetParticipant(ctx context.Context, id uuid.UUID) (*model.Participant, error) {
	p := &model.Participant{}
	var started int64
	var completed sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, test_id, name, is_completed, started_at, completed_at FROM participants WHERE id = ?`, id.String(),
	).Scan(&p.ID, &p.TestID, &p.Name, &p.IsCompleted, &started, &completed)
	if err != nil {
		return nil, notFound(err)
	}
	p.StartedAt = fromMillis(started)
	if completed.Valid {
		t := fromMillis(completed.Int64)
		p.CompletedAt = &t
	}
	return p, nil
}

// MarkCompleted flips is_completed with a single conditional update. It
// reports alreadyCompleted when another call got there first.
func (s *Store) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE participants SET is_completed = 1, completed_at = ? WHERE id = ? AND is_completed = 0`,
		millis(s.now()), id.String(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return false, nil
	}

	if err := participantOpen(ctx, s.db, id); err != nil && !errors.Is(err, model.ErrSubmissionLocked) {
		return false, err
	}
	return true, nil
}

// participantOpen returns nil only for an existing, not completed participant.
func participantOpen(ctx context.Context, q querier, id uuid.UUID) error {
	var completed bool
	err := q.QueryRowContext(ctx,
		`SELECT is_completed FROM participants WHERE id = ?`, id.String(),
	).Scan(&completed)
	if err != nil {
		return notFound(err)
	}
	if completed {
		return model.ErrSubmissionLocked
	}
	return nil
}

// ─── Answers ───────────────────────────────────────────────────────────

// SaveChoiceAnswer records the selected option.
func (s *Store) SaveChoiceAnswer(ctx context.Context, participantID, questionID, optionID uuid.UUID) (*model.Answer, error) {
	return s.writeAnswer(ctx, s.db, participantID, questionID, model.QuestionTypeChoice, &optionID, nil, "")
}

// SaveEssayAnswer records the essay text.
func (s *Store) SaveEssayAnswer(ctx context.Context, participantID, questionID uuid.UUID, text string) (*model.Answer, error) {
	return s.writeAnswer(ctx, s.db, participantID, questionID, model.QuestionTypeEssay, nil, nil, text)
}

// SaveMultipleSelectAnswer replaces the selected set.
func (s *Store) SaveMultipleSelectAnswer(ctx context.Context, participantID, questionID uuid.UUID, optionIDs []uuid.UUID) (*model.Answer, error) {
	return s.writeAnswer(ctx, s.db, participantID, questionID, model.QuestionTypeMultipleSelect, nil, optionIDs, "")
}

// ToggleMultipleSelectOption adds optionID to the selected set, or removes it
// when already present, in one transaction.
func (s *Store) ToggleMultipleSelectOption(ctx context.Context, participantID, questionID, optionID uuid.UUID) (*model.Answer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := participantOpen(ctx, tx, participantID); err != nil {
		return nil, err
	}

	var current []uuid.UUID
	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT option_ids FROM answers WHERE participant_id = ? AND question_id = ?`,
		participantID.String(), questionID.String(),
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return nil, fmt.Errorf("decode option_ids: %w", err)
		}
	}

	a, err := s.writeAnswer(ctx, tx, participantID, questionID, model.QuestionTypeMultipleSelect, nil, toggle(current, optionID), "")
	if err != nil {
		return nil, err
	}
	return a, tx.Commit()
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

// writeAnswer upserts an answer only while the owning participant is still in
// progress. The participant check and the write are one statement.
func (s *Store) writeAnswer(
	ctx context.Context,
	q querier,
	participantID, questionID uuid.UUID,
	kind model.QuestionType,
	optionID *uuid.UUID,
	optionIDs []uuid.UUID,
	text string,
) (*model.Answer, error) {
	if optionIDs == nil {
		optionIDs = []uuid.UUID{}
	}
	idsJSON, err := json.Marshal(optionIDs)
	if err != nil {
		return nil, err
	}
	var optionArg any
	if optionID != nil {
		optionArg = optionID.String()
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO answers (id, participant_id, question_id, answer_type, option_id, option_ids, essay_text, score, revision, updated_at)
		 SELECT ?, p.id, ?, ?, ?, ?, ?, NULL, 1, ?
		 FROM participants p
		 WHERE p.id = ? AND p.is_completed = 0
		 ON CONFLICT (participant_id, question_id) DO UPDATE SET
		   answer_type = excluded.answer_type,
		   option_id   = excluded.option_id,
		   option_ids  = excluded.option_ids,
		   essay_text  = excluded.essay_text,
		   score       = NULL,
		   revision    = answers.revision + 1,
		   updated_at  = excluded.updated_at`,
		uuid.NewString(), questionID.String(), string(kind), optionArg, string(idsJSON), text, millis(s.now()), participantID.String(),
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if err := participantOpen(ctx, q, participantID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("answer write for participant %s affected no rows", participantID)
	}

	return scanAnswer(q.QueryRowContext(ctx,
		answerSelect+` WHERE participant_id = ? AND question_id = ?`, participantID.String(), questionID.String()))
}

const answerSelect = `SELECT id, participant_id, question_id, answer_type, option_id, option_ids, essay_text, score, revision, updated_at FROM answers`

func scanAnswer(row interface{ Scan(...any) error }) (*model.Answer, error) {
	a := &model.Answer{}
	var optionID uuid.NullUUID
	var idsJSON string
	var score sql.NullFloat64
	var updated int64

	err := row.Scan(&a.ID, &a.ParticipantID, &a.QuestionID, &a.AnswerType,
		&optionID, &idsJSON, &a.EssayText, &score, &a.Revision, &updated)
	if err != nil {
		return nil, notFound(err)
	}

	if optionID.Valid {
		id := optionID.UUID
		a.OptionID = &id
	}
	if err := json.Unmarshal([]byte(idsJSON), &a.OptionIDs); err != nil {
		return nil, fmt.Errorf("decode option_ids: %w", err)
	}
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}

// SetAnswerScore stores a grade for the given answer revision. Scoring is
// allowed after completion; a newer revision returns model.ErrStaleAnswer.
func (s *Store) SetAnswerScore(ctx context.Context, answerID uuid.UUID, revision int, score float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE answers SET score = ? WHERE id = ? AND revision = ?`, score, answerID.String(), revision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM answers WHERE id = ?)`, answerID.String(),
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return model.ErrNotFound
	}
	return model.ErrStaleAnswer
}

// GetAnswer retrieves an answer by id.
func (s *Store) GetAnswer(ctx context.Context, id uuid.UUID) (*model.Answer, error) {
	return scanAnswer(s.db.QueryRowContext(ctx, answerSelect+` WHERE id = ?`, id.String()))
}

// ListAnswers retrieves every answer a participant has given.
func (s *Store) ListAnswers(ctx context.Context, participantID uuid.UUID) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx, answerSelect+` WHERE participant_id = ?`, participantID.String())
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

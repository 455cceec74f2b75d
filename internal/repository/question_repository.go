package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// QuestionRepository handles question and option data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, test_id, question_text, question_type, max_score, min_score, essay_mode, answer_key, order_num`

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	err := row.Scan(&q.ID, &q.TestID, &q.QuestionText, &q.QuestionType,
		&q.MaxScore, &q.MinScore, &q.EssayMode, &q.AnswerKey, &q.OrderNum)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// CreateQuestion inserts a new question.
func (r *QuestionRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO questions (`+questionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.TestID, q.QuestionText, q.QuestionType, q.MaxScore, q.MinScore, q.EssayMode, q.AnswerKey, q.OrderNum,
	)
	return err
}

// GetQuestion retrieves a question by ID.
func (r *QuestionRepository) GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

// ListQuestionsByTest retrieves all questions for a given test, ordered by order_num.
func (r *QuestionRepository) ListQuestionsByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE test_id = $1 ORDER BY order_num`, testID)
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

// CreateOption inserts a new option.
func (r *QuestionRepository) CreateOption(ctx context.Context, o *model.Option) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO options (id, question_id, option_text, is_correct) VALUES ($1, $2, $3, $4)`,
		o.ID, o.QuestionID, o.OptionText, o.IsCorrect,
	)
	return err
}

const optionSelect = `SELECT o.id, o.question_id, o.option_text, o.is_correct, q.max_score
	FROM options o JOIN questions q ON q.id = o.question_id`

func scanOption(row pgx.Row) (*model.Option, error) {
	o := &model.Option{}
	if err := row.Scan(&o.ID, &o.QuestionID, &o.OptionText, &o.IsCorrect, &o.MaxScore); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOption retrieves an option together with its question's max score.
func (r *QuestionRepository) GetOption(ctx context.Context, id uuid.UUID) (*model.Option, error) {
	o, err := scanOption(r.pool.QueryRow(ctx, optionSelect+` WHERE o.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

// GetOptions retrieves the options that exist among ids. Missing ids are
// omitted.
func (r *QuestionRepository) GetOptions(ctx context.Context, ids []uuid.UUID) ([]model.Option, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, optionSelect+` WHERE o.id = ANY($1)`, ids)
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
func (r *QuestionRepository) CorrectOptionIDs(ctx context.Context, questionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM options WHERE question_id = $1 AND is_correct`, questionID)
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

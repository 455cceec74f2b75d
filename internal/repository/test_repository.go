package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// TestRepository handles test data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// JoinCodeExists reports whether a live test already uses code.
func (r *TestRepository) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tests WHERE join_code = $1)`, code,
	).Scan(&exists)
	return exists, err
}

// CreateTest inserts a new test. The unique index on join_code is the final
// arbiter between concurrent generators.
func (r *TestRepository) CreateTest(ctx context.Context, t *model.Test) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tests (id, title, join_code)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		t.ID, t.Title, t.JoinCode,
	).Scan(&t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "tests_join_code_key" {
			return fmt.Errorf("%w: %s", model.ErrJoinCodeTaken, t.JoinCode)
		}
		return err
	}
	return nil
}

// GetTestByJoinCode resolves a test by its public code.
func (r *TestRepository) GetTestByJoinCode(ctx context.Context, code string) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, join_code, created_at FROM tests WHERE join_code = $1`, code,
	).Scan(&t.ID, &t.Title, &t.JoinCode, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

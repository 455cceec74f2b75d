package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grading/internal/model"
)

// ParticipantRepository handles participant data access and the completion
// transition.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// CreateParticipant opens an in-progress attempt.
func (r *ParticipantRepository) CreateParticipant(ctx context.Context, p *model.Participant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.IsCompleted = false
	p.CompletedAt = nil
	return r.pool.QueryRow(ctx,
		`INSERT INTO participants (id, test_id, name)
		 VALUES ($1, $2, $3)
		 RETURNING started_at`,
		p.ID, p.TestID, p.Name,
	).Scan(&p.StartedAt)
}

// GetParticipant retrieves a participant by ID.
func (r *ParticipantRepository) GetParticipant(ctx context.Context, id uuid.UUID) (*model.Participant, error) {
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, name, is_completed, started_at, completed_at
		 FROM participants WHERE id = $1`, id,
	).Scan(&p.ID, &p.TestID, &p.Name, &p.IsCompleted, &p.StartedAt, &p.CompletedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// MarkCompleted flips is_completed with a compare-and-swap. The row lock it
// takes waits for any answer write holding FOR SHARE on the same participant.
func (r *ParticipantRepository) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE participants
		 SET is_completed = TRUE, completed_at = NOW()
		 WHERE id = $1 AND is_completed = FALSE`, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return false, nil
	}

	if err := participantOpen(ctx, r.pool, id, ""); err != nil && !errors.Is(err, model.ErrSubmissionLocked) {
		return false, err
	}
	return true, nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/model"
)

// EventParticipantCompleted is published on the test's monitor channel on the
// first completion of an attempt.
const EventParticipantCompleted = "participant.completed"

// CompletionEvent is the monitor channel payload.
type CompletionEvent struct {
	Type          string    `json:"type"`
	TestID        uuid.UUID `json:"test_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

// CompletionService drives the InProgress -> Completed transition.
type CompletionService struct {
	participants ParticipantStore
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewCompletionService creates a new CompletionService. rdb may be nil, in
// which case no events are published.
func NewCompletionService(participants ParticipantStore, rdb *redis.Client, log zerolog.Logger) *CompletionService {
	return &CompletionService{
		participants: participants,
		rdb:          rdb,
		log:          log.With().Str("component", "completion_service").Logger(),
	}
}

// Complete marks the attempt completed. It is idempotent: a repeated call
// reports AlreadyCompleted instead of failing. An unknown participant fails
// with model.ErrNotFound.
func (s *CompletionService) Complete(ctx context.Context, participantID uuid.UUID) (model.CompletionResult, error) {
	already, err := s.participants.MarkCompleted(ctx, participantID)
	if err != nil {
		return model.CompletionResult{}, fmt.Errorf("mark completed: %w", err)
	}

	result := model.CompletionResult{Completed: true, AlreadyCompleted: already}
	if already {
		return result, nil
	}

	s.log.Info().Str("participant_id", participantID.String()).Msg("Participant completed")
	s.publish(ctx, participantID)
	return result, nil
}

// publish is best effort: the transition is already committed.
func (s *CompletionService) publish(ctx context.Context, participantID uuid.UUID) {
	if s.rdb == nil {
		return
	}

	p, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		s.log.Warn().Err(err).Str("participant_id", participantID.String()).Msg("Completion event skipped")
		return
	}

	ev := CompletionEvent{
		Type:          EventParticipantCompleted,
		TestID:        p.TestID,
		ParticipantID: p.ID,
		CompletedAt:   time.Now(),
	}
	if p.CompletedAt != nil {
		ev.CompletedAt = *p.CompletedAt
	}
	raw, _ := json.Marshal(ev)

	if err := s.rdb.Publish(ctx, config.CacheKey.TestMonitorChannel(p.TestID.String()), raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("participant_id", participantID.String()).Msg("Completion event publish failed")
	}
}

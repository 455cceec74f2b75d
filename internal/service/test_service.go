package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/joincode"
	"github.com/stemsi/exstem-grading/internal/model"
)

// TestService creates tests with unique join codes and opens participant
// attempts against them.
type TestService struct {
	tests        TestStore
	participants ParticipantStore
	gen          *joincode.Generator
	log          zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(tests TestStore, participants ParticipantStore, gen *joincode.Generator, log zerolog.Logger) *TestService {
	return &TestService{
		tests:        tests,
		participants: participants,
		gen:          gen,
		log:          log.With().Str("component", "test_service").Logger(),
	}
}

// Create generates a join code and inserts the test. A unique violation on
// insert means another generator won the same code; it is retried within the
// generator's attempt budget.
func (s *TestService) Create(ctx context.Context, title string) (*model.Test, error) {
	for attempt := 1; attempt <= s.gen.MaxAttempts(); attempt++ {
		code, err := s.gen.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("generate join code: %w", err)
		}

		t := &model.Test{Title: title, JoinCode: code}
		err = s.tests.CreateTest(ctx, t)
		if err == nil {
			s.log.Info().
				Str("test_id", t.ID.String()).
				Str("join_code", code).
				Msg("Test created")
			return t, nil
		}
		if !errors.Is(err, model.ErrJoinCodeTaken) {
			return nil, fmt.Errorf("create test: %w", err)
		}

		s.log.Warn().
			Int("attempt", attempt).
			Str("join_code", code).
			Msg("Join code taken on insert, regenerating")
	}

	return nil, fmt.Errorf("create test: %w after %d inserts", joincode.ErrExhaustedRetries, s.gen.MaxAttempts())
}

// Join resolves code (trimmed, case-insensitive) and opens a new attempt.
func (s *TestService) Join(ctx context.Context, code, name string) (*model.Participant, error) {
	t, err := s.tests.GetTestByJoinCode(ctx, s.gen.Codec().Normalize(code))
	if err != nil {
		return nil, fmt.Errorf("resolve join code: %w", err)
	}

	p := &model.Participant{TestID: t.ID, Name: strings.TrimSpace(name)}
	if err := s.participants.CreateParticipant(ctx, p); err != nil {
		return nil, fmt.Errorf("create participant: %w", err)
	}

	s.log.Debug().
		Str("test_id", t.ID.String()).
		Str("participant_id", p.ID.String()).
		Msg("Participant joined")
	return p, nil
}

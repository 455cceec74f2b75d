package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates participant attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
)

// Participant represents one attempt at one test by one taker.
type Participant struct {
	ID          uuid.UUID  `json:"id"`
	TestID      uuid.UUID  `json:"test_id"`
	Name        string     `json:"name"`
	IsCompleted bool       `json:"is_completed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Status derives the attempt state from the completion flag.
func (p *Participant) Status() AttemptStatus {
	if p.IsCompleted {
		return AttemptStatusCompleted
	}
	return AttemptStatusInProgress
}

// CompletionResult is returned by every successful completion call.
type CompletionResult struct {
	Completed        bool `json:"completed"`
	AlreadyCompleted bool `json:"already_completed"`
}

package model

import "errors"

// Record store errors shared by every backend.
var (
	ErrNotFound         = errors.New("record not found")
	ErrSubmissionLocked = errors.New("submission is locked: attempt already completed")
	ErrJoinCodeTaken    = errors.New("join code already in use")
	ErrStaleAnswer      = errors.New("answer changed while being graded")
)

package grading

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation errors: caller mistakes, reported immediately and never retried.
var (
	ErrUnknownOption         = errors.New("unknown option")
	ErrUnknownOptions        = errors.New("unknown options")
	ErrNoSelection           = errors.New("no option selected")
	ErrCrossQuestionMismatch = errors.New("options belong to a different question")
	ErrInvalidAnswerKey      = errors.New("invalid answer key")
	ErrInvalidScoreRange     = errors.New("invalid score range")
)

// UnknownOptionsError lists the selected ids that did not resolve.
type UnknownOptionsError struct {
	IDs []uuid.UUID
}

func (e *UnknownOptionsError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: %s", ErrUnknownOptions, strings.Join(ids, ", "))
}

func (e *UnknownOptionsError) Is(target error) bool {
	return target == ErrUnknownOptions
}

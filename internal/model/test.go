package model

import (
	"time"

	"github.com/google/uuid"
)

// Test is a published set of questions addressed publicly by its join code.
type Test struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	JoinCode  string    `json:"join_code"`
	CreatedAt time.Time `json:"created_at"`
}

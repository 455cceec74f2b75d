package config

import (
	"fmt"

	"github.com/stemsi/exstem-grading/internal/validator"
)

// Validate checks the loaded configuration and reports every offending field
// in one *validator.FieldsError.
func Validate(cfg *Config) error {
	if err := validator.Check(cfg, nil); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

package response

import (
	"errors"
	"strings"

	"github.com/stemsi/exstem-grading/internal/grading"
	"github.com/stemsi/exstem-grading/internal/validator"
)

// ErrorBody represents a structured error for the calling layer.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Error builds an ErrorBody with the default message for code.
func Error(code ErrCode) *ErrorBody {
	return &ErrorBody{Code: code, Message: GetMessage(code)}
}

// ValidationError builds a VALIDATION_ERROR body with per-field messages.
func ValidationError(fields map[string]string) *ErrorBody {
	body := Error(ErrValidation)
	body.Fields = fields
	return body
}

// FromError classifies err and attaches the offending fields or ids when
// known.
func FromError(err error) *ErrorBody {
	code := CodeOf(err)

	var invalid *validator.FieldsError
	if errors.As(err, &invalid) {
		if code == ErrValidation {
			return ValidationError(invalid.Fields)
		}
		body := Error(code)
		body.Fields = invalid.Fields
		return body
	}

	body := Error(code)

	var unknown *grading.UnknownOptionsError
	if errors.As(err, &unknown) {
		ids := make([]string, len(unknown.IDs))
		for i, id := range unknown.IDs {
			ids[i] = id.String()
		}
		body.Fields = map[string]string{"option_ids": strings.Join(ids, ",")}
	}
	return body
}

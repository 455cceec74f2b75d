package validator

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once     sync.Once
	validate *govalidator.Validate
	trans    ut.Translator
)

// setup builds the shared validator with English translations. Field names in
// messages come from the json tag when present, otherwise the Go field name.
func setup() {
	validate = govalidator.New(govalidator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)
}

// FieldsError reports a failed validation as field namespace -> message. Err,
// when set, is the domain error the failure classifies as.
type FieldsError struct {
	Err    error
	Fields map[string]string
}

func (e *FieldsError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, e.Fields[name])
	}
	if e.Err == nil {
		return strings.Join(msgs, "; ")
	}
	return e.Err.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *FieldsError) Unwrap() error { return e.Err }

// Check validates v and returns a *FieldsError wrapping err when it is
// invalid.
func Check(v any, err error) error {
	fields := Struct(v)
	if len(fields) == 0 {
		return nil
	}
	return &FieldsError{Err: err, Fields: fields}
}

// Struct validates v and returns a map of field namespace → human-readable
// error message. A nil map means v is valid.
func Struct(v any) map[string]string {
	once.Do(setup)

	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	return TranslateErrors(err)
}

// TranslateErrors converts a validation error into a field → message map. If
// the error is not a validation error, it returns a single-key map with
// "detail".
func TranslateErrors(err error) map[string]string {
	once.Do(setup)

	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Namespace()] = fe.Translate(trans)
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

package response

import (
	"errors"

	"github.com/stemsi/exstem-grading/internal/grading"
	"github.com/stemsi/exstem-grading/internal/joincode"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/service"
	"github.com/stemsi/exstem-grading/internal/validator"
)

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation            ErrCode = "VALIDATION_ERROR"
	ErrUnknownOption         ErrCode = "UNKNOWN_OPTION"
	ErrUnknownOptions        ErrCode = "UNKNOWN_OPTIONS"
	ErrNoSelection           ErrCode = "NO_SELECTION"
	ErrCrossQuestionMismatch ErrCode = "CROSS_QUESTION_MISMATCH"
	ErrQuestionTypeMismatch  ErrCode = "QUESTION_TYPE_MISMATCH"
	ErrInvalidAnswerKey      ErrCode = "INVALID_ANSWER_KEY"
	ErrInvalidScoreRange     ErrCode = "INVALID_SCORE_RANGE"

	// ─── Exhaustion ────────────────────────────────────────────────────
	ErrJoinCodeExhausted ErrCode = "JOIN_CODE_EXHAUSTED"

	// ─── State ─────────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrSubmissionLocked ErrCode = "SUBMISSION_LOCKED"
	ErrConflict         ErrCode = "CONFLICT"
	ErrStaleAnswer      ErrCode = "STALE_ANSWER"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrUnknownOption:
		return "Pilihan jawaban tidak ditemukan."
	case ErrUnknownOptions:
		return "Satu atau lebih pilihan jawaban tidak ditemukan."
	case ErrNoSelection:
		return "Pilih minimal satu jawaban."
	case ErrCrossQuestionMismatch:
		return "Pilihan jawaban berasal dari soal yang berbeda."
	case ErrQuestionTypeMismatch:
		return "Bentuk jawaban tidak sesuai dengan jenis soal."
	case ErrInvalidAnswerKey:
		return "Kunci jawaban esai kosong."
	case ErrInvalidScoreRange:
		return "Rentang nilai soal tidak valid."

	// ─── Exhaustion ────────────────────────────────────────────────────
	case ErrJoinCodeExhausted:
		return "Gagal membuat kode bergabung yang unik. Silakan coba lagi."

	// ─── State ─────────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrSubmissionLocked:
		return "Ujian sudah diselesaikan. Jawaban tidak dapat diubah."
	case ErrConflict:
		return "Sumber daya sudah ada."
	case ErrStaleAnswer:
		return "Jawaban telah diubah saat sedang dinilai."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan internal server."

	default:
		return "Terjadi kesalahan yang tidak diketahui."
	}
}

// CodeOf classifies a domain error. Unrecognised errors are internal.
func CodeOf(err error) ErrCode {
	switch {
	case errors.Is(err, grading.ErrUnknownOptions):
		return ErrUnknownOptions
	case errors.Is(err, grading.ErrUnknownOption):
		return ErrUnknownOption
	case errors.Is(err, grading.ErrNoSelection):
		return ErrNoSelection
	case errors.Is(err, grading.ErrCrossQuestionMismatch):
		return ErrCrossQuestionMismatch
	case errors.Is(err, service.ErrQuestionTypeMismatch):
		return ErrQuestionTypeMismatch
	case errors.Is(err, grading.ErrInvalidAnswerKey):
		return ErrInvalidAnswerKey
	case errors.Is(err, grading.ErrInvalidScoreRange):
		return ErrInvalidScoreRange
	case errors.Is(err, joincode.ErrInvalidCode):
		return ErrValidation
	case errors.Is(err, joincode.ErrExhaustedRetries):
		return ErrJoinCodeExhausted
	case errors.Is(err, model.ErrSubmissionLocked):
		return ErrSubmissionLocked
	case errors.Is(err, model.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, model.ErrJoinCodeTaken):
		return ErrConflict
	case errors.Is(err, model.ErrStaleAnswer):
		return ErrStaleAnswer
	case errors.As(err, new(*validator.FieldsError)):
		return ErrValidation
	default:
		return ErrInternal
	}
}

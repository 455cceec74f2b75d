package grading

import (
	"fmt"
	"math"
	"strings"

	"github.com/stemsi/exstem-grading/internal/validator"
)

// EssayRequest is the input to both essay scoring modes and to every score
// provider.
type EssayRequest struct {
	Answer    string  `json:"answer"`
	AnswerKey string  `json:"answer_key"`
	MinScore  float64 `json:"min_score"`
	MaxScore  float64 `json:"max_score" validate:"gtefield=MinScore"`
}

func (r EssayRequest) validate() error {
	return validator.Check(r, ErrInvalidScoreRange)
}

// GradeExact scores an essay by lexical overlap with the answer key. Every
// whitespace-separated answer token that occurs anywhere in the key counts as
// a match; the ratio matched/keyTokens interpolates between MinScore and
// MaxScore and is rounded to the nearest integer.
//
// matched is capped at the key's token count, so repeating key words cannot
// push the score past MaxScore.
func GradeExact(req EssayRequest) (float64, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}

	keyTokens := strings.Fields(req.AnswerKey)
	total := len(keyTokens)
	if total == 0 {
		return 0, fmt.Errorf("%w: answer key has no tokens", ErrInvalidAnswerKey)
	}

	keySet := make(map[string]struct{}, total)
	for _, tok := range keyTokens {
		keySet[tok] = struct{}{}
	}

	matched := 0
	for _, tok := range strings.Fields(req.Answer) {
		if _, ok := keySet[tok]; ok {
			matched++
		}
	}
	if matched > total {
		matched = total
	}

	ratio := float64(matched) / float64(total)
	return math.Round(req.MinScore + (req.MaxScore-req.MinScore)*ratio), nil
}
